package dashboard

import (
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"storefront/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// SummarizeOrders computes the seller dashboard counters. Only completed
// orders contribute revenue.
func SummarizeOrders(orders []domain.Order) domain.OrderStats {
	stats := domain.OrderStats{
		Total:      len(orders),
		ByStatus:   make(map[domain.OrderStatus]int, len(domain.OrderStatuses())),
		TotalSales: decimal.Zero,
	}
	for _, status := range domain.OrderStatuses() {
		stats.ByStatus[status] = 0
	}

	buyers := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		stats.ByStatus[o.Status]++
		if o.Status == domain.OrderStatusCompleted {
			stats.TotalSales = stats.TotalSales.Add(o.TotalPrice)
		}
		if o.BuyerID != "" {
			buyers[o.BuyerID] = struct{}{}
		}
	}
	stats.UniqueCustomers = len(buyers)
	stats.GrowthRate = GrowthRate(orders)
	return stats
}

// GrowthRate compares the two most recently created completed orders, as an
// unrounded percentage. It is zero when fewer than two completed
// orders exist or the earlier one has a zero total.
func GrowthRate(orders []domain.Order) float64 {
	completed := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == domain.OrderStatusCompleted {
			completed = append(completed, o)
		}
	}
	if len(completed) < 2 {
		return 0
	}

	slices.SortStableFunc(completed, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	latest, previous := completed[0].TotalPrice, completed[1].TotalPrice
	if previous.IsZero() {
		return 0
	}
	return latest.Sub(previous).Mul(hundred).Div(previous).InexactFloat64()
}

func SummarizeProducts(products []domain.Product) domain.ProductStats {
	stats := domain.ProductStats{
		Total:      len(products),
		TotalStock: TotalStock(products),
		Categories: []string{},
	}
	categories := make(map[string]struct{})
	for _, p := range products {
		if p.Stock == 0 {
			stats.OutOfStock++
		}
		if p.Category == "" {
			continue
		}
		if _, seen := categories[p.Category]; !seen {
			categories[p.Category] = struct{}{}
			stats.Categories = append(stats.Categories, p.Category)
		}
	}
	sort.Strings(stats.Categories)
	return stats
}

func TotalStock(products []domain.Product) int {
	total := 0
	for _, p := range products {
		total += p.Stock
	}
	return total
}

// MonthlySales groups completed revenue by UTC calendar month, oldest first.
func MonthlySales(orders []domain.Order) []domain.MonthlySales {
	byMonth := make(map[string]*domain.MonthlySales)
	for _, o := range orders {
		if o.Status != domain.OrderStatusCompleted {
			continue
		}
		month := o.CreatedAt.UTC().Format("2006-01")
		entry, ok := byMonth[month]
		if !ok {
			entry = &domain.MonthlySales{Month: month, Total: decimal.Zero}
			byMonth[month] = entry
		}
		entry.Orders++
		entry.Total = entry.Total.Add(o.TotalPrice)
	}

	out := make([]domain.MonthlySales, 0, len(byMonth))
	for _, entry := range byMonth {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
