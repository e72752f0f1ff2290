package dashboard

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"storefront/backend/internal/domain"
)

type StockFilter string

const (
	StockAny StockFilter = ""
	StockIn  StockFilter = "in"
	StockOut StockFilter = "out"
)

// PriceRange is inclusive on both ends. A nil bound is open. When both bounds
// are set and Min exceeds Max nothing matches.
type PriceRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

func (r *PriceRange) Inverted() bool {
	return r != nil && r.Min != nil && r.Max != nil && r.Min.GreaterThan(*r.Max)
}

func (r *PriceRange) Contains(price decimal.Decimal) bool {
	if r == nil {
		return true
	}
	if r.Inverted() {
		return false
	}
	if r.Min != nil && price.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && price.GreaterThan(*r.Max) {
		return false
	}
	return true
}

type ProductFilter struct {
	Category string
	Stock    StockFilter
	Search   string
	Price    *PriceRange
}

type OrderFilter struct {
	Status domain.OrderStatus
	Search string
	Price  *PriceRange
	From   *time.Time
	To     *time.Time
}

// FilterProducts keeps the products that satisfy every active predicate.
func FilterProducts(products []domain.Product, f ProductFilter) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	if f.Price.Inverted() {
		return out
	}

	match := newMatcher(f.Search)
	for _, p := range products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		switch f.Stock {
		case StockIn:
			if p.Stock <= 0 {
				continue
			}
		case StockOut:
			if p.Stock != 0 {
				continue
			}
		}
		if !f.Price.Contains(p.Price) {
			continue
		}
		if !match(p.Name, p.Category, p.Subcategory) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterOrders keeps the orders that satisfy every active predicate.
func FilterOrders(orders []domain.Order, f OrderFilter) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	if f.Price.Inverted() {
		return out
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return out
	}

	match := newMatcher(f.Search)
	for _, o := range orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if !f.Price.Contains(o.TotalPrice) {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		if !match(orderSearchFields(o)...) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func orderSearchFields(o domain.Order) []string {
	fields := make([]string, 0, 4+len(o.Items))
	fields = append(fields, o.ID, o.BuyerID, o.BuyerName, o.DiscountCode)
	for _, item := range o.Items {
		fields = append(fields, item.ProductName)
	}
	return fields
}

// newMatcher returns a case-insensitive substring matcher. An empty query
// matches everything.
func newMatcher(query string) func(fields ...string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return func(...string) bool { return true }
	}

	folder := cases.Fold()
	needle := folder.String(query)
	return func(fields ...string) bool {
		for _, field := range fields {
			if field == "" {
				continue
			}
			if strings.Contains(folder.String(field), needle) {
				return true
			}
		}
		return false
	}
}
