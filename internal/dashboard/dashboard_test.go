package dashboard

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/backend/internal/domain"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func names(products []domain.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func orderIDs(orders []domain.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

var sampleProducts = []domain.Product{
	{ID: "p1", Name: "Trail Shoes", Category: "Footwear", Subcategory: "Running", Price: dec(120), Stock: 4},
	{ID: "p2", Name: "Rain Jacket", Category: "Outerwear", Subcategory: "Jackets", Price: dec(90), Stock: 0},
	{ID: "p3", Name: "Wool Socks", Category: "Footwear", Subcategory: "Accessories", Price: dec(15), Stock: 40},
	{ID: "p4", Name: "Éclair Cap", Category: "Headwear", Subcategory: "Caps", Price: dec(25), Stock: 7},
}

func TestFilterProductsInStock(t *testing.T) {
	products := []domain.Product{{Name: "empty", Stock: 0}, {Name: "full", Stock: 5}}

	got := FilterProducts(products, ProductFilter{Stock: StockIn})
	assert.Equal(t, []string{"full"}, names(got))

	got = FilterProducts(products, ProductFilter{Stock: StockOut})
	assert.Equal(t, []string{"empty"}, names(got))
}

func TestFilterProductsConjunction(t *testing.T) {
	f := ProductFilter{
		Category: "Footwear",
		Stock:    StockIn,
		Search:   "s",
		Price:    &PriceRange{Min: decPtr(15), Max: decPtr(120)},
	}
	got := FilterProducts(sampleProducts, f)
	assert.Equal(t, []string{"Trail Shoes", "Wool Socks"}, names(got))

	f.Price = &PriceRange{Min: decPtr(16), Max: decPtr(120)}
	got = FilterProducts(sampleProducts, f)
	assert.Equal(t, []string{"Trail Shoes"}, names(got))

	for _, p := range FilterProducts(sampleProducts, ProductFilter{Search: "run", Stock: StockIn}) {
		assert.Greater(t, p.Stock, 0)
		assert.Equal(t, "Running", p.Subcategory)
	}
}

func TestFilterProductsSearchIsCaseInsensitiveSubstring(t *testing.T) {
	assert.Equal(t, []string{"Rain Jacket"}, names(FilterProducts(sampleProducts, ProductFilter{Search: "JACK"})))
	assert.Equal(t, []string{"Wool Socks"}, names(FilterProducts(sampleProducts, ProductFilter{Search: "accessor"})))
	assert.Equal(t, []string{"Éclair Cap"}, names(FilterProducts(sampleProducts, ProductFilter{Search: "éCLAIR"})))
	assert.Len(t, FilterProducts(sampleProducts, ProductFilter{Search: "   "}), len(sampleProducts))
}

func TestPriceRangeInclusiveAndInverted(t *testing.T) {
	got := FilterProducts(sampleProducts, ProductFilter{Price: &PriceRange{Min: decPtr(25), Max: decPtr(90)}})
	assert.Equal(t, []string{"Rain Jacket", "Éclair Cap"}, names(got))

	inverted := &PriceRange{Min: decPtr(100), Max: decPtr(10)}
	assert.Empty(t, FilterProducts(sampleProducts, ProductFilter{Price: inverted}))

	orders := []domain.Order{{ID: "o1", TotalPrice: dec(50)}, {ID: "o2", TotalPrice: dec(5)}}
	assert.Empty(t, FilterOrders(orders, OrderFilter{Price: inverted}))

	open := &PriceRange{Min: decPtr(10)}
	assert.Equal(t, []string{"o1"}, orderIDs(FilterOrders(orders, OrderFilter{Price: open})))
}

func TestFilterOrdersByStatusSearchAndDate(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{ID: "A-1", BuyerID: "1", BuyerName: "Dewi", Status: domain.OrderStatusPending, TotalPrice: dec(10), CreatedAt: base},
		{ID: "A-2", BuyerID: "2", BuyerName: "Rina", Status: domain.OrderStatusCompleted, TotalPrice: dec(20), CreatedAt: base.Add(24 * time.Hour),
			Items: []domain.OrderItem{{ProductID: "p1", ProductName: "Trail Shoes", Quantity: 1, UnitPrice: dec(20)}}},
		{ID: "A-3", BuyerID: "1", BuyerName: "Dewi", Status: domain.OrderStatusCompleted, TotalPrice: dec(30), DiscountCode: "FLASH20", CreatedAt: base.Add(48 * time.Hour)},
	}

	assert.Equal(t, []string{"A-2", "A-3"}, orderIDs(FilterOrders(orders, OrderFilter{Status: domain.OrderStatusCompleted})))
	assert.Equal(t, []string{"A-2"}, orderIDs(FilterOrders(orders, OrderFilter{Search: "trail"})))
	assert.Equal(t, []string{"A-3"}, orderIDs(FilterOrders(orders, OrderFilter{Search: "flash"})))
	assert.Equal(t, []string{"A-3"}, orderIDs(FilterOrders(orders, OrderFilter{Search: "dewi", Status: domain.OrderStatusCompleted})))

	from := base.Add(24 * time.Hour)
	to := base.Add(48 * time.Hour)
	assert.Equal(t, []string{"A-2", "A-3"}, orderIDs(FilterOrders(orders, OrderFilter{From: &from, To: &to})))
	assert.Empty(t, FilterOrders(orders, OrderFilter{From: &to, To: &from}))
}

func TestSortIsStable(t *testing.T) {
	products := []domain.Product{
		{Name: "B", Price: dec(10)},
		{Name: "A", Price: dec(10)},
	}

	asc := SortProducts(products, Sort{Key: SortByPrice, Direction: Ascending})
	assert.Equal(t, []string{"B", "A"}, names(asc))

	desc := SortProducts(products, Sort{Key: SortByPrice, Direction: Descending})
	assert.Equal(t, []string{"B", "A"}, names(desc))
}

func TestSortProductsByKeys(t *testing.T) {
	byName := SortProducts(sampleProducts, Sort{Key: SortByName, Direction: Ascending})
	assert.Equal(t, []string{"Rain Jacket", "Trail Shoes", "Wool Socks", "Éclair Cap"}, names(byName))

	byStockDesc := SortProducts(sampleProducts, Sort{Key: SortByStock, Direction: Descending})
	assert.Equal(t, []string{"Wool Socks", "Éclair Cap", "Trail Shoes", "Rain Jacket"}, names(byStockDesc))

	byPrice := SortProducts(sampleProducts, Sort{Key: SortByPrice, Direction: Ascending})
	assert.Equal(t, []string{"Wool Socks", "Éclair Cap", "Rain Jacket", "Trail Shoes"}, names(byPrice))

	untouched := SortProducts(sampleProducts, Sort{Key: SortByDate, Direction: Descending})
	assert.Equal(t, names(sampleProducts), names(untouched))

	assert.Equal(t, "Trail Shoes", sampleProducts[0].Name, "input must not be reordered")
}

func TestSortOrdersByDate(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{ID: "mid", CreatedAt: base.Add(time.Hour)},
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
	}
	assert.Equal(t, []string{"new", "mid", "old"}, orderIDs(SortOrders(orders, Sort{Key: SortByDate, Direction: Descending})))
	assert.Equal(t, []string{"old", "mid", "new"}, orderIDs(SortOrders(orders, Sort{Key: SortByDate, Direction: Ascending})))
}

func TestViewFiltersThenSorts(t *testing.T) {
	got := ProductView(sampleProducts, ProductFilter{Category: "Footwear"}, Sort{Key: SortByPrice, Direction: Ascending})
	assert.Equal(t, []string{"Wool Socks", "Trail Shoes"}, names(got))
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("Price", "")
	require.NoError(t, err)
	assert.Equal(t, Sort{Key: SortByPrice, Direction: Ascending}, s)

	s, err = ParseSort("date", "DESC")
	require.NoError(t, err)
	assert.Equal(t, Descending, s.Direction)

	_, err = ParseSort("color", "asc")
	assert.Error(t, err)
	_, err = ParseSort("name", "sideways")
	assert.Error(t, err)
}

func TestTotalSalesCountsCompletedOnly(t *testing.T) {
	orders := []domain.Order{
		{ID: "1", BuyerID: "1", Status: domain.OrderStatusCompleted, TotalPrice: dec(100)},
		{ID: "2", BuyerID: "2", Status: domain.OrderStatusPending, TotalPrice: dec(50)},
		{ID: "3", BuyerID: "3", Status: domain.OrderStatusCancelled, TotalPrice: dec(30)},
	}
	stats := SummarizeOrders(orders)
	assert.True(t, stats.TotalSales.Equal(dec(100)), "got %s", stats.TotalSales)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.OrderStatusCompleted])
	assert.Equal(t, 1, stats.ByStatus[domain.OrderStatusPending])
	assert.Equal(t, 1, stats.ByStatus[domain.OrderStatusCancelled])
	assert.Equal(t, 0, stats.ByStatus[domain.OrderStatusRefunded])
	assert.Len(t, stats.ByStatus, len(domain.OrderStatuses()))
}

func TestUniqueCustomers(t *testing.T) {
	orders := []domain.Order{{BuyerID: "1"}, {BuyerID: "1"}, {BuyerID: "2"}, {BuyerID: "3"}}
	assert.Equal(t, 3, SummarizeOrders(orders).UniqueCustomers)
}

func TestGrowthRate(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Array order deliberately differs from creation order.
	orders := []domain.Order{
		{ID: "latest", Status: domain.OrderStatusCompleted, TotalPrice: dec(150), CreatedAt: base.Add(48 * time.Hour)},
		{ID: "oldest", Status: domain.OrderStatusCompleted, TotalPrice: dec(999), CreatedAt: base},
		{ID: "previous", Status: domain.OrderStatusCompleted, TotalPrice: dec(100), CreatedAt: base.Add(24 * time.Hour)},
		{ID: "pending", Status: domain.OrderStatusPending, TotalPrice: dec(1), CreatedAt: base.Add(72 * time.Hour)},
	}
	assert.Equal(t, 50.0, GrowthRate(orders))

	decline := []domain.Order{
		{Status: domain.OrderStatusCompleted, TotalPrice: dec(200), CreatedAt: base},
		{Status: domain.OrderStatusCompleted, TotalPrice: dec(50), CreatedAt: base.Add(time.Hour)},
	}
	assert.Equal(t, -75.0, GrowthRate(decline))

	third := []domain.Order{
		{Status: domain.OrderStatusCompleted, TotalPrice: dec(3), CreatedAt: base},
		{Status: domain.OrderStatusCompleted, TotalPrice: dec(4), CreatedAt: base.Add(time.Hour)},
	}
	rate := GrowthRate(third)
	assert.InDelta(t, 100.0/3, rate, 1e-9)
	assert.NotEqual(t, 33.33, rate, "growth is reported unrounded")
}

func TestCategoryFilterIsExact(t *testing.T) {
	assert.Equal(t, []string{"Trail Shoes", "Wool Socks"}, names(FilterProducts(sampleProducts, ProductFilter{Category: "Footwear"})))
	assert.Empty(t, FilterProducts(sampleProducts, ProductFilter{Category: "footwear"}))
}

func TestGrowthRateZeroGuards(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	single := []domain.Order{{Status: domain.OrderStatusCompleted, TotalPrice: dec(10), CreatedAt: base}}
	assert.Equal(t, 0.0, GrowthRate(single))

	zeroPrevious := []domain.Order{
		{Status: domain.OrderStatusCompleted, TotalPrice: decimal.Zero, CreatedAt: base},
		{Status: domain.OrderStatusCompleted, TotalPrice: dec(80), CreatedAt: base.Add(time.Hour)},
	}
	rate := GrowthRate(zeroPrevious)
	assert.Equal(t, 0.0, rate)
	assert.False(t, math.IsNaN(rate) || math.IsInf(rate, 0))

	assert.Equal(t, 0.0, GrowthRate(nil))
}

func TestSummarizeProducts(t *testing.T) {
	stats := SummarizeProducts(sampleProducts)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 51, stats.TotalStock)
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, []string{"Footwear", "Headwear", "Outerwear"}, stats.Categories)
}

func TestMonthlySales(t *testing.T) {
	orders := []domain.Order{
		{Status: domain.OrderStatusCompleted, TotalPrice: dec(40), CreatedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Status: domain.OrderStatusCompleted, TotalPrice: dec(10), CreatedAt: time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)},
		{Status: domain.OrderStatusCompleted, TotalPrice: dec(5), CreatedAt: time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)},
		{Status: domain.OrderStatusRefunded, TotalPrice: dec(70), CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	got := MonthlySales(orders)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-01", got[0].Month)
	assert.Equal(t, "2026-03", got[1].Month)
	assert.Equal(t, 2, got[1].Orders)
	assert.True(t, got[1].Total.Equal(dec(45)))
}
