package dashboard

import (
	"fmt"
	"slices"
	"strings"

	"storefront/backend/internal/domain"
)

type SortKey string

const (
	SortNone    SortKey = ""
	SortByName  SortKey = "name"
	SortByPrice SortKey = "price"
	SortByStock SortKey = "stock"
	SortByDate  SortKey = "date"
)

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

type Sort struct {
	Key       SortKey
	Direction SortDirection
}

func ParseSort(key string, direction string) (Sort, error) {
	s := Sort{
		Key:       SortKey(strings.ToLower(strings.TrimSpace(key))),
		Direction: SortDirection(strings.ToLower(strings.TrimSpace(direction))),
	}
	switch s.Key {
	case SortNone, SortByName, SortByPrice, SortByStock, SortByDate:
	default:
		return Sort{}, fmt.Errorf("unsupported sort key %q", key)
	}
	switch s.Direction {
	case "":
		s.Direction = Ascending
	case Ascending, Descending:
	default:
		return Sort{}, fmt.Errorf("unsupported sort direction %q", direction)
	}
	return s, nil
}

// SortProducts returns a stably sorted copy. Keys a product does not carry
// (date) leave the input order untouched.
func SortProducts(products []domain.Product, s Sort) []domain.Product {
	out := slices.Clone(products)
	var cmp func(a, b domain.Product) int
	switch s.Key {
	case SortByName:
		cmp = func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) }
	case SortByPrice:
		cmp = func(a, b domain.Product) int { return a.Price.Cmp(b.Price) }
	case SortByStock:
		cmp = func(a, b domain.Product) int { return compareInt(a.Stock, b.Stock) }
	default:
		return out
	}
	slices.SortStableFunc(out, directed(cmp, s.Direction))
	return out
}

// SortOrders returns a stably sorted copy. Name sorts by buyer name; stock is
// not an order field and leaves the input order untouched.
func SortOrders(orders []domain.Order, s Sort) []domain.Order {
	out := slices.Clone(orders)
	var cmp func(a, b domain.Order) int
	switch s.Key {
	case SortByName:
		cmp = func(a, b domain.Order) int { return strings.Compare(a.BuyerName, b.BuyerName) }
	case SortByPrice:
		cmp = func(a, b domain.Order) int { return a.TotalPrice.Cmp(b.TotalPrice) }
	case SortByDate:
		cmp = func(a, b domain.Order) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return out
	}
	slices.SortStableFunc(out, directed(cmp, s.Direction))
	return out
}

// ProductView applies the filter first and sorts what remains.
func ProductView(products []domain.Product, f ProductFilter, s Sort) []domain.Product {
	return SortProducts(FilterProducts(products, f), s)
}

func OrderView(orders []domain.Order, f OrderFilter, s Sort) []domain.Order {
	return SortOrders(FilterOrders(orders, f), s)
}

func directed[T any](cmp func(a, b T) int, direction SortDirection) func(a, b T) int {
	if direction != Descending {
		return cmp
	}
	return func(a, b T) int { return cmp(b, a) }
}

func compareInt(a int, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
