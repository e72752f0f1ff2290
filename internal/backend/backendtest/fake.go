// Package backendtest provides an in-memory stand-in for the storefront
// backend.
package backendtest

import (
	"context"
	"strconv"
	"sync"

	"storefront/backend/internal/backend"
	"storefront/backend/internal/domain"
)

// Fake serves a fixed set of orders, products and discounts. Setting an Err
// field makes the matching call fail with that error.
type Fake struct {
	mu sync.Mutex

	Orders    []domain.Order
	Products  []domain.Product
	Discounts []domain.Discount

	ListErr   error
	UpdateErr error
	WriteErr  error

	// EchoOrder controls whether UpdateOrderStatus returns the updated order.
	EchoOrder bool
	// RefreshedToken, when set, is handed out by RefreshToken.
	RefreshedToken string
	// AfterList runs once a seller list call has read its data and before
	// it returns, letting tests hold a response that is already stale.
	AfterList func(call string)

	Calls  map[string]int
	Tokens []string
	nextID int
}

func New() *Fake {
	return &Fake{Calls: make(map[string]int), nextID: 100, EchoOrder: true}
}

func (f *Fake) record(name string, token string) {
	f.Calls[name]++
	f.Tokens = append(f.Tokens, token)
}

func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[name]
}

func (f *Fake) ListBuyerOrders(_ context.Context, token string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListBuyerOrders", token)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]domain.Order(nil), f.Orders...), nil
}

func (f *Fake) ListSellerOrders(_ context.Context, token string) ([]domain.Order, error) {
	f.mu.Lock()
	f.record("ListSellerOrders", token)
	err := f.ListErr
	orders := append([]domain.Order(nil), f.Orders...)
	hook := f.AfterList
	f.mu.Unlock()

	if hook != nil {
		hook("ListSellerOrders")
	}
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (f *Fake) UpdateOrderStatus(_ context.Context, token string, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateOrderStatus", token)
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	for i := range f.Orders {
		if f.Orders[i].ID == orderID {
			f.Orders[i].Status = status
			if !f.EchoOrder {
				return nil, nil
			}
			echoed := f.Orders[i]
			return &echoed, nil
		}
	}
	return nil, &backend.StatusError{StatusCode: 404, Detail: "order not found"}
}

func (f *Fake) ListProducts(_ context.Context, token string) ([]domain.Product, error) {
	f.mu.Lock()
	f.record("ListProducts", token)
	err := f.ListErr
	products := append([]domain.Product(nil), f.Products...)
	hook := f.AfterList
	f.mu.Unlock()

	if hook != nil {
		hook("ListProducts")
	}
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (f *Fake) CreateProduct(_ context.Context, token string, input domain.ProductInput) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateProduct", token)
	if f.WriteErr != nil {
		return domain.Product{}, f.WriteErr
	}
	f.nextID++
	p := domain.Product{
		ID:          strconv.Itoa(f.nextID),
		Name:        input.Name,
		Category:    input.Category,
		Subcategory: input.Subcategory,
		Price:       input.Price,
		Stock:       input.Stock,
	}
	f.Products = append(f.Products, p)
	return p, nil
}

func (f *Fake) UpdateProduct(_ context.Context, token string, productID string, input domain.ProductInput) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateProduct", token)
	if f.WriteErr != nil {
		return domain.Product{}, f.WriteErr
	}
	for i := range f.Products {
		if f.Products[i].ID == productID {
			f.Products[i] = domain.Product{
				ID:          productID,
				Name:        input.Name,
				Category:    input.Category,
				Subcategory: input.Subcategory,
				Price:       input.Price,
				Stock:       input.Stock,
			}
			return f.Products[i], nil
		}
	}
	return domain.Product{}, &backend.StatusError{StatusCode: 404, Detail: "product not found"}
}

func (f *Fake) DeleteProduct(_ context.Context, token string, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteProduct", token)
	if f.WriteErr != nil {
		return f.WriteErr
	}
	for i := range f.Products {
		if f.Products[i].ID == productID {
			f.Products = append(f.Products[:i], f.Products[i+1:]...)
			return nil
		}
	}
	return &backend.StatusError{StatusCode: 404, Detail: "product not found"}
}

func (f *Fake) ListDiscounts(_ context.Context, token string) ([]domain.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListDiscounts", token)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]domain.Discount(nil), f.Discounts...), nil
}

func (f *Fake) RefreshToken(_ context.Context, refresh string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RefreshToken", refresh)
	if refresh == "" || refresh == "expired" {
		return "", &backend.StatusError{StatusCode: 401, Detail: "token is invalid or expired"}
	}
	if f.RefreshedToken != "" {
		return f.RefreshedToken, nil
	}
	return "refreshed-" + refresh, nil
}
