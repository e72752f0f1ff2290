package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/backend/internal/domain"
)

// flexID accepts identifiers serialized either as JSON numbers or strings,
// and nested objects carrying an "id".
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	case '{':
		var nested struct {
			ID flexID `json:"id"`
		}
		if err := json.Unmarshal(data, &nested); err != nil {
			return err
		}
		*f = nested.ID
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexInt accepts integers serialized as numbers or numeric strings.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexInt{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return errors.Errorf("not an integer: %s", data)
	}
	*f = flexInt{value: n, set: true}
	return nil
}

type wireOrderItem struct {
	Product     flexID           `json:"product"`
	ProductName string           `json:"product_name"`
	Quantity    flexInt          `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	Seller      flexID           `json:"seller"`
}

type wireOrder struct {
	ID                 flexID           `json:"id"`
	User               flexID           `json:"user"`
	UserName           string           `json:"user_name"`
	Items              []wireOrderItem  `json:"items"`
	TotalPrice         *decimal.Decimal `json:"total_price"`
	OriginalPrice      *decimal.Decimal `json:"original_price"`
	Status             *string          `json:"status"`
	DiscountPercentage flexInt          `json:"discount_percentage"`
	DiscountCode       *string          `json:"discount_code"`
	CreatedAt          *time.Time       `json:"created_at"`
}

func (w wireOrder) toDomain() (domain.Order, error) {
	if w.ID == "" {
		return domain.Order{}, malformed("order missing id")
	}
	if w.User == "" {
		return domain.Order{}, malformed("order %s missing user", w.ID)
	}
	if w.Status == nil {
		return domain.Order{}, malformed("order %s missing status", w.ID)
	}
	status, err := domain.ParseOrderStatus(*w.Status)
	if err != nil {
		return domain.Order{}, malformed("order %s: %v", w.ID, err)
	}
	if w.TotalPrice == nil || w.TotalPrice.IsNegative() {
		return domain.Order{}, malformed("order %s has missing or negative total_price", w.ID)
	}
	if w.CreatedAt == nil || w.CreatedAt.IsZero() {
		return domain.Order{}, malformed("order %s missing created_at", w.ID)
	}

	order := domain.Order{
		ID:         string(w.ID),
		BuyerID:    string(w.User),
		BuyerName:  strings.TrimSpace(w.UserName),
		Items:      make([]domain.OrderItem, 0, len(w.Items)),
		TotalPrice: *w.TotalPrice,
		Status:     status,
		CreatedAt:  w.CreatedAt.UTC(),
	}

	if w.OriginalPrice != nil {
		if w.OriginalPrice.IsNegative() {
			return domain.Order{}, malformed("order %s has negative original_price", w.ID)
		}
		original := *w.OriginalPrice
		order.OriginalPrice = &original
	}
	if w.DiscountPercentage.set {
		pct := w.DiscountPercentage.value
		if pct < 0 || pct > 100 {
			return domain.Order{}, malformed("order %s discount_percentage %d out of range", w.ID, pct)
		}
		order.DiscountPercentage = &pct
		if pct > 0 && order.OriginalPrice != nil && order.OriginalPrice.LessThan(order.TotalPrice) {
			return domain.Order{}, malformed("order %s discounted total exceeds original price", w.ID)
		}
	}
	if w.DiscountCode != nil {
		order.DiscountCode = strings.TrimSpace(*w.DiscountCode)
	}

	for i, item := range w.Items {
		if item.Product == "" {
			return domain.Order{}, malformed("order %s item %d missing product", w.ID, i)
		}
		if !item.Quantity.set || item.Quantity.value < 1 {
			return domain.Order{}, malformed("order %s item %d quantity must be positive", w.ID, i)
		}
		if item.Price == nil || item.Price.IsNegative() {
			return domain.Order{}, malformed("order %s item %d has missing or negative price", w.ID, i)
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   string(item.Product),
			ProductName: strings.TrimSpace(item.ProductName),
			Quantity:    item.Quantity.value,
			UnitPrice:   *item.Price,
			SellerID:    string(item.Seller),
		})
	}
	return order, nil
}

func parseOrders(raw []wireOrder) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(raw))
	for i, item := range raw {
		o, err := item.toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "order %d", i)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

type wireProduct struct {
	ID          flexID           `json:"id"`
	Name        *string          `json:"name"`
	Category    flexName         `json:"category"`
	Subcategory flexName         `json:"subcategory"`
	Price       *decimal.Decimal `json:"price"`
	Stock       flexInt          `json:"stock"`
}

func (w wireProduct) toDomain() (domain.Product, error) {
	if w.ID == "" {
		return domain.Product{}, malformed("product missing id")
	}
	if w.Name == nil || strings.TrimSpace(*w.Name) == "" {
		return domain.Product{}, malformed("product %s missing name", w.ID)
	}
	if w.Price == nil || w.Price.IsNegative() {
		return domain.Product{}, malformed("product %s has missing or negative price", w.ID)
	}
	if !w.Stock.set || w.Stock.value < 0 {
		return domain.Product{}, malformed("product %s has missing or negative stock", w.ID)
	}
	return domain.Product{
		ID:          string(w.ID),
		Name:        strings.TrimSpace(*w.Name),
		Category:    string(w.Category),
		Subcategory: string(w.Subcategory),
		Price:       *w.Price,
		Stock:       w.Stock.value,
	}, nil
}

// flexName accepts a plain string or an object with a "name".
type flexName string

func (f *flexName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '{' {
		var nested struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &nested); err != nil {
			return err
		}
		*f = flexName(strings.TrimSpace(nested.Name))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexName(strings.TrimSpace(s))
	return nil
}

type wireDiscount struct {
	ID                 flexID     `json:"id"`
	Code               *string    `json:"code"`
	Percentage         flexInt    `json:"percentage"`
	DiscountPercentage flexInt    `json:"discount_percentage"`
	Description        string     `json:"description"`
	ValidUntil         *time.Time `json:"valid_until"`
}

func (w wireDiscount) toDomain() (domain.Discount, error) {
	if w.ID == "" {
		return domain.Discount{}, malformed("discount missing id")
	}
	if w.Code == nil || strings.TrimSpace(*w.Code) == "" {
		return domain.Discount{}, malformed("discount %s missing code", w.ID)
	}
	pct := w.Percentage
	if !pct.set {
		pct = w.DiscountPercentage
	}
	if !pct.set || pct.value < 0 || pct.value > 100 {
		return domain.Discount{}, malformed("discount %s percentage missing or out of range", w.ID)
	}
	d := domain.Discount{
		ID:          string(w.ID),
		Code:        strings.TrimSpace(*w.Code),
		Percentage:  pct.value,
		Description: strings.TrimSpace(w.Description),
	}
	if w.ValidUntil != nil {
		until := w.ValidUntil.UTC()
		d.ValidUntil = &until
	}
	return d, nil
}

func malformed(format string, args ...any) error {
	return errors.Wrapf(ErrMalformedResponse, format, args...)
}
