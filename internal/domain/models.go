package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PromotionalCode struct {
	ID                int    `json:"id"`
	Title             string `json:"title"`
	Code              string `json:"code"`
	Description       string `json:"description"`
	Percentage        int    `json:"percentage"`
	FirstPurchaseOnly bool   `json:"first_purchase_only"`
}

// RotationState is the persisted pair of promotional codes and the moment
// (epoch milliseconds) at which it was drawn.
type RotationState struct {
	Codes      []PromotionalCode `json:"codes"`
	SelectedAt int64             `json:"selected_at"`
}

func (s RotationState) SelectedTime() time.Time {
	return time.UnixMilli(s.SelectedAt)
}

type RotationSnapshot struct {
	Codes      []PromotionalCode `json:"codes"`
	SelectedAt time.Time         `json:"selected_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Remaining  time.Duration     `json:"-"`
	Countdown  string            `json:"countdown"`
}

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	SellerID    string          `json:"seller_id,omitempty"`
}

type Order struct {
	ID                 string           `json:"id"`
	BuyerID            string           `json:"buyer_id"`
	BuyerName          string           `json:"buyer_name,omitempty"`
	Items              []OrderItem      `json:"items"`
	TotalPrice         decimal.Decimal  `json:"total_price"`
	OriginalPrice      *decimal.Decimal `json:"original_price,omitempty"`
	Status             OrderStatus      `json:"status"`
	DiscountPercentage *int             `json:"discount_percentage,omitempty"`
	DiscountCode       string           `json:"discount_code,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type ProductInput struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type Discount struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Percentage  int        `json:"percentage"`
	Description string     `json:"description,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
}

// Actor is the caller behind a request. Verified is set only when the token
// signature was checked locally.
type Actor struct {
	UserID   string
	Token    string
	Verified bool
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type PendingChange struct {
	OrderID string      `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

type OrderRow struct {
	Order
	StatusLabel string `json:"status_label"`
	StatusColor string `json:"status_color"`
	StatusIcon  string `json:"status_icon"`
	PendingTo   string `json:"pending_status,omitempty"`
}

type OrderListResponse struct {
	Orders []OrderRow `json:"orders"`
	Count  int        `json:"count"`
}

type ProductListResponse struct {
	Products []Product    `json:"products"`
	Count    int          `json:"count"`
	Stats    ProductStats `json:"stats"`
}

type OrderStats struct {
	Total           int                 `json:"total"`
	ByStatus        map[OrderStatus]int `json:"by_status"`
	TotalSales      decimal.Decimal     `json:"total_sales"`
	UniqueCustomers int                 `json:"unique_customers"`
	GrowthRate      float64             `json:"growth_rate"`
}

type ProductStats struct {
	Total      int      `json:"total"`
	TotalStock int      `json:"total_stock"`
	OutOfStock int      `json:"out_of_stock"`
	Categories []string `json:"categories"`
}

type MonthlySales struct {
	Month  string          `json:"month"`
	Orders int             `json:"orders"`
	Total  decimal.Decimal `json:"total"`
}

type DashboardSummary struct {
	Orders      OrderStats     `json:"orders"`
	Products    ProductStats   `json:"products"`
	Monthly     []MonthlySales `json:"monthly_sales"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type Notification struct {
	ID      string `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

const (
	NotificationError   = "error"
	NotificationWarning = "warning"
	NotificationSuccess = "success"
)
