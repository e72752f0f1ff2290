package domain

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// StatusPresentation is how a status is labelled in every list and filter.
type StatusPresentation struct {
	Label      string `json:"label"`
	ColorClass string `json:"color_class"`
	Icon       string `json:"icon"`
}

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusApproved,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusDelivered,
	OrderStatusRefunded,
}

var statusPresentations = map[OrderStatus]StatusPresentation{
	OrderStatusPending:   {Label: "Pending", ColorClass: "bg-yellow-100 text-yellow-800", Icon: "clock"},
	OrderStatusApproved:  {Label: "Approved", ColorClass: "bg-blue-100 text-blue-800", Icon: "check"},
	OrderStatusCompleted: {Label: "Completed", ColorClass: "bg-green-100 text-green-800", Icon: "check-circle"},
	OrderStatusCancelled: {Label: "Cancelled", ColorClass: "bg-red-100 text-red-800", Icon: "x-circle"},
	OrderStatusDelivered: {Label: "Delivered", ColorClass: "bg-indigo-100 text-indigo-800", Icon: "truck"},
	OrderStatusRefunded:  {Label: "Refunded", ColorClass: "bg-gray-100 text-gray-800", Icon: "rotate-ccw"},
}

var unknownPresentation = StatusPresentation{Label: "Unknown", ColorClass: "bg-gray-100 text-gray-500", Icon: "help-circle"}

// OrderStatuses returns the taxonomy in display order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return status, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := statusPresentations[s]
	return ok
}

func (s OrderStatus) Presentation() StatusPresentation {
	if p, ok := statusPresentations[s]; ok {
		return p
	}
	return unknownPresentation
}

func (s OrderStatus) String() string {
	return string(s)
}
