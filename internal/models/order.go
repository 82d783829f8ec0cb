package models

import "time"

type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type Order struct {
	OrderID      string      `json:"order_id"`
	RequestID    string      `json:"request_id,omitempty"`
	TurnNumber   string      `json:"turn_number"`
	BusinessDate string      `json:"business_date"`
	Channel      string      `json:"channel,omitempty"`
	Items        []OrderItem `json:"items"`
	Total        int64       `json:"total"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	PaidAt       *time.Time  `json:"paid_at,omitempty"`
	ReadyAt      *time.Time  `json:"ready_at,omitempty"`
	DisplayedAt  *time.Time  `json:"displayed_at,omitempty"`
	DeliveredAt  *time.Time  `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time  `json:"cancelled_at,omitempty"`
}

const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusInKitchen      = "IN_KITCHEN"
	StatusReady          = "READY"
	StatusOnDisplay      = "ON_DISPLAY"
	StatusDelivered      = "DELIVERED"
	StatusCancelled      = "CANCELLED"
)

// IsTerminal reports whether no further transition can leave status.
func IsTerminal(status string) bool {
	return status == StatusDelivered || status == StatusCancelled
}

// IsSale reports whether an order in status counts towards sales, i.e. it
// has been paid.
func IsSale(status string) bool {
	switch status {
	case StatusInKitchen, StatusReady, StatusOnDisplay, StatusDelivered:
		return true
	default:
		return false
	}
}

// ItemsTotal sums unit price times quantity over items.
func ItemsTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}
