package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPackaging OrderStatus = "PACKAGING"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// OrderStatuses lists every valid status.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusPackaging,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCanceled,
	}
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	for _, v := range OrderStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// DefaultCancellationWindow is how long after creation an order may be canceled.
const DefaultCancellationWindow = 14 * 24 * time.Hour

// Order is a checked-out cart. TotalAmount is fixed at checkout; the units
// in Items stay committed until the order is canceled.
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Status      OrderStatus     `json:"status"`
	Items       []LineItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CancelableAt reports whether the order is still inside window at now.
// The boundary is inclusive.
func (o *Order) CancelableAt(now time.Time, window time.Duration) bool {
	return now.Sub(o.CreatedAt) <= window
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	return &cp
}
