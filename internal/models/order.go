package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the kitchen-side state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderCompleted, OrderCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// orderTransitions lists the allowed next states. Completed orders may
// still be cancelled for the refund path; cancelled is terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady, OrderCancelled},
	OrderReady:     {OrderCompleted, OrderCancelled},
	OrderCompleted: {OrderCancelled},
	OrderCancelled: {},
}

// CanTransitionTo reports whether the status may move to next. Moving
// to the same status is always allowed so repeated updates stay
// idempotent.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the billing state of an order.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// CanTransitionTo allows unpaid to be paid and paid to be refunded;
// refunded is terminal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	switch {
	case s == PaymentUnpaid && next == PaymentPaid:
		return true
	case s == PaymentPaid && next == PaymentRefunded:
		return true
	}
	return false
}

// Order is one customer order. TotalPrice is the rules-engine final
// price captured at creation; EstimatedPrepMinutes feeds the kitchen
// queue delay for later orders.
type Order struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               int             `json:"user_id"`
	Status               OrderStatus     `json:"status"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	EstimatedPrepMinutes int             `json:"estimated_prep_minutes"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// OrderItem is one line of an order. PriceSnapshot is the unit price
// at order time; menu edits never touch it.
type OrderItem struct {
	ID            int             `json:"id"`
	OrderID       uuid.UUID       `json:"order_id"`
	CoffeeID      int             `json:"coffee_id"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}
