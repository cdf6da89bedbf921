package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the kitchen status of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCooking   OrderStatus = "cooking"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCooking, OrderStatusReady, OrderStatusServed, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus represents whether an order has been paid.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PaymentMethod represents how a paid order was settled.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
)

// OrderItem is a single line of an order.
type OrderItem struct {
	MenuItemID string
	Name       string
	Quantity   int
	Price      decimal.Decimal
}

// Order is the restaurant order as mirrored from the order system.
type Order struct {
	ID            string
	CustomerName  string
	TableNumber   string
	Items         []OrderItem
	Amount        decimal.Decimal // Final amount payable, GST included
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod // Empty until paid
	TransactionID string        // Set when settled by a UPI payment
	PaidAt        time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPending reports whether the order still awaits payment.
func (o *Order) IsPending() bool {
	return o.PaymentStatus == PaymentStatusPending && o.Status != OrderStatusCancelled
}

// Pending projects the order into the registry view.
func (o *Order) Pending() PendingOrder {
	return PendingOrder{
		OrderID:      o.ID,
		CustomerName: o.CustomerName,
		TableNumber:  o.TableNumber,
		Amount:       o.Amount,
		Items:        o.Items,
		CreatedAt:    o.CreatedAt,
	}
}

// PendingOrder is an order awaiting payment.
type PendingOrder struct {
	OrderID      string
	CustomerName string
	TableNumber  string
	Amount       decimal.Decimal
	Items        []OrderItem
	CreatedAt    time.Time
}
