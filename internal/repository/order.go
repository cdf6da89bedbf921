package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
)

// PendingFilter narrows a pending-order query. Zero values mean "no constraint".
type PendingFilter struct {
	From   time.Time // Inclusive, on created_at
	To     time.Time // Exclusive
	Amount *decimal.Decimal
}

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Upsert creates or replaces an order. The payment fields of a paid order are never reset.
	Upsert(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by order id.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListPending returns orders awaiting payment, oldest first (ties broken by id).
	ListPending(ctx context.Context, filter PendingFilter) ([]*domain.Order, error)

	// ListPaid returns orders paid in [from, to), newest first.
	ListPaid(ctx context.Context, from, to time.Time) ([]*domain.Order, error)

	// MarkPaid transitions a pending, non-cancelled order to paid.
	// Returns ErrNotFound if no such pending order exists.
	MarkPaid(ctx context.Context, id string, method domain.PaymentMethod, transactionID string, at time.Time) error

	// Cancel transitions a pending, non-cancelled order to cancelled.
	// Returns ErrNotFound if no such pending order exists.
	Cancel(ctx context.Context, id string, at time.Time) error

	// UpdateStatus updates the kitchen status of an order.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error
}
