package repository

import (
	"context"
	"time"

	"reconcile/internal/domain"
)

// PaymentFilter narrows a ledger query. Zero values mean "no constraint".
type PaymentFilter struct {
	From    time.Time // Inclusive, on the provider timestamp
	To      time.Time // Exclusive
	Matched *bool
	Limit   int
}

// PaymentRepository defines the persistence operations for the payment ledger.
type PaymentRepository interface {
	// Create appends a payment event.
	// Returns ErrDuplicate if the transaction id is already recorded.
	Create(ctx context.Context, event *domain.PaymentEvent) error

	// GetByTransactionID retrieves a payment event by transaction id.
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentEvent, error)

	// MarkMatched sets the match fields of an unmatched event.
	// Returns ErrNotFound if the event does not exist and ErrConflict if it is already matched.
	MarkMatched(ctx context.Context, transactionID, orderID string, method domain.MatchMethod, at time.Time) error

	// List returns events newest first.
	List(ctx context.Context, filter PaymentFilter) ([]*domain.PaymentEvent, error)
}
