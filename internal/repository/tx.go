package repository

import "context"

// Repositories groups the repositories that take part in a transaction.
type Repositories struct {
	Payments PaymentRepository
	Orders   OrderRepository
}

// TxManager runs a function inside a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
