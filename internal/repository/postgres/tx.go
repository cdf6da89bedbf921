package postgres

import (
	"context"
	"database/sql"

	"reconcile/internal/repository"
)

// TxManager is a PostgreSQL implementation of repository.TxManager.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx runs fn with transaction-scoped repositories.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	repos := repository.Repositories{
		Payments: NewPaymentRepositoryWithTx(tx),
		Orders:   NewOrderRepositoryWithTx(tx),
	}

	if err = fn(ctx, repos); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}
