package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		order_id        TEXT PRIMARY KEY,
		customer_name   TEXT NOT NULL DEFAULT '',
		table_number    TEXT,
		items           JSONB NOT NULL DEFAULT '[]',
		amount          NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		status          TEXT NOT NULL DEFAULT 'pending',
		payment_status  TEXT NOT NULL DEFAULT 'pending',
		payment_method  TEXT,
		transaction_id  TEXT,
		paid_at         TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_pending_amount_idx
		ON orders (amount, created_at) WHERE payment_status = 'pending' AND status <> 'cancelled'`,
	`CREATE INDEX IF NOT EXISTS orders_paid_at_idx ON orders (paid_at) WHERE payment_status = 'paid'`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              UUID PRIMARY KEY,
		transaction_id  TEXT NOT NULL UNIQUE,
		amount          NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		upi_id          TEXT NOT NULL DEFAULT '',
		provider        TEXT NOT NULL DEFAULT '',
		ts              TIMESTAMPTZ NOT NULL,
		matched         BOOLEAN NOT NULL DEFAULT FALSE,
		order_id        TEXT,
		match_method    TEXT,
		matched_at      TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_order_matched_key ON payments (order_id) WHERE matched`,
	`CREATE INDEX IF NOT EXISTS payments_ts_idx ON payments (ts DESC)`,
	`CREATE TABLE IF NOT EXISTS matching_settings (
		id                       SMALLINT PRIMARY KEY CHECK (id = 1),
		auto_match               BOOLEAN NOT NULL,
		payment_timeout_minutes  INTEGER NOT NULL,
		updated_at               TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS soundbox_configs (
		id               TEXT PRIMARY KEY,
		provider         TEXT NOT NULL,
		merchant_upi_id  TEXT NOT NULL,
		merchant_name    TEXT NOT NULL,
		webhook_secret   TEXT NOT NULL DEFAULT '',
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		last_ping        TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables and indexes the service relies on.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
