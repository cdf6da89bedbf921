package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpq" // registers "nrpostgres"
	"github.com/newrelic/go-agent/v3/newrelic"

	"reconcile/internal/config"
)

// NewDatabase opens the PostgreSQL pool. With a New Relic app the nrpq
// driver is used so every ledger and order query shows up as a segment.
// Postgres often comes up after the service in local stacks, so the ping
// is retried cfg.ConnectAttempts times with a linear backoff.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig, nrApp *newrelic.Application, logger *slog.Logger) (*sql.DB, error) {
	driver := "postgres"
	if nrApp != nil {
		driver = "nrpostgres"
	}

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database (%s): %w", driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(5 * time.Minute)

	attempts := max(cfg.ConnectAttempts, 1)
	for i := 1; ; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if i == attempts {
			break
		}
		logger.Warn("database not ready", "attempt", i, "error", err)

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(i) * time.Second):
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempts, err)
}
