package postgres

import (
	"context"
	"database/sql"
	"errors"

	"reconcile/internal/domain"
	"reconcile/internal/repository"
)

// SettingsRepository is a PostgreSQL implementation of repository.SettingsRepository.
// Both tables hold a single row.
type SettingsRepository struct {
	q Querier
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{q: db}
}

// GetMatching returns the saved matching settings.
func (r *SettingsRepository) GetMatching(ctx context.Context) (*domain.MatchingSettings, error) {
	query := `SELECT auto_match, payment_timeout_minutes, updated_at FROM matching_settings WHERE id = 1`

	var s domain.MatchingSettings
	err := r.q.QueryRowContext(ctx, query).Scan(&s.AutoMatch, &s.PaymentTimeoutMinutes, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &s, nil
}

// SaveMatching stores the matching settings.
func (r *SettingsRepository) SaveMatching(ctx context.Context, settings *domain.MatchingSettings) error {
	query := `
		INSERT INTO matching_settings (id, auto_match, payment_timeout_minutes, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET auto_match = EXCLUDED.auto_match,
			payment_timeout_minutes = EXCLUDED.payment_timeout_minutes,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, query, settings.AutoMatch, settings.PaymentTimeoutMinutes, settings.UpdatedAt)
	return err
}

// GetSoundbox returns the soundbox configuration.
func (r *SettingsRepository) GetSoundbox(ctx context.Context) (*domain.SoundboxConfig, error) {
	query := `
		SELECT id, provider, merchant_upi_id, merchant_name, webhook_secret, is_active, last_ping, created_at, updated_at
		FROM soundbox_configs LIMIT 1
	`

	var cfg domain.SoundboxConfig
	var lastPing sql.NullTime
	err := r.q.QueryRowContext(ctx, query).Scan(
		&cfg.ID,
		&cfg.Provider,
		&cfg.MerchantUPIID,
		&cfg.MerchantName,
		&cfg.WebhookSecret,
		&cfg.IsActive,
		&lastPing,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if lastPing.Valid {
		cfg.LastPing = lastPing.Time
	}

	return &cfg, nil
}

// SaveSoundbox creates or replaces the soundbox configuration.
func (r *SettingsRepository) SaveSoundbox(ctx context.Context, cfg *domain.SoundboxConfig) error {
	query := `
		INSERT INTO soundbox_configs (id, provider, merchant_upi_id, merchant_name, webhook_secret, is_active, last_ping, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET provider = EXCLUDED.provider,
			merchant_upi_id = EXCLUDED.merchant_upi_id,
			merchant_name = EXCLUDED.merchant_name,
			webhook_secret = EXCLUDED.webhook_secret,
			is_active = EXCLUDED.is_active,
			last_ping = EXCLUDED.last_ping,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, query,
		cfg.ID,
		cfg.Provider,
		cfg.MerchantUPIID,
		cfg.MerchantName,
		cfg.WebhookSecret,
		cfg.IsActive,
		nullTime(cfg.LastPing),
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	return err
}

// DeleteSoundbox removes the soundbox configuration.
func (r *SettingsRepository) DeleteSoundbox(ctx context.Context) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM soundbox_configs`)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}
