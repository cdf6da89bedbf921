package repository

import (
	"context"

	"reconcile/internal/domain"
)

// SettingsRepository persists operator settings.
type SettingsRepository interface {
	// GetMatching returns the saved matching settings, or ErrNotFound.
	GetMatching(ctx context.Context) (*domain.MatchingSettings, error)

	// SaveMatching stores the matching settings.
	SaveMatching(ctx context.Context, settings *domain.MatchingSettings) error

	// GetSoundbox returns the soundbox configuration, or ErrNotFound.
	GetSoundbox(ctx context.Context) (*domain.SoundboxConfig, error)

	// SaveSoundbox creates or replaces the soundbox configuration.
	SaveSoundbox(ctx context.Context, cfg *domain.SoundboxConfig) error

	// DeleteSoundbox removes the soundbox configuration.
	// Returns ErrNotFound if none exists.
	DeleteSoundbox(ctx context.Context) error
}
