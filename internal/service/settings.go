package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"reconcile/internal/domain"
	"reconcile/internal/repository"
)

const maxPaymentTimeoutMinutes = 24 * 60

var upiIDPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,64}$`)

// ValidUPIID reports whether s looks like a UPI virtual payment address.
func ValidUPIID(s string) bool {
	return upiIDPattern.MatchString(s)
}

// SettingsService manages matching settings and the soundbox configuration.
type SettingsService struct {
	repo     repository.SettingsRepository
	defaults domain.MatchingSettings
}

// NewSettingsService creates a new SettingsService. defaults apply until an
// operator saves settings.
func NewSettingsService(repo repository.SettingsRepository, defaults domain.MatchingSettings) *SettingsService {
	return &SettingsService{
		repo:     repo,
		defaults: defaults,
	}
}

// Matching returns the effective matching settings.
func (s *SettingsService) Matching(ctx context.Context) (domain.MatchingSettings, error) {
	settings, err := s.repo.GetMatching(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.defaults, nil
		}
		return domain.MatchingSettings{}, fmt.Errorf("load matching settings: %w", err)
	}
	return *settings, nil
}

// MatchingUpdate contains the fields to change. Nil fields keep their value.
type MatchingUpdate struct {
	AutoMatch             *bool
	PaymentTimeoutMinutes *int
}

// UpdateMatching applies update and returns the stored settings.
func (s *SettingsService) UpdateMatching(ctx context.Context, update MatchingUpdate) (domain.MatchingSettings, error) {
	current, err := s.Matching(ctx)
	if err != nil {
		return domain.MatchingSettings{}, err
	}

	if update.AutoMatch != nil {
		current.AutoMatch = *update.AutoMatch
	}
	if update.PaymentTimeoutMinutes != nil {
		minutes := *update.PaymentTimeoutMinutes
		if minutes < 0 || minutes > maxPaymentTimeoutMinutes {
			return domain.MatchingSettings{}, ErrInvalidTimeout
		}
		current.PaymentTimeoutMinutes = minutes
	}
	current.UpdatedAt = time.Now()

	if err := s.repo.SaveMatching(ctx, &current); err != nil {
		return domain.MatchingSettings{}, fmt.Errorf("save matching settings: %w", err)
	}
	return current, nil
}

// SoundboxInput contains the operator-editable soundbox fields.
type SoundboxInput struct {
	Provider      domain.SoundboxProvider
	MerchantUPIID string
	MerchantName  string
	WebhookSecret string
	IsActive      bool
}

func (in SoundboxInput) validate() error {
	if !in.Provider.Valid() {
		return ErrInvalidProvider
	}
	if !ValidUPIID(in.MerchantUPIID) {
		return ErrInvalidUPIID
	}
	return nil
}

// Soundbox returns the soundbox configuration.
func (s *SettingsService) Soundbox(ctx context.Context) (*domain.SoundboxConfig, error) {
	cfg, err := s.repo.GetSoundbox(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSoundboxNotConfigured
		}
		return nil, err
	}
	return cfg, nil
}

// CreateSoundbox stores the first soundbox configuration.
func (s *SettingsService) CreateSoundbox(ctx context.Context, in SoundboxInput) (*domain.SoundboxConfig, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.Soundbox(ctx); err == nil {
		return nil, ErrSoundboxAlreadyConfigured
	} else if !errors.Is(err, ErrSoundboxNotConfigured) {
		return nil, err
	}

	now := time.Now()
	cfg := &domain.SoundboxConfig{
		ID:            uuid.New().String(),
		Provider:      in.Provider,
		MerchantUPIID: in.MerchantUPIID,
		MerchantName:  in.MerchantName,
		WebhookSecret: in.WebhookSecret,
		IsActive:      in.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.SaveSoundbox(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save soundbox config: %w", err)
	}
	return cfg, nil
}

// UpdateSoundbox replaces the editable fields of the existing configuration.
func (s *SettingsService) UpdateSoundbox(ctx context.Context, in SoundboxInput) (*domain.SoundboxConfig, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	cfg, err := s.Soundbox(ctx)
	if err != nil {
		return nil, err
	}

	cfg.Provider = in.Provider
	cfg.MerchantUPIID = in.MerchantUPIID
	cfg.MerchantName = in.MerchantName
	cfg.WebhookSecret = in.WebhookSecret
	cfg.IsActive = in.IsActive
	cfg.UpdatedAt = time.Now()

	if err := s.repo.SaveSoundbox(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save soundbox config: %w", err)
	}
	return cfg, nil
}

// DeleteSoundbox removes the soundbox configuration.
func (s *SettingsService) DeleteSoundbox(ctx context.Context) error {
	if err := s.repo.DeleteSoundbox(ctx); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSoundboxNotConfigured
		}
		return err
	}
	return nil
}

// TestConnection records a successful ping from the soundbox and activates it.
func (s *SettingsService) TestConnection(ctx context.Context) (*domain.SoundboxConfig, error) {
	cfg, err := s.Soundbox(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cfg.LastPing = now
	cfg.IsActive = true
	cfg.UpdatedAt = now

	if err := s.repo.SaveSoundbox(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save soundbox config: %w", err)
	}
	return cfg, nil
}

// VerifySignature checks a webhook body against the configured secret.
// Deliveries are accepted unsigned until a secret is configured.
func (s *SettingsService) VerifySignature(ctx context.Context, body []byte, signature string) error {
	cfg, err := s.Soundbox(ctx)
	if err != nil {
		if errors.Is(err, ErrSoundboxNotConfigured) {
			return nil
		}
		return err
	}
	if cfg.WebhookSecret == "" {
		return nil
	}

	expected := Sign(cfg.WebhookSecret, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
