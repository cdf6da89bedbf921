package domain

import "time"

// MatchingSettings controls automatic matching.
type MatchingSettings struct {
	AutoMatch             bool
	PaymentTimeoutMinutes int // Only orders created this recently are candidates; 0 disables the window
	UpdatedAt             time.Time
}

// DefaultMatchingSettings returns the settings used before an operator saves any.
func DefaultMatchingSettings() MatchingSettings {
	return MatchingSettings{
		AutoMatch:             true,
		PaymentTimeoutMinutes: 15,
	}
}

// Window returns the candidate window, or zero when unlimited.
func (s MatchingSettings) Window() time.Duration {
	if s.PaymentTimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(s.PaymentTimeoutMinutes) * time.Minute
}

// SoundboxProvider identifies the soundbox vendor.
type SoundboxProvider string

const (
	SoundboxProviderPaytm   SoundboxProvider = "paytm"
	SoundboxProviderPhonePe SoundboxProvider = "phonepe"
	SoundboxProviderGPay    SoundboxProvider = "gpay"
	SoundboxProviderOther   SoundboxProvider = "other"
)

// Valid reports whether p is a known provider.
func (p SoundboxProvider) Valid() bool {
	switch p {
	case SoundboxProviderPaytm, SoundboxProviderPhonePe, SoundboxProviderGPay, SoundboxProviderOther:
		return true
	}
	return false
}

// SoundboxConfig is the merchant's soundbox setup.
type SoundboxConfig struct {
	ID            string
	Provider      SoundboxProvider
	MerchantUPIID string
	MerchantName  string
	WebhookSecret string
	IsActive      bool
	LastPing      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
