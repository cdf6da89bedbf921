package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reconcile/internal/domain"
	"reconcile/internal/service"
)

// SettingsHandler handles operator settings and the soundbox configuration.
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// MatchingSettingsRequest is the HTTP request body for updating matching settings.
type MatchingSettingsRequest struct {
	AutoMatch             *bool `json:"auto_match"`
	PaymentTimeoutMinutes *int  `json:"payment_timeout_minutes" binding:"omitempty,min=0,max=1440"`
}

// MatchingSettingsResponse is the HTTP response for matching settings.
type MatchingSettingsResponse struct {
	AutoMatch             bool       `json:"auto_match"`
	PaymentTimeoutMinutes int        `json:"payment_timeout_minutes"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
}

// SoundboxConfigRequest is the HTTP request body for the soundbox configuration.
type SoundboxConfigRequest struct {
	Provider      string `json:"provider" binding:"required,oneof=paytm phonepe gpay other"`
	MerchantUPIID string `json:"merchant_upi_id" binding:"required,upi"`
	MerchantName  string `json:"merchant_name"`
	WebhookSecret string `json:"webhook_secret"`
	IsActive      *bool  `json:"is_active"`
}

// SoundboxConfigResponse is the HTTP response for the soundbox configuration.
// The webhook secret is never echoed back.
type SoundboxConfigResponse struct {
	ID               string     `json:"id"`
	Provider         string     `json:"provider"`
	MerchantUPIID    string     `json:"merchant_upi_id"`
	MerchantName     string     `json:"merchant_name"`
	HasWebhookSecret bool       `json:"has_webhook_secret"`
	IsActive         bool       `json:"is_active"`
	LastPing         *time.Time `json:"last_ping,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// GetMatching handles GET /settings/matching
func (h *SettingsHandler) GetMatching(c *gin.Context) {
	settings, err := h.settingsService.Matching(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newMatchingSettingsResponse(settings))
}

// UpdateMatching handles PUT /settings/matching
func (h *SettingsHandler) UpdateMatching(c *gin.Context) {
	var req MatchingSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	settings, err := h.settingsService.UpdateMatching(c.Request.Context(), service.MatchingUpdate{
		AutoMatch:             req.AutoMatch,
		PaymentTimeoutMinutes: req.PaymentTimeoutMinutes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newMatchingSettingsResponse(settings))
}

// GetSoundbox handles GET /soundbox/config
func (h *SettingsHandler) GetSoundbox(c *gin.Context) {
	cfg, err := h.settingsService.Soundbox(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newSoundboxConfigResponse(cfg))
}

// CreateSoundbox handles POST /soundbox/config
func (h *SettingsHandler) CreateSoundbox(c *gin.Context) {
	in, ok := bindSoundbox(c)
	if !ok {
		return
	}

	cfg, err := h.settingsService.CreateSoundbox(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newSoundboxConfigResponse(cfg))
}

// UpdateSoundbox handles PUT /soundbox/config
func (h *SettingsHandler) UpdateSoundbox(c *gin.Context) {
	in, ok := bindSoundbox(c)
	if !ok {
		return
	}

	cfg, err := h.settingsService.UpdateSoundbox(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newSoundboxConfigResponse(cfg))
}

// DeleteSoundbox handles DELETE /soundbox/config
func (h *SettingsHandler) DeleteSoundbox(c *gin.Context) {
	if err := h.settingsService.DeleteSoundbox(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, SuccessResponse{Success: true})
}

// TestConnection handles POST /soundbox/test-connection
func (h *SettingsHandler) TestConnection(c *gin.Context) {
	cfg, err := h.settingsService.TestConnection(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newSoundboxConfigResponse(cfg))
}

func bindSoundbox(c *gin.Context) (service.SoundboxInput, bool) {
	var req SoundboxConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return service.SoundboxInput{}, false
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	return service.SoundboxInput{
		Provider:      domain.SoundboxProvider(req.Provider),
		MerchantUPIID: req.MerchantUPIID,
		MerchantName:  req.MerchantName,
		WebhookSecret: req.WebhookSecret,
		IsActive:      active,
	}, true
}

func newMatchingSettingsResponse(s domain.MatchingSettings) MatchingSettingsResponse {
	resp := MatchingSettingsResponse{
		AutoMatch:             s.AutoMatch,
		PaymentTimeoutMinutes: s.PaymentTimeoutMinutes,
	}
	if !s.UpdatedAt.IsZero() {
		at := s.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

func newSoundboxConfigResponse(cfg *domain.SoundboxConfig) SoundboxConfigResponse {
	resp := SoundboxConfigResponse{
		ID:               cfg.ID,
		Provider:         string(cfg.Provider),
		MerchantUPIID:    cfg.MerchantUPIID,
		MerchantName:     cfg.MerchantName,
		HasWebhookSecret: cfg.WebhookSecret != "",
		IsActive:         cfg.IsActive,
		CreatedAt:        cfg.CreatedAt,
		UpdatedAt:        cfg.UpdatedAt,
	}
	if !cfg.LastPing.IsZero() {
		at := cfg.LastPing
		resp.LastPing = &at
	}
	return resp
}
