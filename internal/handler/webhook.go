package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reconcile/internal/service"
)

const (
	// SignatureHeader carries hex(HMAC-SHA256(webhook secret, body)).
	SignatureHeader = "X-Soundbox-Signature"

	maxWebhookBody = 64 << 10
)

var defaultTestAmount = decimal.RequireFromString("250.00")

// WebhookHandler handles payment notifications from the soundbox provider.
type WebhookHandler struct {
	matchingService *service.MatchingService
	settingsService *service.SettingsService
	calendar        *service.Calendar
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(matchingService *service.MatchingService, settingsService *service.SettingsService, calendar *service.Calendar) *WebhookHandler {
	return &WebhookHandler{
		matchingService: matchingService,
		settingsService: settingsService,
		calendar:        calendar,
	}
}

// SoundboxPaymentRequest is the notification body sent by the provider.
type SoundboxPaymentRequest struct {
	TransactionID string          `json:"transaction_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	UPIID         string          `json:"upi_id"`
	Provider      string          `json:"provider"`
	Timestamp     string          `json:"timestamp"`
}

// TestPaymentRequest is the optional body of a simulated payment.
type TestPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// MatchResponse is the HTTP response for a payment notification.
type MatchResponse struct {
	TransactionID string `json:"transaction_id"`
	Matched       bool   `json:"matched"`
	OrderID       string `json:"order_id,omitempty"`
	Duplicate     bool   `json:"duplicate"`
}

// Soundbox handles POST /webhook/soundbox
func (h *WebhookHandler) Soundbox(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if err := h.settingsService.VerifySignature(c.Request.Context(), body, c.GetHeader(SignatureHeader)); err != nil {
		respondError(c, err)
		return
	}

	var req SoundboxPaymentRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	ts, err := h.parseTimestamp(req.Timestamp)
	if err != nil {
		respondBadRequest(c, "invalid timestamp")
		return
	}

	outcome, err := h.matchingService.HandlePayment(c.Request.Context(), service.PaymentNotification{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		UPIID:         req.UPIID,
		Provider:      req.Provider,
		Timestamp:     ts,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newMatchResponse(outcome))
}

// Test handles POST /webhook/soundbox/test
func (h *WebhookHandler) Test(c *gin.Context) {
	var req TestPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	amount := defaultTestAmount
	if req.Amount != nil {
		amount = *req.Amount
	}

	provider := "test"
	if cfg, err := h.settingsService.Soundbox(c.Request.Context()); err == nil {
		provider = string(cfg.Provider)
	}

	outcome, err := h.matchingService.HandlePayment(c.Request.Context(), service.PaymentNotification{
		TransactionID: "TEST-" + strings.ToUpper(uuid.New().String()[:8]),
		Amount:        amount,
		UPIID:         "test@upi",
		Provider:      provider,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newMatchResponse(outcome))
}

// parseTimestamp accepts RFC 3339 or a zone-less local time. Empty means now.
func (h *WebhookHandler) parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, h.calendar.Location())
}

func newMatchResponse(o *service.MatchOutcome) MatchResponse {
	return MatchResponse{
		TransactionID: o.Event.TransactionID,
		Matched:       o.Matched,
		OrderID:       o.OrderID,
		Duplicate:     o.Duplicate,
	}
}
