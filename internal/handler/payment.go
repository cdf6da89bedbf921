package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reconcile/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	matchingService  *service.MatchingService
	reportingService *service.ReportingService
	registry         *service.Registry
	calendar         *service.Calendar
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(
	matchingService *service.MatchingService,
	reportingService *service.ReportingService,
	registry *service.Registry,
	calendar *service.Calendar,
) *PaymentHandler {
	return &PaymentHandler{
		matchingService:  matchingService,
		reportingService: reportingService,
		registry:         registry,
		calendar:         calendar,
	}
}

// HistoryResponse is the HTTP response for the payment history.
type HistoryResponse struct {
	Payments []service.PaymentView `json:"payments"`
	Count    int                   `json:"count"`
}

// UnmatchedResponse is the HTTP response for the unmatched queue.
type UnmatchedResponse struct {
	UnmatchedPayments []service.PaymentView `json:"unmatched_payments"`
	Count             int                   `json:"count"`
}

// ManualMatch handles POST /payments/:id/match/:order_id
func (h *PaymentHandler) ManualMatch(c *gin.Context) {
	err := h.matchingService.ManualMatch(c.Request.Context(), c.Param("id"), c.Param("order_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkCash handles POST /payments/:id/mark-cash
func (h *PaymentHandler) MarkCash(c *gin.Context) {
	if err := h.matchingService.MarkAsCash(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, SuccessResponse{Success: true})
}

// Cancel handles DELETE /payments/:id
func (h *PaymentHandler) Cancel(c *gin.Context) {
	if err := h.matchingService.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, SuccessResponse{Success: true})
}

// History handles GET /payments/history
func (h *PaymentHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondBadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := h.reportingService.History(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, HistoryResponse{
		Payments: service.NewPaymentViews(events),
		Count:    len(events),
	})
}

// Unmatched handles GET /payments/unmatched
func (h *PaymentHandler) Unmatched(c *gin.Context) {
	events, err := h.reportingService.Unmatched(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, UnmatchedResponse{
		UnmatchedPayments: service.NewPaymentViews(events),
		Count:             len(events),
	})
}

// Stats handles GET /payments/stats?date=YYYY-MM-DD
func (h *PaymentHandler) Stats(c *gin.Context) {
	day, ok := h.day(c, c.Query("date"))
	if !ok {
		return
	}

	stats, err := h.reportingService.Stats(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, service.NewStatsView(h.calendar.Key(day), stats))
}

// ByDate handles GET /payments/:date
func (h *PaymentHandler) ByDate(c *gin.Context) {
	day, ok := h.day(c, c.Param("date"))
	if !ok {
		return
	}

	records, err := h.reportingService.Records(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, service.NewRecordViews(records))
}

// Pending handles GET /payments/pending/:date
func (h *PaymentHandler) Pending(c *gin.Context) {
	day, ok := h.day(c, c.Param("date"))
	if !ok {
		return
	}

	orders, err := h.registry.ListPending(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, service.NewPendingOrderViews(orders))
}

// day parses raw as a business date; empty means today. It writes the error
// response itself and reports false on failure.
func (h *PaymentHandler) day(c *gin.Context, raw string) (time.Time, bool) {
	if raw == "" || raw == "today" {
		return h.calendar.Today(), true
	}

	day, err := h.calendar.Parse(raw)
	if err != nil {
		respondError(c, err)
		return time.Time{}, false
	}
	return day, true
}
