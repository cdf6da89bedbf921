package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reconcile/internal/repository"
	"reconcile/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// SuccessResponse is returned by operator actions without a body of their own.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Internal errors are attached to the context for logging and hidden from the client.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Detail: "internal error"})
		return
	}
	c.JSON(code, ErrorResponse{Detail: err.Error()})
}

// respondBadRequest sends a 400 with detail.
func respondBadRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: detail})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrSoundboxNotConfigured):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidTransactionID),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidOrderStatus),
		errors.Is(err, service.ErrInvalidOrderItems),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidTimeout),
		errors.Is(err, service.ErrInvalidProvider),
		errors.Is(err, service.ErrInvalidUPIID):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrAlreadyMatched),
		errors.Is(err, service.ErrOrderNotPending),
		errors.Is(err, service.ErrOrderLocked),
		errors.Is(err, service.ErrSoundboxAlreadyConfigured),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized

	// Service unavailable
	case errors.Is(err, service.ErrArchiveDisabled):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
