package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reconcile/internal/service"
)

// ReportHandler handles daily report export.
type ReportHandler struct {
	archiveService *service.ArchiveService
	calendar       *service.Calendar
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(archiveService *service.ArchiveService, calendar *service.Calendar) *ReportHandler {
	return &ReportHandler{
		archiveService: archiveService,
		calendar:       calendar,
	}
}

// ArchiveResponse is the HTTP response for an archived report.
type ArchiveResponse struct {
	Date     string `json:"date"`
	Location string `json:"location"`
}

// GetReport handles GET /reports/:date
func (h *ReportHandler) GetReport(c *gin.Context) {
	day, err := h.calendar.Parse(c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.archiveService.Report(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, report)
}

// Archive handles POST /reports/:date/archive
func (h *ReportHandler) Archive(c *gin.Context) {
	day, err := h.calendar.Parse(c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	location, err := h.archiveService.Archive(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, ArchiveResponse{
		Date:     h.calendar.Key(day),
		Location: location,
	})
}
