package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"reconcile/internal/service"
)

const heartbeatInterval = 15 * time.Second

// EventsHandler streams reconciliation events to operator dashboards.
type EventsHandler struct {
	notificationService *service.NotificationService
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(notificationService *service.NotificationService) *EventsHandler {
	return &EventsHandler{notificationService: notificationService}
}

// Stream handles GET /payments/events as Server-Sent Events.
func (h *EventsHandler) Stream(c *gin.Context) {
	events, cancel := h.notificationService.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(n.Type), n)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now()})
			return true
		}
	})
}
