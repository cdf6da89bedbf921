package app

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"reconcile/internal/config"
	"reconcile/internal/handler"
	"reconcile/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	WebhookHandler  *handler.WebhookHandler
	PaymentHandler  *handler.PaymentHandler
	OrderHandler    *handler.OrderHandler
	SettingsHandler *handler.SettingsHandler
	EventsHandler   *handler.EventsHandler
	ReportHandler   *handler.ReportHandler
	RedisClient     *redis.Client // Optional, enables Idempotency-Key support
	NewRelicApp     *newrelic.Application
	Auth            config.AuthConfig
	Logger          *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	operator := middleware.OperatorAuth(deps.Auth.JWTSecret, deps.Auth.Issuer)

	// Soundbox provider and order system callbacks.
	webhook := router.Group("/webhook")
	{
		webhook.POST("/soundbox", deps.WebhookHandler.Soundbox)
		webhook.POST("/soundbox/test", operator, deps.WebhookHandler.Test)
	}

	orders := router.Group("/orders")
	{
		orders.POST("", deps.OrderHandler.Upsert)
		orders.GET("/:id", deps.OrderHandler.GetOrder)
		orders.POST("/:id/status", deps.OrderHandler.UpdateStatus)
	}

	// Reconciliation dashboard routes.
	payments := router.Group("/payments")
	{
		payments.GET("/history", deps.PaymentHandler.History)
		payments.GET("/unmatched", deps.PaymentHandler.Unmatched)
		payments.GET("/stats", deps.PaymentHandler.Stats)
		payments.GET("/events", deps.EventsHandler.Stream)
		payments.GET("/pending/:date", deps.PaymentHandler.Pending)
		payments.GET("/:date", deps.PaymentHandler.ByDate)

		// Manual override.
		payments.POST("/:id/match/:order_id", operator, deps.PaymentHandler.ManualMatch)
		payments.POST("/:id/mark-cash", operator, deps.PaymentHandler.MarkCash)
		payments.DELETE("/:id", operator, deps.PaymentHandler.Cancel)
	}

	settings := router.Group("/settings", operator)
	{
		settings.GET("/matching", deps.SettingsHandler.GetMatching)
		settings.PUT("/matching", deps.SettingsHandler.UpdateMatching)
	}

	soundbox := router.Group("/soundbox", operator)
	{
		soundbox.GET("/config", deps.SettingsHandler.GetSoundbox)
		soundbox.POST("/config", deps.SettingsHandler.CreateSoundbox)
		soundbox.PUT("/config", deps.SettingsHandler.UpdateSoundbox)
		soundbox.DELETE("/config", deps.SettingsHandler.DeleteSoundbox)
		soundbox.POST("/test-connection", deps.SettingsHandler.TestConnection)
	}

	reports := router.Group("/reports")
	{
		reports.GET("/:date", deps.ReportHandler.GetReport)
		reports.POST("/:date/archive", operator, deps.ReportHandler.Archive)
	}

	return router
}
