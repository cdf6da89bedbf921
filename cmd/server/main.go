package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"reconcile/internal/app"
	"reconcile/internal/config"
	"reconcile/internal/domain"
	"reconcile/internal/handler"
	internalRedis "reconcile/internal/redis"
	"reconcile/internal/repository/postgres"
	"reconcile/internal/service"
	"reconcile/internal/storage"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := app.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	loc, err := cfg.App.Location()
	if err != nil {
		fatal(logger, "invalid configuration", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp, logger)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		fatal(logger, "failed to migrate database", err)
	}
	logger.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		fatal(logger, "failed to connect to redis", err)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	if err := app.RegisterValidators(); err != nil {
		fatal(logger, "failed to register validators", err)
	}

	var uploader service.Uploader
	if cfg.S3.Bucket != "" {
		store, err := storage.NewS3(ctx, storage.S3Config{
			Region:   cfg.S3.Region,
			Bucket:   cfg.S3.Bucket,
			Prefix:   cfg.S3.Prefix,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			fatal(logger, "failed to configure report archive", err)
		}
		uploader = store
		logger.Info("report archive enabled", "store", store.String())
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Wire dependencies.
	server, notifier := wireServer(db, redisClient, nrApp, uploader, loc, logger, cfg)

	go func() {
		if err := notifier.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event relay stopped", "error", err)
		}
	}()

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server error", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fatal(logger, "server forced to shutdown", err)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	uploader service.Uploader,
	loc *time.Location,
	logger *slog.Logger,
	cfg *config.Config,
) (*http.Server, *service.NotificationService) {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	eventBus := internalRedis.NewEventBus(redisClient)

	// Initialize repositories.
	txManager := postgres.NewTxManager(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	// Initialize services.
	calendar := service.NewCalendar(loc)
	notificationService := service.NewNotificationService(eventBus, logger)
	settingsService := service.NewSettingsService(settingsRepo, domain.MatchingSettings{
		AutoMatch:             cfg.Matching.AutoMatch,
		PaymentTimeoutMinutes: cfg.Matching.PaymentTimeoutMinutes,
	})
	ledger := service.NewLedger(paymentRepo, calendar)
	registry := service.NewRegistry(orderRepo, cacheStore, calendar, logger)
	matchingService := service.NewMatchingService(
		txManager, orderRepo, ledger, registry, settingsService,
		lockStore, cacheStore, notificationService, logger,
	)
	reportingService := service.NewReportingService(ledger, orderRepo, cacheStore, calendar, logger)
	orderService := service.NewOrderService(orderRepo, registry, matchingService, cacheStore, notificationService, logger)
	archiveService := service.NewArchiveService(reportingService, uploader, calendar, logger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		WebhookHandler:  handler.NewWebhookHandler(matchingService, settingsService, calendar),
		PaymentHandler:  handler.NewPaymentHandler(matchingService, reportingService, registry, calendar),
		OrderHandler:    handler.NewOrderHandler(orderService),
		SettingsHandler: handler.NewSettingsHandler(settingsService),
		EventsHandler:   handler.NewEventsHandler(notificationService),
		ReportHandler:   handler.NewReportHandler(archiveService, calendar),
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
		Auth:            cfg.Auth,
		Logger:          logger,
	})

	// Create HTTP server. No WriteTimeout: /payments/events holds its connection open.
	return &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}, notificationService
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
