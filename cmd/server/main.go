package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/profilesync"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/storage"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdout := logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := database.MigrateLogs(database.DB); err != nil {
		slog.Error("log table migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	logging.Attach(stdout, pgLogHandler)

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Object storage and local staging for picked avatars
	bucket, err := storage.New(ctx, cfg)
	if err != nil {
		slog.Error("object storage setup failed", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	staging, err := storage.NewStagingArea(cfg.StagingDir, cfg.MaxAvatarBytes)
	if err != nil {
		slog.Error("staging area setup failed", "dir", cfg.StagingDir, "error", err)
		os.Exit(1)
	}

	// Optional profile cache
	var profileCache *cache.ProfileCache
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, profile cache disabled", "error", err)
		} else {
			defer rdb.Close()
			profileCache = cache.NewProfileCache(rdb, time.Hour)
			slog.Info("profile cache enabled")
		}
	}

	// Optional outbox relay to Kafka
	var publisher *events.Publisher
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		publisher = events.NewPublisher(database.DB, events.NewKafkaWriter(brokers), 2*time.Second)
		go publisher.Start(ctx)
		slog.Info("outbox publisher started", "brokers", brokers)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// Services
	authService := services.NewAuthService(database.DB, cfg)
	profileStore := services.NewProfileStore(database.DB, profileCache)
	workflow := profilesync.NewWorkflow(profileStore, bucket, staging,
		profilesync.WithRecorder(collector),
	)

	// Handlers
	h := routes.Handlers{
		Auth:    handlers.NewAuthHandler(authService, collector),
		Profile: handlers.NewProfileHandler(workflow, staging),
		Health:  handlers.NewHealthHandler(handlers.PingFunc(database.Ping), bucket),
		Metrics: metrics.Handler(registry),
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.MaxAvatarBytes) + 1024*1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${respHeader:X-Request-ID}\n",
	}))
	app.Use(middleware.Metrics(collector))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	routes.Setup(app, cfg, authService, h)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "storage", cfg.StorageDriver)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	stop()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			slog.Error("kafka writer close error", "error", err)
		}
	}
	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}
