package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/sparkmeet/moderation-worker/internal/config"
	"github.com/sparkmeet/moderation-worker/internal/database"
	"github.com/sparkmeet/moderation-worker/internal/dto"
	"github.com/sparkmeet/moderation-worker/internal/handlers"
	"github.com/sparkmeet/moderation-worker/internal/locking"
	"github.com/sparkmeet/moderation-worker/internal/logging"
	"github.com/sparkmeet/moderation-worker/internal/middleware"
	"github.com/sparkmeet/moderation-worker/internal/moderation"
	"github.com/sparkmeet/moderation-worker/internal/realtime"
	"github.com/sparkmeet/moderation-worker/internal/routes"
	"github.com/sparkmeet/moderation-worker/internal/services"
	"github.com/sparkmeet/moderation-worker/internal/storage"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	reviewUser := flag.String("user", "", "run one full review for the given user id and exit")
	flag.Parse()

	cfg := config.Load()

	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.ModerationAPIUser == "" || cfg.ModerationAPISecret == "" {
		slog.Error("MODERATION_API_USER and MODERATION_API_SECRET environment variables are required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:           dsn,
			EnableTracing: false,
			Environment:   os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Redis (per-user review locks)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	// NATS (realtime events)
	nc, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		slog.Error("nats connection failed", "error", err)
		os.Exit(1)
	}

	// Blob storage
	blobs, err := storage.NewS3Store(cfg)
	if err != nil {
		slog.Error("blob store init failed", "error", err)
		os.Exit(1)
	}

	// Services
	vendor := moderation.NewClient(cfg)
	locker := locking.NewRedisLocker(redisClient, cfg.LockTTL)
	notifier := services.NewNotificationService(database.DB, realtime.NewNATSEmitter(nc))
	reviewService := services.NewReviewService(database.DB, cfg, blobs, vendor, locker, notifier)

	// Single-user mode: run one full review and exit.
	if *reviewUser != "" {
		userID, err := uuid.Parse(*reviewUser)
		if err != nil {
			slog.Error("invalid user id", "user", *reviewUser)
			os.Exit(1)
		}
		outcome, err := reviewService.ReviewUser(context.Background(), userID)
		if err != nil {
			slog.Error("user review failed", "user_id", userID, "error", err)
			os.Exit(1)
		}
		slog.Info("user review completed", "user_id", userID, "outcome", outcome)
		return
	}

	// Batch mode: poll the pending-review backlog on a fixed cadence.
	scheduler := services.NewScheduler(reviewService, cfg.ReviewInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	// Admin server (health, metrics, manual trigger)
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))

	healthHandler := handlers.NewHealthHandler(nc)
	reviewHandler := handlers.NewReviewHandler(reviewService, scheduler)
	routes.Setup(app, cfg, healthHandler, reviewHandler)

	go func() {
		slog.Info("admin server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("admin server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down worker...")

	scheduler.Stop()
	cancel()
	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("admin server shutdown error", "error", err)
	}
	nc.Close()
	if err := redisClient.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("worker stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}
