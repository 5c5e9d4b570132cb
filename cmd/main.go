/**
 * @description
 * This is the main entry point for SubWatch.
 * It loads configuration, connects to Postgres (and optionally Redis and RabbitMQ),
 * starts the daily renewal reminder cron job and serves the HTTP API until a
 * termination signal arrives.
 */
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Cxsmxnaut/subwatch/internal/api"
	"github.com/Cxsmxnaut/subwatch/internal/app"
	"github.com/Cxsmxnaut/subwatch/internal/config"
	"github.com/Cxsmxnaut/subwatch/internal/store"
	"github.com/Cxsmxnaut/subwatch/pkg/emailclient"
	"github.com/Cxsmxnaut/subwatch/pkg/identityclient"
	"github.com/Cxsmxnaut/subwatch/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	// Load application configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.RunMigrations {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("failed to run database migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	// Establish database connection with connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching so the pool works behind pgbouncer
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	opts := app.ReminderOptions{
		From:        cfg.ReminderFromAddress,
		Location:    cfg.Location(),
		Concurrency: cfg.ReminderConcurrency,
		Exchange:    cfg.EventsExchange,
	}

	if cfg.ReminderLedgerEnabled {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup; reminders will be sent without dedupe until it recovers", "error", err)
		}
		opts.Ledger = store.NewRedisReminderLedger(redisClient, cfg.RedisKeyPrefix)
		logger.Info("reminder ledger enabled")
	}

	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("failed to connect to RabbitMQ; reminder events will not be published", "error", err)
		} else {
			defer producer.Close()
			opts.Publisher = producer
			logger.Info("rabbitmq producer connected")
		}
	}

	// Initialize dependencies
	repository := store.NewRepository(dbpool)
	identity := identityclient.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
	mailer := emailclient.NewClient(cfg.ResendBaseURL, cfg.ResendAPIKey)
	notifier := app.NewReminderNotifier(repository, identity, mailer, logger, opts)
	service := app.NewService(repository, cfg.FreeTierLimit, cfg.Location())

	jobs := app.NewJobs(notifier, logger, *cfg)
	scheduler := app.NewScheduler(jobs, logger, *cfg)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler started", "jobs", scheduler.Entries())

	handler := api.NewHandler(service, notifier, cfg.ReminderTriggerToken, logger).
		WithReminderTimeout(cfg.ReminderJobTimeout)
	router := api.NewRouter(handler, api.RouterConfig{
		Auth: api.AuthMiddlewareConfig{
			JWTSecret:        cfg.SupabaseJWTSecret,
			ExpectedAudience: "authenticated",
		},
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("could not start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	stopCtx := scheduler.Stop()
	<-stopCtx.Done() // Wait for a running reminder job to finish
	logger.Info("subwatch stopped gracefully")
}
