package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/payrail/payrail/internal/eventlog"
	"github.com/payrail/payrail/internal/infra/gateway/payprov"
	"github.com/payrail/payrail/internal/infra/postgres"
	infraredis "github.com/payrail/payrail/internal/infra/redis"
	"github.com/payrail/payrail/internal/ledger"
	"github.com/payrail/payrail/internal/payout"
	"github.com/payrail/payrail/internal/readmodel"
	"github.com/payrail/payrail/internal/transport/httpapi"
	"github.com/payrail/payrail/internal/transport/httpapi/handler"
	"github.com/payrail/payrail/internal/worker"
	"github.com/payrail/payrail/pkg/config"
	"github.com/payrail/payrail/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting payrail API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize database connection pool
	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize Redis client for the best-effort event fan-out. Losing it
	// degrades broadcasts, never correctness, so a failed ping is a warning.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable, event broadcasts disabled", "error", err)
			redisClient = nil
		} else {
			log.Info("Redis connection established")
		}
	}
	publisher := infraredis.NewPublisher(redisClient, log)

	// Initialize repositories
	ledgerRepo := postgres.NewLedgerRepository(db.Pool)
	eventRepo := postgres.NewEventRepository(db.Pool)
	readModelRepo := postgres.NewReadModelRepository(db.Pool)
	payoutRepo := postgres.NewPayoutRepository(db.Pool)
	txManager := postgres.NewTxManager(db.Pool)

	// Sequence allocator: gapless counter row by default, native sequence
	// when skips are acceptable.
	var allocator eventlog.SequenceAllocator
	if cfg.SequenceAllocator == config.SequenceAllocatorSerial {
		allocator = postgres.NewSerialAllocator(db.Pool)
		log.Info("Using skip-tolerant native sequence allocator")
	} else {
		allocator = postgres.NewCounterAllocator(db.Pool)
	}

	// Initialize services
	eventSvc := eventlog.NewService(eventRepo, allocator, log)
	projector := readmodel.NewProjector(readModelRepo, log)
	ledgerSvc := ledger.NewService(ledgerRepo, eventSvc, projector, txManager, log)

	// Bootstrap system accounts (idempotent)
	if err := ledgerSvc.EnsureSystemAccounts(ctx); err != nil {
		log.Error("Failed to bootstrap system accounts", "error", err)
		os.Exit(1)
	}

	// Initialize the worker dispatcher
	dispatcher := worker.NewDispatcher(worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		QueueSize:   cfg.WorkerQueueSize,
		MaxAttempts: cfg.MaxPayoutRetries + 1,
		BackoffBase: cfg.RetryBackoffBase,
		BackoffCap:  cfg.RetryBackoffCap,
	}, log)
	enqueuer := &payout.ProcessEnqueuer{Dispatcher: dispatcher}

	payoutSvc := payout.NewService(
		payoutRepo,
		ledgerSvc,
		eventSvc,
		projector,
		txManager,
		publisher,
		enqueuer,
		payout.Config{MaxRetries: cfg.MaxPayoutRetries},
		log,
	)

	// External provider: real client when configured, in-process sandbox
	// otherwise (development only; Validate rejects this in production).
	var provider payout.Provider
	if cfg.ProviderURL != "" {
		provider = payprov.NewClient(cfg.ProviderURL, cfg.ProviderAPIKey, log)
		log.Info("Payout provider configured", "url", cfg.ProviderURL)
	} else {
		provider = payprov.NewSandbox(log)
		log.Warn("PROVIDER_URL not set, using sandbox provider")
	}

	processor := payout.NewProcessor(payoutSvc, provider, cfg.ProviderTimeout, log)
	dispatcher.Register(payout.TaskKindProcess, processor)
	dispatcher.Start(ctx)

	// Sweeper re-enqueues Pending and stale Processing payouts
	sweeper := payout.NewSweeper(payoutRepo, enqueuer, cfg.SweepInterval, cfg.ProcessingStaleAge, log)
	go sweeper.Run(ctx)

	// Initialize HTTP handlers
	payoutHandler := handler.NewPayoutHandler(payoutSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	accountHandler := handler.NewAccountHandler(ledgerSvc)
	healthHandler := handler.NewHealthHandler(db)

	// Determine allowed origins for CORS
	allowedOrigins := []string{"http://localhost:5173"}
	if cfg.IsProduction() {
		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = []string{origins}
		}
	}

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		AllowedOrigins: allowedOrigins,
		PayoutHandler:  payoutHandler,
		EventHandler:   eventHandler,
		AccountHandler: accountHandler,
		HealthHandler:  healthHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Stop accepting new work, finish the task in hand
	dispatcher.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
