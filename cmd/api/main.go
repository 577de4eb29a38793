// Package main is the entry point for the bar crawl API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/pkordes/barcrawl/backend/internal/config"
	"github.com/pkordes/barcrawl/backend/internal/handler"
	"github.com/pkordes/barcrawl/backend/internal/logging"
	"github.com/pkordes/barcrawl/backend/internal/metrics"
	"github.com/pkordes/barcrawl/backend/internal/notify"
	"github.com/pkordes/barcrawl/backend/internal/repo"
	"github.com/pkordes/barcrawl/backend/internal/service"
	"github.com/pkordes/barcrawl/backend/internal/worker"
	"github.com/pkordes/barcrawl/backend/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	sqlDB := stdlib.OpenDBFromPool(pool)
	applied, err := migrations.Up(context.Background(), sqlDB)
	_ = sqlDB.Close()
	if err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied", "count", applied)

	// --- Notifications ----------------------------------------------------
	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if cfg.RabbitMQURL != "" {
		rabbit, err := notify.DialRabbit(cfg.RabbitMQURL)
		if err != nil {
			slog.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer func() { _ = rabbit.Close() }()
		notifier = rabbit
		slog.Info("publishing routing notifications to rabbitmq")
	}

	// --- Services ---------------------------------------------------------
	m := metrics.New()
	store := repo.NewStore(pool)
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithRoutingParams(cfg.Routing),
		service.WithNotifier(notifier),
	}

	routingSvc := service.NewRoutingService(store, opts...)
	dispatcher := worker.NewDispatcher(routingSvc, cfg.Worker, logger, m)
	stopSvc := service.NewStopQueueService(store, dispatcher, opts...)
	groupSvc := service.NewGroupService(store, dispatcher, opts...)
	exportSvc := service.NewExportService(store)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		_ = dispatcher.Run(workerCtx)
	}()

	// --- Router -----------------------------------------------------------
	router := handler.NewRouter(handler.NewServer(stopSvc, groupSvc, exportSvc, logger), handler.RouterConfig{
		JWTSecret:    cfg.JWTSecret,
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Metrics:      m.Handler(),
	})

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Requests have drained, so nothing dispatches any more.
	stopWorkers()
	select {
	case <-workersDone:
	case <-ctx.Done():
		slog.Warn("routing workers did not stop in time")
	}
	slog.Info("server stopped")
}
