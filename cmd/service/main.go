// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/Aditya130805/Crux/internal/api"
	"github.com/Aditya130805/Crux/internal/cache"
	"github.com/Aditya130805/Crux/internal/config"
	"github.com/Aditya130805/Crux/internal/github"
	"github.com/Aditya130805/Crux/internal/storage"
	"github.com/Aditya130805/Crux/internal/syncer"
	"github.com/Aditya130805/Crux/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection; storage applies its own migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	metrics := telemetry.New()

	store, err := storage.New(dbpool, cfg.DBURL, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	readCache, err := cache.New(cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	if readCache != nil {
		logger.Info("Redis cache enabled")
	}

	// 5. Initialize application components
	newClient := func(token string) syncer.API {
		return github.NewClient(token, logger, metrics)
	}
	appSyncer := syncer.NewSyncer(store, newClient, logger, metrics, cfg.SnapshotWindowDays, cfg.MonthsBack)
	router := api.NewRouter(store, appSyncer, readCache, metrics.Handler(), logger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	// 6. Run the server until a shutdown signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("Server stopped cleanly")
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
