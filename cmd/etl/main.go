package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/kp-forecast-etl/internal/adapter/http"
	"github.com/couchcryptid/kp-forecast-etl/internal/app"
	"github.com/couchcryptid/kp-forecast-etl/internal/config"
	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	if cfg.RunOnce {
		os.Exit(runOnce(ctx, a, logger))
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.Pipeline, a.Pipeline, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduled pipeline.
	go func() {
		if err := a.Pipeline.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := a.Close(); err != nil {
		logger.Error("resource close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// runOnce performs a single forecast run and returns the process exit code.
func runOnce(ctx context.Context, a *app.App, logger *slog.Logger) int {
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("resource close error", "error", err)
		}
	}()

	run, err := a.Pipeline.RunOnce(ctx)
	if err != nil {
		logger.Error("forecast run failed", "run_id", run.ID, "error", err)
		return 1
	}
	return 0
}
