package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clipcast/internal/budget"
	"clipcast/internal/config"
	"clipcast/internal/jobs"
	"clipcast/internal/notify"
	"clipcast/internal/processor"
	"clipcast/internal/scheduler"
	"clipcast/internal/server"
	"clipcast/internal/storage"
)

// @title        Clipcast API
// @version      1.0
// @description  Server-side video rendering for short podcast clips.
// @BasePath     /api
func main() {
	// Initialize structured logging
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(config.LogLevel),
	})
	slog.SetDefault(slog.New(jsonHandler))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Durable job store; crash recovery depends on it coming up.
	// Connect retries live in the store for container deploys where the
	// database starts after the service.
	store, err := jobs.Open(ctx, config.DatabaseURL)
	if err != nil {
		slog.Error("Failed to open job store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Daily spend ledger, Redis-backed when configured
	ledger := openLedger(ctx)
	defer ledger.Close()

	// Video storage backend
	videos, err := storage.New(ctx)
	if err != nil {
		slog.Error("Failed to initialize video storage", "error", err)
		os.Exit(1)
	}

	// Per-job pipeline
	proc, err := processor.New(videos)
	if err != nil {
		slog.Error("Failed to create processor", "error", err)
		os.Exit(1)
	}

	// Scheduler: requeues interrupted jobs, then starts dispatching
	sched := scheduler.New(store, ledger, proc, notify.New())
	if err := sched.Start(ctx); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := server.NewServer(port, sched, store, videos)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// Retention sweep keeps the video store bounded; job records stay
	retention := time.Duration(config.RetentionHours) * time.Hour
	sweepTicker := time.NewTicker(1 * time.Hour)
	defer sweepTicker.Stop()

	slog.Info("Clipcast server started",
		"port", port,
		"video_enabled", config.EnableServerVideo,
		"max_concurrent", config.MaxConcurrent,
		"max_queue", config.MaxQueueSize,
		"daily_cap_usd", config.DailySpendingCap,
		"storage", config.StorageBackend,
		"retention_hours", config.RetentionHours)

	for {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig)
			shutdown(srv, sched)
			return
		case <-ctx.Done():
			slog.Info("Context cancelled")
			shutdown(srv, sched)
			return
		case <-sweepTicker.C:
			deleted, err := storage.Sweep(ctx, videos, retention, time.Now())
			if err != nil {
				slog.Error("Retention sweep failed", "error", err)
			} else if deleted > 0 {
				slog.Info("Retention sweep finished", "deleted", deleted)
			}
		}
	}
}

// shutdown stops intake first, then waits for in-flight jobs
func shutdown(srv *server.Server, sched *scheduler.Scheduler) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		slog.Error("Scheduler shutdown incomplete, interrupted jobs will be recovered on restart", "error", err)
	} else {
		slog.Info("Server exited gracefully")
	}
}

// openLedger builds the daily spend ledger. A Redis outage degrades to
// memory-only accounting rather than blocking admission.
func openLedger(ctx context.Context) *budget.Ledger {
	addr := config.RedisAddr()
	if addr == "" {
		slog.Info("Budget ledger running memory-only")
		return budget.New(config.DailySpendingCap)
	}
	ledger, err := budget.NewWithRedis(ctx, config.DailySpendingCap, addr)
	if err != nil {
		slog.Warn("Budget ledger falling back to memory-only", "error", err)
		return budget.New(config.DailySpendingCap)
	}
	return ledger
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
