// Command aclchaind runs the aclchain ledger daemon: it opens the configured
// state store, restores the newest checkpoint into an empty store, serves
// prometheus metrics, and exports checkpoints on a timer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aclchain/internal/blob"
	"aclchain/internal/checkpoint"
	"aclchain/internal/config"
	"aclchain/internal/handler"
	"aclchain/internal/ledger"
	"aclchain/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "aclchaind:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := ledger.OpenStore(cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close state store", "error", err)
		}
	}()

	blobs, err := blob.Open(context.Background(), cfg.BlobOptions())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	exporter := checkpoint.NewExporter(store, blobs, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// An empty store on a fresh host picks up where the last checkpoint
	// left off.
	snapshot, err := store.ExportState(ctx)
	if err != nil {
		return fmt.Errorf("inspect state store: %w", err)
	}
	if len(snapshot) == 0 {
		restored, err := exporter.Restore(ctx)
		if err != nil {
			return fmt.Errorf("restore checkpoint: %w", err)
		}
		if restored {
			logger.Info("state restored from checkpoint")
		}
	}

	metrics := observability.New(prometheus.DefaultRegisterer)
	l, err := ledger.New(ctx, handler.NewRegistry(logger), store, logger, metrics)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	logger.Info("ledger ready",
		"driver", cfg.Storage.Driver,
		"blob_driver", blobs.Driver(),
		"height", l.Height(),
	)

	go exporter.Run(ctx, cfg.Checkpoint.Interval, l.Height, cfg.Checkpoint.Keep)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	if _, err := exporter.Export(shutdownCtx, l.Height()); err != nil {
		logger.Error("final checkpoint failed", "error", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
