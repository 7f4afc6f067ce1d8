package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvutils/internal/config"
	"github.com/JonMunkholm/csvutils/internal/core"
	"github.com/JonMunkholm/csvutils/internal/logging"
	"github.com/JonMunkholm/csvutils/internal/profiles"
	"github.com/JonMunkholm/csvutils/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	store, err := profiles.Open(ctx, cfg.Profile)
	if err != nil {
		slog.Error("failed to open profile store", "store", cfg.Profile.Store, "error", err)
		os.Exit(1)
	}
	slog.Info("profile store ready", "store", cfg.Profile.Store)

	ws := core.NewWorkspace(store,
		core.WithInferrer(core.Inferrer{SampleRows: cfg.Inference.SampleRows}),
		core.WithUnifyOptions(core.UnifyOptions{
			MinConfidence: cfg.Inference.MinConfidence,
			SampleRows:    cfg.Inference.UnifySampleRows,
		}),
	)
	gate := core.NewImportGate(cfg.Upload.MaxWaitTime)
	server := web.NewServer(ws, gate, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let a running import batch finish before closing connections
		if gate.Busy() {
			slog.Info("waiting for import to complete")
			if err := gate.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("import did not complete in time", "error", err)
			} else {
				slog.Info("import completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := serve(server, store, done); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// starter is the part of web.Server that serve drives.
type starter interface {
	Start() error
}

// serve runs srv until it stops and closes store on every path. done is
// closed once graceful shutdown has finished.
func serve(srv starter, store io.Closer, done <-chan struct{}) error {
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("profile store close failed", "error", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
