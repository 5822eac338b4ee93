package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/config"
)

// Version is set at build time
var Version = "dev"

// Run is the main entry point for the application
func Run() error {
	// Load configuration (reads .env when present)
	cfg := config.Load()

	if err := logging.InitGlobalLogger(cfg.LogLevel, "json", cfg.LogFile); err != nil {
		return err
	}
	defer logging.MustSync()

	logging.Info("Starting stripe webhook router",
		logging.Int("cpus", runtime.NumCPU()),
		logging.String("version", Version),
	)

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	app.Refresher.Start()

	srv := app.NewServer()
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-srv.Errors():
		if err != nil {
			logging.Error("Server stopped unexpectedly", err)
			return err
		}
	}

	logging.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
