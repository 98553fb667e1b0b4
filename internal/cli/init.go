// Package cli holds the start-up steps shared by cmd/fonreal,
// cmd/fonreal-worker and cmd/fonctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fonreal/internal/backend"
	"fonreal/internal/backoff"
	"fonreal/internal/chart"
	"fonreal/internal/config"
	"fonreal/internal/dataset"
	"fonreal/internal/log"
	"fonreal/internal/pipeline"
)

// SetupLogger builds the process logger at level and installs it as the
// slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.LevelFromString(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// RetryPolicy turns FETCH_RETRIES into a backoff policy. The first try is
// not a retry.
func RetryPolicy(cfg *config.Config) backoff.Policy {
	p := backoff.DefaultPolicy
	p.Attempts = cfg.FetchRetries + 1
	return p
}

// LoaderOptions configures a dataset.Loader from cfg.
func LoaderOptions(cfg *config.Config, logger *log.Logger) []dataset.LoaderOption {
	return []dataset.LoaderOption{
		dataset.WithPolicy(RetryPolicy(cfg)),
		dataset.WithLogger(logger.WithComponent(log.ComponentDataset)),
		dataset.WithFailureTTL(cfg.DatasetFailureTTL),
		dataset.WithVersionCheck(cfg.SnapshotCheckInterval),
	}
}

// NewPipeline builds the chart pipeline from the style file and logo
// settings.
func NewPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	palette := chart.DefaultPalette()
	if cfg.StyleFile != "" {
		p, err := chart.LoadPalette(cfg.StyleFile)
		if err != nil {
			return nil, fmt.Errorf("load style file: %w", err)
		}
		palette = p
	}
	opts := chart.DefaultOptions()
	if cfg.LogoURL != "" {
		opts.LogoURL = cfg.LogoURL
	}
	return pipeline.New(palette, opts), nil
}

// OpenSource creates the dataset source named by DATA_BACKEND.
func OpenSource(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateSource(ctx, bcfg)
}

// OpenUpstream creates the source an import reads from. A sqlite backend
// cannot import from itself, so it falls back to DATASET_URL.
func OpenUpstream(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	if bcfg.Type == backend.SQLiteBackend {
		bcfg.Type = backend.HTTPBackend
	}
	return backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateSource(ctx, bcfg)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM. cleanup then runs
// with a context bounded by timeout, and done is closed once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
