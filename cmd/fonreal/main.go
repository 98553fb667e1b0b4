package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"fonreal/internal/amqp"
	"fonreal/internal/cache"
	"fonreal/internal/cli"
	"fonreal/internal/config"
	"fonreal/internal/dataset"
	apphttp "fonreal/internal/http"
	"fonreal/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	pipe, err := cli.NewPipeline(cfg)
	if err != nil {
		logger.Error("Failed to build chart pipeline", log.FieldError, err, "style_file", cfg.StyleFile)
		os.Exit(1)
	}

	src, err := cli.OpenSource(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dataset source", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer src.Cleanup()

	loader := dataset.NewLoader(src.Source, cfg.DatasetTTL, cli.LoaderOptions(cfg, logger)...)

	// Without a table there is nothing to serve.
	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout(cfg))
	table, err := loader.Load(startCtx)
	cancelStart()
	if err != nil {
		logger.Error("Initial dataset load failed", log.FieldError, err, log.FieldSource, src.Source.Name())
		os.Exit(1)
	}
	logger.Info("Dataset loaded", log.NewFields().WithDataset(src.Source.Name(), table.Len()).ToSlice()...)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache))
	caches.Register(loader.Cache())
	caches.StartCleanup(cfg.DatasetTTL / 4)

	var publisher apphttp.RefreshPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - refresh only invalidates the local cache")
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:             ":" + cfg.Port,
		Loader:           loader,
		Pipeline:         pipe,
		Publisher:        publisher,
		RefreshPerMinute: cfg.RefreshPerMinute,
		LogoURL:          cfg.LogoURL,
		Logger:           logger.WithComponent(log.ComponentHTTP),
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
	})

	if src.Watch != nil {
		err := src.Watch(ctx, func() {
			logger.Info("Dataset file changed, invalidating cache", log.FieldSource, src.Source.Name())
			loader.Invalidate()
		})
		if err != nil {
			logger.Warn("Dataset watch disabled", log.FieldError, err)
		}
	}

	logger.Info("Starting fonreal server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// startupTimeout leaves room for every retry of the initial fetch.
func startupTimeout(cfg *config.Config) time.Duration {
	p := cli.RetryPolicy(cfg)
	total := time.Duration(p.Attempts) * cfg.FetchTimeout
	for i := 0; i < p.Attempts-1; i++ {
		total += p.Delay(i)
	}
	return total
}
