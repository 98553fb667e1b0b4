package main

import (
	"context"
	"os"
	"time"

	"fonreal/internal/amqp"
	"fonreal/internal/cli"
	"fonreal/internal/log"
	"fonreal/internal/storage"
	"fonreal/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting fonreal-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger.WithComponent(log.ComponentStorage))
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	upstream, err := cli.OpenUpstream(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize upstream source", log.FieldError, err)
		os.Exit(1)
	}
	defer upstream.Cleanup()

	var consumer worker.RefreshConsumer
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		consumer = amqpClient
	} else {
		logger.Info("AMQP disabled - running periodic imports only", "interval", cfg.RefreshInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	importer := worker.NewImporter(upstream.Source, repo, cli.RetryPolicy(cfg), logger.WithComponent(log.ComponentWorker))
	if err := importer.Run(ctx, consumer, cfg.RefreshInterval); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("fonreal-worker stopped gracefully")
}
