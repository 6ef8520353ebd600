package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/pdfextract-worker/internal/config"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
	"github.com/adverant/nexus/pdfextract-worker/internal/queue"
	"github.com/adverant/nexus/pdfextract-worker/internal/storage"
)

// queueConsumer is satisfied by both queue backends
type queueConsumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

func workerCmd() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume process-pdf jobs from the Redis queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runWorker(cmd.Context(), cfg, shutdownTimeout)
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "how long to wait for in-flight jobs on shutdown")
	return cmd
}

func runWorker(parent context.Context, cfg *config.Config, shutdownTimeout time.Duration) error {
	logger := logging.NewLogger("worker")
	logger.Info("Starting PDF extraction worker",
		"queue_backend", cfg.QueueBackend,
		"queue", cfg.QueueName,
		"concurrency", cfg.WorkerConcurrency,
		"max_file_size", cfg.MaxFileSize,
		"ocr_languages", cfg.OCRLanguages)

	// Job ledger is optional
	var recorder queue.JobRecorder
	if cfg.DatabaseURL != "" {
		ledger, err := storage.NewJobLedger(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize job ledger: %w", err)
		}
		defer func() {
			stats := ledger.GetStats()
			logger.Info("Closing job ledger",
				"open_connections", stats.OpenConnections,
				"in_use", stats.InUse,
				"wait_count", stats.WaitCount)
			if err := ledger.Close(); err != nil {
				logger.Warn("Error closing job ledger", "error", err)
			}
		}()

		schemaCtx, cancel := context.WithTimeout(parent, 10*time.Second)
		err = ledger.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to prepare job ledger schema: %w", err)
		}
		recorder = ledger
		logger.Info("Job ledger initialized")
	} else {
		logger.Info("DATABASE_URL not set, job ledger disabled")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	pipeline, err := newPipeline(cfg, logger.With("stage", "pipeline"))
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	handler, err := queue.NewJobHandler(&queue.HandlerConfig{
		Processor:   pipeline,
		Publisher:   queue.NewRedisEventPublisher(rdb, cfg.EventStreamPrefix),
		Recorder:    recorder,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logger.With("stage", "handler"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize job handler: %w", err)
	}

	consumer, err := newConsumer(cfg, handler, shutdownTimeout, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	logger.Info("Worker is ready, waiting for jobs", "event_stream_prefix", cfg.EventStreamPrefix)

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining in-flight jobs")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := consumer.Stop(stopCtx); err != nil {
		logger.Error("Error stopping queue consumer", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

func newConsumer(cfg *config.Config, handler *queue.JobHandler, shutdownTimeout time.Duration, logger *logging.Logger) (queueConsumer, error) {
	switch cfg.QueueBackend {
	case config.QueueBackendList:
		consumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:    cfg.RedisURL,
			QueueName:   cfg.QueueName,
			Concurrency: cfg.WorkerConcurrency,
			Handler:     handler,
			Logger:      logger.With("backend", "list"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize list consumer: %w", err)
		}
		return consumer, nil
	default:
		consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:        cfg.RedisURL,
			QueueName:       cfg.QueueName,
			Concurrency:     cfg.WorkerConcurrency,
			Handler:         handler,
			ShutdownTimeout: shutdownTimeout,
			Logger:          logger.With("backend", "asynq"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize asynq consumer: %w", err)
		}
		return consumer, nil
	}
}
