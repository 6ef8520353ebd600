/**
 * Queue Consumer for the PDF extraction worker
 *
 * Consumes process-pdf tasks with Asynq. A job's outcome is carried by its
 * terminal result message, so failed jobs are never retried.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
)

// Consumer handles job consumption from an Asynq queue
type Consumer struct {
	client  *asynq.Client
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler *JobHandler
	config  *ConsumerConfig
	logger  *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Handler     *JobHandler
	// ShutdownTimeout bounds how long Stop waits for running tasks
	ShutdownTimeout time.Duration
	Logger          *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Handler == nil {
		return nil, fmt.Errorf("Handler is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("asynq-consumer")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     cfg.Concurrency,
			ShutdownTimeout: cfg.ShutdownTimeout,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warn("Task processing error", "type", task.Type(), "error", err)
			}),
			Logger: &asynqLogger{logger: logger},
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:  client,
		server:  server,
		mux:     mux,
		handler: cfg.Handler,
		config:  cfg,
		logger:  logger,
	}

	mux.HandleFunc(TaskTypeProcessPDF, consumer.handleProcessPDF)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	c.logger.Info("Queue consumer stopped")
	return nil
}

// handleProcessPDF runs one task. A failed job returns an error wrapping
// asynq.SkipRetry so it is archived instead of retried.
func (c *Consumer) handleProcessPDF(ctx context.Context, task *asynq.Task) error {
	// a dequeued job runs to its terminal result; asynq's task deadline and
	// shutdown cancellation do not reach the pipeline
	result := c.handler.Handle(context.WithoutCancel(ctx), task.Payload())

	if w := task.ResultWriter(); w != nil {
		if data, err := json.Marshal(NewResultMessage(result)); err == nil {
			if _, err := w.Write(data); err != nil {
				c.logger.Warn("Failed to store task result", "job_id", result.JobID, "error", err)
			}
		}
	}

	if !result.Success {
		return fmt.Errorf("job %s failed: %s: %w", result.JobID, result.Error, asynq.SkipRetry)
	}
	return nil
}

// asynqLogger routes asynq's internal logging through the worker logger
type asynqLogger struct {
	logger *logging.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
