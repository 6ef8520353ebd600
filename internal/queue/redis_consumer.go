/**
 * Direct Redis Queue Consumer for the PDF extraction worker
 *
 * Compatible with a plain Redis LIST producer: job ids are pushed onto
 * <queue>, job envelopes live in the <queue>:data hash. Job state is
 * tracked in the <queue>:processing|completed|failed sets and terminal
 * results are stored in <queue>:results.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
	"github.com/adverant/nexus/pdfextract-worker/internal/processor"
)

const defaultPollTimeout = 5 * time.Second

// RedisJobData is the envelope stored in <queue>:data
type RedisJobData struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// RedisConsumer handles job consumption from a Redis list
type RedisConsumer struct {
	client  *redis.Client
	handler *JobHandler
	config  *RedisConsumerConfig
	logger  *logging.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Handler     *JobHandler
	// PollTimeout bounds each blocking pop; Redis rounds it up to whole seconds
	PollTimeout time.Duration
	Logger      *logging.Logger
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "pdfextract:jobs"
	}

	if cfg.Handler == nil {
		return nil, fmt.Errorf("Handler is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("redis-consumer")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisConsumer{
		client:  client,
		handler: cfg.Handler,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Start launches the worker goroutines
func (c *RedisConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Redis queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < c.config.Concurrency; i++ {
		id := i
		g.Go(func() error {
			c.worker(gctx, id)
			return nil
		})
	}

	c.cancel = cancel
	c.group = g
	return nil
}

// Stop cancels the workers, waits for in-flight jobs until ctx is done and
// closes the client
func (c *RedisConsumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	if c.cancel != nil {
		c.cancel()
		done := make(chan error, 1)
		go func() { done <- c.group.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				c.logger.Warn("Worker exited with error", "error", err)
			}
		case <-ctx.Done():
			c.logger.Warn("Timed out waiting for in-flight jobs", "error", ctx.Err())
		}
	}
	return c.client.Close()
}

// worker processes jobs until ctx is cancelled
func (c *RedisConsumer) worker(ctx context.Context, id int) {
	c.logger.Debug("Worker started", "worker", id)

	for {
		if ctx.Err() != nil {
			c.logger.Debug("Worker stopping", "worker", id)
			return
		}
		if _, err := c.processNextJob(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("Worker error", "worker", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// processNextJob pops and runs one job. It reports false when the poll
// timed out with an empty queue.
func (c *RedisConsumer) processNextJob(ctx context.Context) (bool, error) {
	popped, err := c.client.BRPop(ctx, c.config.PollTimeout, c.config.QueueName).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(popped) < 2 {
		return false, fmt.Errorf("invalid job result")
	}
	listID := popped[1]

	// a popped job runs to its terminal result even when the consumer is stopping
	ctx = context.WithoutCancel(ctx)

	// missing job data still gets a terminal failure result
	raw, err := c.client.HGet(ctx, c.key("data"), listID).Result()
	if err != nil {
		c.logger.Warn("Failed to get job data", "job_id", listID, "error", err)
	}

	payload := []byte(raw)
	var envelope RedisJobData
	if err := json.Unmarshal(payload, &envelope); err == nil && len(envelope.Payload) > 0 {
		payload = envelope.Payload
	}

	c.markProcessing(ctx, listID)
	result := c.handler.HandleJob(ctx, listID, payload)
	c.markFinished(ctx, listID, result)
	return true, nil
}

// Submit stores a message envelope and pushes its id onto the queue
func (c *RedisConsumer) Submit(ctx context.Context, msg *ProcessPDFMessage) (string, error) {
	return submitList(ctx, c.client, c.config.QueueName, msg)
}

func (c *RedisConsumer) markProcessing(ctx context.Context, jobID string) {
	if err := c.client.SAdd(ctx, c.key("processing"), jobID).Err(); err != nil {
		c.logger.Warn("Failed to mark job processing", "job_id", jobID, "error", err)
	}
}

func (c *RedisConsumer) markFinished(ctx context.Context, jobID string, result *processor.Result) {
	target := c.key("completed")
	if !result.Success {
		target = c.key("failed")
	}
	data, err := json.Marshal(NewResultMessage(result))
	if err != nil {
		c.logger.Error("Failed to marshal result", "job_id", jobID, "error", err)
		return
	}

	pipe := c.client.TxPipeline()
	pipe.SRem(ctx, c.key("processing"), jobID)
	pipe.SAdd(ctx, target, jobID)
	pipe.HSet(ctx, c.key("results"), jobID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to record job outcome", "job_id", jobID, "error", err)
	}
}

func (c *RedisConsumer) key(suffix string) string {
	return fmt.Sprintf("%s:%s", c.config.QueueName, suffix)
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	pipe := c.client.Pipeline()
	waiting := pipe.LLen(ctx, c.config.QueueName)
	processing := pipe.SCard(ctx, c.key("processing"))
	completed := pipe.SCard(ctx, c.key("completed"))
	failed := pipe.SCard(ctx, c.key("failed"))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}
