package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Queue backends a Producer can submit to
const (
	BackendAsynq = "asynq"
	BackendList  = "list"
)

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	RedisURL  string
	QueueName string
	Backend   string
}

// Producer submits process-pdf messages without running a consumer
type Producer struct {
	backend   string
	queueName string
	tasks     *asynq.Client
	rdb       *redis.Client
}

// NewProducer creates a new producer for the configured backend
func NewProducer(cfg *ProducerConfig) (*Producer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	p := &Producer{backend: cfg.Backend, queueName: cfg.QueueName}
	switch cfg.Backend {
	case BackendList:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		p.rdb = redis.NewClient(opt)
	case BackendAsynq, "":
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		p.backend = BackendAsynq
		p.tasks = asynq.NewClient(redisOpt)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
	return p, nil
}

// Submit queues msg and returns its job id
func (p *Producer) Submit(ctx context.Context, msg *ProcessPDFMessage) (string, error) {
	if p.backend == BackendList {
		return submitList(ctx, p.rdb, p.queueName, msg)
	}
	if _, err := enqueueTask(ctx, p.tasks, p.queueName, msg); err != nil {
		return "", err
	}
	return msg.JobID, nil
}

// Close releases the producer's Redis connection
func (p *Producer) Close() error {
	if p.rdb != nil {
		return p.rdb.Close()
	}
	return p.tasks.Close()
}

// enqueueTask submits msg as a single-attempt asynq task keyed by its job id
func enqueueTask(ctx context.Context, client *asynq.Client, queueName string, msg *ProcessPDFMessage) (*asynq.TaskInfo, error) {
	if msg.JobID == "" {
		msg.JobID = uuid.New().String()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	info, err := client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeProcessPDF, payload),
		asynq.Queue(queueName),
		asynq.MaxRetry(0),
		asynq.TaskID(msg.JobID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info, nil
}

// submitList stores a message envelope in <queue>:data and pushes its id onto the list
func submitList(ctx context.Context, rdb *redis.Client, queueName string, msg *ProcessPDFMessage) (string, error) {
	if msg.JobID == "" {
		msg.JobID = uuid.New().String()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}
	envelope, err := json.Marshal(&RedisJobData{
		ID:        msg.JobID,
		Type:      TaskTypeProcessPDF,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, queueName+":data", msg.JobID, envelope)
	pipe.LPush(ctx, queueName, msg.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to submit job: %w", err)
	}
	return msg.JobID, nil
}
