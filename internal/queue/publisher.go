package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/pdfextract-worker/internal/processor"
)

// EventPublisher delivers outbound messages to the host
type EventPublisher interface {
	PublishStatus(ctx context.Context, status processor.ProcessingStatus) error
	PublishResult(ctx context.Context, jobID string, result *processor.Result) error
}

// RedisEventPublisher appends every outbound message to the job's stream
// (<prefix>:<jobId>, one "payload" field per entry) and announces it on the
// <prefix> pub/sub channel
type RedisEventPublisher struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisEventPublisher creates a new publisher
func NewRedisEventPublisher(rdb *redis.Client, prefix string) *RedisEventPublisher {
	return &RedisEventPublisher{rdb: rdb, prefix: prefix}
}

// StreamKey returns the stream holding a job's messages
func (p *RedisEventPublisher) StreamKey(jobID string) string {
	return fmt.Sprintf("%s:%s", p.prefix, jobID)
}

// Channel returns the pub/sub channel all messages are announced on
func (p *RedisEventPublisher) Channel() string {
	return p.prefix
}

// PublishStatus sends a status message
func (p *RedisEventPublisher) PublishStatus(ctx context.Context, status processor.ProcessingStatus) error {
	return p.send(ctx, status.JobID, NewStatusMessage(status))
}

// PublishResult sends the terminal result message
func (p *RedisEventPublisher) PublishResult(ctx context.Context, jobID string, result *processor.Result) error {
	return p.send(ctx, jobID, NewResultMessage(result))
}

func (p *RedisEventPublisher) send(ctx context.Context, jobID string, msg interface{}) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.StreamKey(jobID),
		ID:     "*",
		Values: map[string]any{
			"payload": string(payload),
		},
	}).Err(); err != nil {
		return fmt.Errorf("failed to append event to stream: %w", err)
	}

	if err := p.rdb.Publish(ctx, p.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// ReadEvents returns the raw payloads recorded for a job, oldest first
func (p *RedisEventPublisher) ReadEvents(ctx context.Context, jobID string) ([]string, error) {
	entries, err := p.rdb.XRange(ctx, p.StreamKey(jobID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		payload, ok := e.Values["payload"].(string)
		if !ok {
			return nil, fmt.Errorf("failed to read payload from stream message %s", e.ID)
		}
		out = append(out, payload)
	}
	return out, nil
}
