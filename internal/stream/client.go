// Package stream connects the intake gateway to the triage worker through an
// asynq-backed event stream with at-least-once delivery.
package stream

import (
	"context"
	"errors"
	"fmt"

	"lead_triage_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Publisher enqueues lead events onto the stream.
type Publisher struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// NewPublisher creates a stream publisher from the Redis configuration.
func NewPublisher(cfg config.StreamConfig) (*Publisher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := RedisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetStreamQueue()
	if queue == "" {
		queue = "default"
	}

	maxRetry := cfg.GetStreamMaxRetry()
	if maxRetry < 0 {
		maxRetry = 0
	}

	return &Publisher{
		client:   asynq.NewClient(opt),
		queue:    queue,
		maxRetry: maxRetry,
	}, nil
}

// Close releases the underlying Redis connections.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// PublishLeadCreated enqueues a lead.created event. The event ID doubles as
// the task ID, so a duplicate publish of the same event is absorbed by the
// stream instead of producing a second delivery.
func (p *Publisher) PublishLeadCreated(ctx context.Context, payload LeadCreatedPayload) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("stream publisher not configured")
	}

	task, err := NewLeadCreatedTask(payload)
	if err != nil {
		return err
	}

	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queue),
		asynq.MaxRetry(p.maxRetry),
		asynq.TaskID(payload.EventID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Already on the stream; the publish is idempotent per event.
		return nil
	}
	return err
}

// RedisClientOpt translates a Redis URL into asynq connection options.
// Shared by the publisher and the triage worker server.
func RedisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}