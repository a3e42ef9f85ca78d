package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lead_triage_backend/internal/stream"
	"lead_triage_backend/internal/triage/classifier"
	"lead_triage_backend/internal/triage/repository"
	"lead_triage_backend/platform/config"
	"lead_triage_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker runs the competing triage consumers over the event stream.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor *Processor
	repo      *repository.Repo
	log       *logger.Logger
}

// WorkerConfig combines the config surfaces the worker needs.
type WorkerConfig interface {
	config.TriageConfig
	config.ClassifierConfig
}

// NewWorker builds the asynq server, the processor, and the task routing.
func NewWorker(cfg WorkerConfig, pool *pgxpool.Pool, cls classifier.Classifier, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := stream.RedisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetStreamQueue()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetTriageConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	base := cfg.GetTriageRetryBase()
	cap := cfg.GetTriageRetryCap()

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return retryDelay(n, base, cap)
		},
	})

	repo := repository.New(pool)
	w := &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: NewProcessor(repo, cls, cfg.GetClassifierTimeout(), log),
		repo:      repo,
		log:       log,
	}

	w.mux.HandleFunc(stream.TaskLeadCreated, w.handleLeadCreated)

	return w, nil
}

// Run serves tasks until the context is cancelled, then shuts down. In-flight
// events are not acknowledged on shutdown; the stream redelivers them.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("triage worker stopped", "error", err)
	}
}

func (w *Worker) handleLeadCreated(ctx context.Context, task *asynq.Task) error {
	payload, err := stream.ParseLeadCreatedPayload(task)
	if err != nil {
		w.deadLetter(ctx, payload, task.Payload(), fmt.Sprintf("unparseable event: %v", err))
		return fmt.Errorf("parse lead event: %v: %w", err, asynq.SkipRetry)
	}

	attempt, _ := asynq.GetRetryCount(ctx)
	w.log.TriageEvent("processing", payload.LeadID, attempt)

	err = w.processor.ProcessLeadCreated(ctx, payload)
	if err == nil {
		return nil
	}

	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if errors.Is(err, ErrMalformedEvent) || attempt >= maxRetry {
		w.deadLetter(ctx, payload, task.Payload(), err.Error())
		w.log.Error("lead dead-lettered", "lead_id", payload.LeadID, "attempts", attempt+1, "reason", err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	return err
}

// deadLetter records the terminal failure so the lead stays recoverable. The
// insert is best-effort: the event is also archived by the stream itself.
func (w *Worker) deadLetter(ctx context.Context, payload stream.LeadCreatedPayload, raw []byte, reason string) {
	attempt, _ := asynq.GetRetryCount(ctx)

	leadID, _ := uuid.Parse(payload.LeadID)
	eventID, _ := uuid.Parse(payload.EventID)

	dl := repository.DeadLetter{
		LeadID:   leadID,
		EventID:  eventID,
		Payload:  json.RawMessage(raw),
		Reason:   reason,
		Attempts: attempt + 1,
	}
	if !json.Valid(raw) {
		dl.Payload = nil
	}

	if err := w.repo.InsertDeadLetter(ctx, dl); err != nil {
		w.log.Error("dead letter insert failed", "lead_id", payload.LeadID, "error", err)
	}
}

// retryDelay doubles from base on every attempt, capped.
func retryDelay(n int, base, cap time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if cap <= 0 {
		cap = 5 * time.Minute
	}

	delay := base
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= cap || delay <= 0 {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
