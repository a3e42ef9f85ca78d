package stream

import (
	"context"
	"encoding/json"
	"time"

	"lead_triage_backend/internal/stream/outbox"
	"lead_triage_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	relayInterval     = 2 * time.Second
	relayBatchSize    = 50
	relayRequeueAfter = time.Minute
)

// Relay drains the outbox onto the stream. The intake gateway enqueues
// directly after commit; the relay only picks up rows that path missed, so a
// committed lead is published at least once no matter where the API crashed.
type Relay struct {
	publisher *Publisher
	repo      *outbox.Repository
	log       *logger.Logger
}

// NewRelay creates an outbox relay over the given publisher and pool.
func NewRelay(publisher *Publisher, pool *pgxpool.Pool, log *logger.Logger) *Relay {
	return &Relay{
		publisher: publisher,
		repo:      outbox.New(pool),
		log:       log,
	}
}

// Run polls the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) {
	if r == nil || r.publisher == nil || r.repo == nil {
		return
	}

	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		records, err := r.repo.ClaimPending(ctx, relayBatchSize, relayRequeueAfter)
		if err != nil {
			r.log.Warn("outbox claim failed", "error", err)
			continue
		}

		for _, rec := range records {
			var payload LeadCreatedPayload
			if err := json.Unmarshal(rec.Payload, &payload); err != nil {
				msg := err.Error()
				_ = r.repo.RecordError(ctx, rec.ID, msg)
				r.log.Error("outbox payload unreadable", "outbox_id", rec.ID, "error", err)
				continue
			}

			if err := r.publisher.PublishLeadCreated(ctx, payload); err != nil {
				msg := err.Error()
				_ = r.repo.RecordError(ctx, rec.ID, msg)
				continue
			}

			if err := r.repo.MarkPublished(ctx, rec.ID); err != nil {
				r.log.Warn("outbox mark published failed", "outbox_id", rec.ID, "error", err)
			}
		}
	}
}
