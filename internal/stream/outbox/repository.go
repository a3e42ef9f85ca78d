// Package outbox persists lead events alongside the intake transaction so
// every committed lead is published to the stream at least once, even when
// the process dies between commit and enqueue.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"

	errRepoNotConfigured = "outbox repository not configured"
)

// Record is a single outbox row awaiting publish.
type Record struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	EventID   uuid.UUID
	Payload   json.RawMessage
	Status    Status
	Attempts  int
	LastError *string
	CreatedAt time.Time
}

// InsertParams describes a new outbox row.
type InsertParams struct {
	ID      uuid.UUID
	LeadID  uuid.UUID
	EventID uuid.UUID
	Payload any
}

// Repository provides access to the lead events outbox.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new outbox repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTx writes an outbox row inside an existing transaction. The caller
// commits the row together with the lead it belongs to.
func InsertTx(ctx context.Context, tx pgx.Tx, p InsertParams) error {
	if p.LeadID == uuid.Nil {
		return fmt.Errorf("leadId is required")
	}
	if p.EventID == uuid.Nil {
		return fmt.Errorf("eventId is required")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	payloadBytes, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO lead_events_outbox (id, lead_id, event_id, payload, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.LeadID, p.EventID, payloadBytes, string(StatusPending),
	)
	return err
}

// ClaimPending claims up to limit rows that still need publishing: rows never
// claimed, and rows whose previous claim is older than requeueAfter (a crash
// between claim and enqueue). Claimed rows stay pending until MarkPublished.
func (r *Repository) ClaimPending(ctx context.Context, limit int, requeueAfter time.Duration) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`UPDATE lead_events_outbox
		 SET claimed_at = now(), attempts = attempts + 1
		 WHERE id IN (
		     SELECT id FROM lead_events_outbox
		     WHERE status = $1
		       AND (claimed_at IS NULL OR claimed_at < now() - $2::interval)
		     ORDER BY created_at
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, lead_id, event_id, payload, status, attempts, last_error, created_at`,
		string(StatusPending), requeueAfter.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending outbox rows: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.LeadID, &rec.EventID, &rec.Payload,
			&status, &rec.Attempts, &rec.LastError, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		rec.Status = Status(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkPublished retires an outbox row after a successful enqueue.
func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE lead_events_outbox SET status = $1, last_error = NULL WHERE id = $2`,
		string(StatusPublished), id,
	)
	return err
}

// RecordError stores the enqueue failure; the row stays pending and will be
// reclaimed on a later tick.
func (r *Repository) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE lead_events_outbox SET last_error = $1 WHERE id = $2`,
		message, id,
	)
	return err
}
