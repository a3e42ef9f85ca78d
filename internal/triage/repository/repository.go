// Package repository persists triage results: insights behind the lead_id
// uniqueness constraint, and dead letters for events that exhausted retries.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lead_triage_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// ErrDuplicateInsight reports that another consumer already persisted the
// insight for this lead. Callers treat it as success.
var ErrDuplicateInsight = errors.New("insight already exists for lead")

// Lead is the subset of the lead row the classifier needs.
type Lead struct {
	ID     uuid.UUID
	Note   string
	Email  string
	Source string
}

// Insight is a structured classification result for one lead.
type Insight struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Intent     string
	Priority   string
	NextAction string
	Confidence float64
	Tags       []string
	CreatedAt  time.Time
}

// DeadLetter records an event that exhausted its retries without effect.
type DeadLetter struct {
	ID       uuid.UUID
	LeadID   uuid.UUID
	EventID  uuid.UUID
	Payload  json.RawMessage
	Reason   string
	Attempts int
}

// Repo implements triage persistence with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new triage repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetLead loads the lead fields needed for classification.
func (r *Repo) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	query := `SELECT id, note, COALESCE(email, ''), COALESCE(source, '') FROM leads WHERE id = $1`

	var lead Lead
	err := r.pool.QueryRow(ctx, query, id).Scan(&lead.ID, &lead.Note, &lead.Email, &lead.Source)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound("lead not found")
		}
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// InsightExists reports whether an insight has already been persisted for the
// lead. The triage consumer uses this as its dedup guard before classifying.
func (r *Repo) InsightExists(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM insights WHERE lead_id = $1)`, leadID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check insight exists: %w", err)
	}
	return exists, nil
}

// InsertInsight persists the insight. The unique constraint on lead_id is the
// serialization point for racing consumers: the loser gets ErrDuplicateInsight.
func (r *Repo) InsertInsight(ctx context.Context, insight Insight) error {
	tagsBytes, err := json.Marshal(insight.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO insights (id, lead_id, intent, priority, next_action, confidence, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		insight.ID, insight.LeadID, insight.Intent, insight.Priority,
		insight.NextAction, insight.Confidence, tagsBytes,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateInsight
		}
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

// InsertDeadLetter preserves the original event and failure reason for
// out-of-band reprocessing.
func (r *Repo) InsertDeadLetter(ctx context.Context, dl DeadLetter) error {
	if dl.ID == uuid.Nil {
		dl.ID = uuid.New()
	}
	if dl.Payload == nil {
		dl.Payload = json.RawMessage("{}")
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO triage_dead_letters (id, lead_id, event_id, payload, reason, attempts)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		dl.ID, dl.LeadID, dl.EventID, []byte(dl.Payload), dl.Reason, dl.Attempts,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}
