package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lead_triage_backend/internal/stream/outbox"
	"lead_triage_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation   = "23505"
	leadNotFoundMessage = "lead not found"
)

// ErrKeyExists reports that the idempotency key was committed by a concurrent
// request. The caller re-reads the ledger and replays the stored response.
var ErrKeyExists = errors.New("idempotency key already exists")

// Lead is one row of the lead store. Immutable after creation.
type Lead struct {
	ID        uuid.UUID
	Email     *string
	Phone     *string
	Name      *string
	Note      string
	Source    *string
	CreatedAt time.Time
}

// IdempotencyRecord maps an idempotency key to the request payload hash and
// the response it produced. Immutable once written.
type IdempotencyRecord struct {
	Key         string
	PayloadHash string
	LeadID      uuid.UUID
	Response    json.RawMessage
	CreatedAt   time.Time
}

// Insight is the read model for a lead's structured classification.
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

// CreateLeadParams carries everything committed in the intake transaction.
type CreateLeadParams struct {
	Lead         Lead
	Key          string
	PayloadHash  string
	Response     json.RawMessage
	OutboxID     uuid.UUID
	EventID      uuid.UUID
	EventPayload any
}

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// CreateLeadWithKey commits the lead, the ledger row, and the outbox event
// atomically. A caller never observes one without the others.
func (r *Repo) CreateLeadWithKey(ctx context.Context, p CreateLeadParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin intake transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO leads (id, email, phone, name, note, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.Lead.ID, p.Lead.Email, p.Lead.Phone, p.Lead.Name, p.Lead.Note, p.Lead.Source, p.Lead.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO idempotency_keys (key, payload_hash, lead_id, response)
		 VALUES ($1, $2, $3, $4)`,
		p.Key, p.PayloadHash, p.Lead.ID, []byte(p.Response),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrKeyExists
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}

	err = outbox.InsertTx(ctx, tx, outbox.InsertParams{
		ID:      p.OutboxID,
		LeadID:  p.Lead.ID,
		EventID: p.EventID,
		Payload: p.EventPayload,
	})
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit intake transaction: %w", err)
	}
	return nil
}

// GetIdempotencyRecord retrieves the ledger row for a key.
func (r *Repo) GetIdempotencyRecord(ctx context.Context, key string) (IdempotencyRecord, error) {
	query := `
		SELECT key, payload_hash, lead_id, response, created_at
		FROM idempotency_keys
		WHERE key = $1`

	var rec IdempotencyRecord
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&rec.Key, &rec.PayloadHash, &rec.LeadID, &rec.Response, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IdempotencyRecord{}, apperr.NotFound("idempotency key not found")
		}
		return IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}
	return rec, nil
}

// GetLead retrieves a lead by its ID.
func (r *Repo) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	query := `
		SELECT id, email, phone, name, note, source, created_at
		FROM leads
		WHERE id = $1`

	var lead Lead
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&lead.ID, &lead.Email, &lead.Phone, &lead.Name, &lead.Note, &lead.Source, &lead.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// GetInsight retrieves the insight for a lead.
func (r *Repo) GetInsight(ctx context.Context, leadID uuid.UUID) (Insight, error) {
	query := `
		SELECT id, lead_id, intent, priority, next_action, confidence, tags, created_at
		FROM insights
		WHERE lead_id = $1`

	var insight Insight
	var tagsBytes []byte
	err := r.pool.QueryRow(ctx, query, leadID).Scan(
		&insight.ID, &insight.LeadID, &insight.Intent, &insight.Priority,
		&insight.NextAction, &insight.Confidence, &tagsBytes, &insight.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Insight{}, apperr.NotFound("no insight for lead yet")
		}
		return Insight{}, fmt.Errorf("get insight: %w", err)
	}

	if len(tagsBytes) > 0 {
		if err := json.Unmarshal(tagsBytes, &insight.Tags); err != nil {
			return Insight{}, fmt.Errorf("decode insight tags: %w", err)
		}
	}
	return insight, nil
}
