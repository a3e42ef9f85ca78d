package repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence surface of the intake gateway: the lead
// store, the idempotency ledger, and the outbox row written with them.
type Repository interface {
	// CreateLeadWithKey inserts the lead, its idempotency record, and the
	// outbox event in one transaction. Returns ErrKeyExists when a concurrent
	// request committed the same key first.
	CreateLeadWithKey(ctx context.Context, p CreateLeadParams) error

	// GetIdempotencyRecord returns the ledger row for a key, or a not-found
	// domain error.
	GetIdempotencyRecord(ctx context.Context, key string) (IdempotencyRecord, error)

	// GetLead returns a lead by ID, or a not-found domain error.
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)

	// GetInsight returns the insight for a lead, or a not-found domain error.
	GetInsight(ctx context.Context, leadID uuid.UUID) (Insight, error)
}
