// Package service implements the intake gateway: idempotent lead creation
// with an atomic lead + ledger + outbox commit, and the read-side lookups.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lead_triage_backend/internal/leads/cache"
	"lead_triage_backend/internal/leads/repository"
	"lead_triage_backend/internal/leads/transport"
	"lead_triage_backend/internal/stream"
	"lead_triage_backend/platform/apperr"
	"lead_triage_backend/platform/logger"
	"lead_triage_backend/platform/phone"

	"github.com/google/uuid"
)

const msgKeyConflict = "Idempotency-Key already used with a different payload"

// CreateStatus distinguishes a fresh creation from an idempotent replay.
type CreateStatus int

const (
	// StatusCreated means the lead was persisted by this call.
	StatusCreated CreateStatus = iota
	// StatusReplayed means the stored response for the key was returned.
	StatusReplayed
)

// CreateLeadResult is the outcome of an intake request.
type CreateLeadResult struct {
	Status   CreateStatus
	Response json.RawMessage
}

// ResponseCache is the optional fast path in front of the ledger.
type ResponseCache interface {
	Get(ctx context.Context, key string) (cache.Entry, bool, error)
	Set(ctx context.Context, key string, entry cache.Entry) error
}

// Publisher pushes lead events onto the stream.
type Publisher interface {
	PublishLeadCreated(ctx context.Context, payload stream.LeadCreatedPayload) error
}

// OutboxMarker retires outbox rows once their event is on the stream.
type OutboxMarker interface {
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

// Service implements intake gateway operations.
type Service struct {
	repo      repository.Repository
	cache     ResponseCache
	publisher Publisher
	outbox    OutboxMarker
	log       *logger.Logger
}

// New creates the intake service. cache, publisher, and outbox may be nil in
// tests; the ledger alone is sufficient for correctness.
func New(repo repository.Repository, responseCache ResponseCache, publisher Publisher, outboxMarker OutboxMarker, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     responseCache,
		publisher: publisher,
		outbox:    outboxMarker,
		log:       log,
	}
}

// CreateLead creates a lead exactly once per idempotency key. Repeats with
// the same payload replay the stored response; repeats with a different
// payload conflict. The storage-level unique key is the serialization point,
// so two racing requests with a fresh key resolve without in-process locks.
func (s *Service) CreateLead(ctx context.Context, key string, req transport.CreateLeadRequest) (CreateLeadResult, error) {
	normalized := normalizeRequest(req)
	payloadHash := PayloadFingerprint(normalized)

	if s.cache != nil {
		entry, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("idempotency cache unavailable", "error", err)
		} else if ok {
			if entry.PayloadHash != payloadHash {
				return CreateLeadResult{}, apperr.Conflict(msgKeyConflict)
			}
			return CreateLeadResult{Status: StatusReplayed, Response: entry.Response}, nil
		}
	}

	rec, err := s.repo.GetIdempotencyRecord(ctx, key)
	switch {
	case err == nil:
		return s.replay(ctx, key, rec, payloadHash)
	case apperr.Is(err, apperr.KindNotFound):
		// Fresh key; fall through to creation.
	default:
		return CreateLeadResult{}, err
	}

	now := time.Now().UTC()
	lead := repository.Lead{
		ID:        uuid.New(),
		Email:     normalized.Email,
		Phone:     normalized.Phone,
		Name:      normalized.Name,
		Note:      normalized.Note,
		Source:    normalized.Source,
		CreatedAt: now,
	}

	responseBytes, err := json.Marshal(leadToResponse(lead))
	if err != nil {
		return CreateLeadResult{}, fmt.Errorf("encode lead response: %w", err)
	}

	eventID := uuid.New()
	outboxID := uuid.New()
	eventPayload := stream.LeadCreatedPayload{
		LeadID:     lead.ID.String(),
		EventID:    eventID.String(),
		EnqueuedAt: now,
	}

	err = s.repo.CreateLeadWithKey(ctx, repository.CreateLeadParams{
		Lead:         lead,
		Key:          key,
		PayloadHash:  payloadHash,
		Response:     responseBytes,
		OutboxID:     outboxID,
		EventID:      eventID,
		EventPayload: eventPayload,
	})
	if err != nil {
		if errors.Is(err, repository.ErrKeyExists) {
			// Lost the insert race: the committed row decides replay or conflict.
			committed, readErr := s.repo.GetIdempotencyRecord(ctx, key)
			if readErr != nil {
				return CreateLeadResult{}, readErr
			}
			return s.replay(ctx, key, committed, payloadHash)
		}
		return CreateLeadResult{}, err
	}

	// Publish after commit. Failures leave the outbox row pending; the relay
	// delivers it, so every committed lead reaches the stream at least once.
	s.publishCommitted(ctx, outboxID, eventPayload)

	s.cacheResponse(ctx, key, payloadHash, http.StatusCreated, responseBytes)

	return CreateLeadResult{Status: StatusCreated, Response: responseBytes}, nil
}

// GetLead returns a lead by ID.
func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return leadToResponse(lead), nil
}

// GetInsight returns the insight for a lead, if one has been produced.
func (s *Service) GetInsight(ctx context.Context, leadID uuid.UUID) (transport.InsightResponse, error) {
	insight, err := s.repo.GetInsight(ctx, leadID)
	if err != nil {
		return transport.InsightResponse{}, err
	}
	return transport.InsightResponse{
		ID:         insight.ID,
		LeadID:     insight.LeadID,
		Intent:     insight.Intent,
		Priority:   insight.Priority,
		NextAction: insight.NextAction,
		Confidence: insight.Confidence,
		Tags:       insight.Tags,
		CreatedAt:  insight.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) replay(ctx context.Context, key string, rec repository.IdempotencyRecord, payloadHash string) (CreateLeadResult, error) {
	if rec.PayloadHash != payloadHash {
		return CreateLeadResult{}, apperr.Conflict(msgKeyConflict)
	}

	s.cacheResponse(ctx, key, rec.PayloadHash, http.StatusOK, rec.Response)

	return CreateLeadResult{Status: StatusReplayed, Response: rec.Response}, nil
}

func (s *Service) publishCommitted(ctx context.Context, outboxID uuid.UUID, payload stream.LeadCreatedPayload) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.PublishLeadCreated(ctx, payload); err != nil {
		s.log.Warn("immediate publish failed, relay will retry", "lead_id", payload.LeadID, "error", err)
		return
	}

	if s.outbox != nil {
		if err := s.outbox.MarkPublished(ctx, outboxID); err != nil {
			s.log.Warn("outbox mark published failed", "outbox_id", outboxID, "error", err)
		}
	}
}

func (s *Service) cacheResponse(ctx context.Context, key, payloadHash string, status int, response json.RawMessage) {
	if s.cache == nil {
		return
	}

	err := s.cache.Set(ctx, key, cache.Entry{
		PayloadHash: payloadHash,
		StatusCode:  status,
		Response:    response,
	})
	if err != nil {
		s.log.Warn("idempotency cache write failed", "error", err)
	}
}

// normalizeRequest trims whitespace and normalizes the phone number before
// hashing and persistence, so cosmetic differences do not defeat idempotency.
func normalizeRequest(req transport.CreateLeadRequest) transport.CreateLeadRequest {
	normalized := transport.CreateLeadRequest{
		Note: strings.TrimSpace(req.Note),
	}
	normalized.Email = trimPtr(req.Email)
	normalized.Name = trimPtr(req.Name)
	normalized.Source = trimPtr(req.Source)

	if req.Phone != nil {
		if p := phone.NormalizeE164(*req.Phone); p != "" {
			normalized.Phone = &p
		}
	}
	return normalized
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func leadToResponse(lead repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:        lead.ID,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Name:      lead.Name,
		Note:      lead.Note,
		Source:    lead.Source,
		CreatedAt: lead.CreatedAt.Format(time.RFC3339),
	}
}
