// Package triage consumes lead.created events and produces exactly one
// insight per lead on top of at-least-once delivery.
package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_triage_backend/internal/stream"
	"lead_triage_backend/internal/triage/classifier"
	"lead_triage_backend/internal/triage/repository"
	"lead_triage_backend/platform/logger"

	"github.com/google/uuid"
)

// ErrMalformedEvent marks an event that can never be processed; the worker
// dead-letters it immediately instead of burning retries.
var ErrMalformedEvent = errors.New("malformed lead event")

// Repository is the persistence surface the processor needs.
type Repository interface {
	GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	InsightExists(ctx context.Context, leadID uuid.UUID) (bool, error)
	InsertInsight(ctx context.Context, insight repository.Insight) error
}

// Processor runs the guard → classify → persist sequence for one event.
type Processor struct {
	repo            Repository
	classifier      classifier.Classifier
	classifyTimeout time.Duration
	log             *logger.Logger
}

// NewProcessor creates a processor with its dependencies injected.
func NewProcessor(repo Repository, cls classifier.Classifier, classifyTimeout time.Duration, log *logger.Logger) *Processor {
	return &Processor{
		repo:            repo,
		classifier:      cls,
		classifyTimeout: classifyTimeout,
		log:             log,
	}
}

// ProcessLeadCreated handles a single delivery. A nil return acknowledges the
// event; any error lets the stream redeliver it.
func (p *Processor) ProcessLeadCreated(ctx context.Context, event stream.LeadCreatedPayload) error {
	leadID, err := uuid.Parse(event.LeadID)
	if err != nil {
		return fmt.Errorf("%w: bad lead id %q", ErrMalformedEvent, event.LeadID)
	}

	// Dedup guard: redeliveries and duplicate publishes stop here without
	// invoking the classifier again.
	exists, err := p.repo.InsightExists(ctx, leadID)
	if err != nil {
		return err
	}
	if exists {
		p.log.Debug("insight already present, acknowledging", "lead_id", leadID)
		return nil
	}

	lead, err := p.repo.GetLead(ctx, leadID)
	if err != nil {
		return err
	}

	result, err := p.classify(ctx, lead)
	if err != nil {
		return fmt.Errorf("classify lead %s: %w", leadID, err)
	}

	insight := repository.Insight{
		ID:         uuid.New(),
		LeadID:     leadID,
		Intent:     string(result.Intent),
		Priority:   string(result.Priority),
		NextAction: string(result.NextAction),
		Confidence: result.Confidence,
		Tags:       result.Tags,
	}

	if err := p.repo.InsertInsight(ctx, insight); err != nil {
		if errors.Is(err, repository.ErrDuplicateInsight) {
			// A racing consumer already produced the effect.
			return nil
		}
		return err
	}

	return nil
}

func (p *Processor) classify(ctx context.Context, lead repository.Lead) (classifier.Result, error) {
	if p.classifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.classifyTimeout)
		defer cancel()
	}

	result, err := p.classifier.Classify(ctx, classifier.Input{
		Note:   lead.Note,
		Email:  lead.Email,
		Source: lead.Source,
	})
	if err != nil {
		return classifier.Result{}, err
	}

	if err := result.Validate(); err != nil {
		return classifier.Result{}, err
	}

	return result, nil
}
