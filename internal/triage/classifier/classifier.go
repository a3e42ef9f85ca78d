// Package classifier turns a lead's free-text note into a structured insight
// draft. Variants are closed: a deterministic rule-based matcher and a
// model-backed client that falls back to the rules on failure.
package classifier

import (
	"context"
	"fmt"
	"net/http"

	"lead_triage_backend/platform/config"
)

// Intent is the classified purpose of a lead.
type Intent string

const (
	IntentBuy     Intent = "buy"
	IntentInquire Intent = "inquire"
	IntentSupport Intent = "support"
	IntentUnknown Intent = "unknown"
)

// Priority is the triage urgency tier, P0 highest.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// NextAction is the recommended follow-up for a lead.
type NextAction string

const (
	ActionCall    NextAction = "call"
	ActionEmail   NextAction = "email"
	ActionNurture NextAction = "nurture"
	ActionIgnore  NextAction = "ignore"
)

// Input carries the lead fields a classifier may consider.
type Input struct {
	Note   string `json:"note"`
	Email  string `json:"email,omitempty"`
	Source string `json:"source,omitempty"`
}

// Result is a structured insight draft.
type Result struct {
	Intent     Intent     `json:"intent"`
	Priority   Priority   `json:"priority"`
	NextAction NextAction `json:"nextAction"`
	Confidence float64    `json:"confidence"`
	Tags       []string   `json:"tags,omitempty"`
}

// Validate enforces the classifier contract: closed enumerations and a
// confidence in [0,1]. A violation is handled as a classification failure.
func (r Result) Validate() error {
	switch r.Intent {
	case IntentBuy, IntentInquire, IntentSupport, IntentUnknown:
	default:
		return fmt.Errorf("classifier contract: invalid intent %q", r.Intent)
	}
	switch r.Priority {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
	default:
		return fmt.Errorf("classifier contract: invalid priority %q", r.Priority)
	}
	switch r.NextAction {
	case ActionCall, ActionEmail, ActionNurture, ActionIgnore:
	default:
		return fmt.Errorf("classifier contract: invalid nextAction %q", r.NextAction)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("classifier contract: confidence %f out of range", r.Confidence)
	}
	return nil
}

// Classifier is the capability interface implemented by all variants.
type Classifier interface {
	Classify(ctx context.Context, in Input) (Result, error)
}

// New selects a classifier variant from configuration.
func New(cfg config.ClassifierConfig) (Classifier, error) {
	switch cfg.GetClassifierKind() {
	case "rules", "":
		return NewRules(), nil
	case "model":
		var fallback Classifier
		if cfg.GetClassifierFallback() {
			fallback = NewRules()
		}
		return NewModel(cfg.GetClassifierURL(), &http.Client{Timeout: cfg.GetClassifierTimeout()}, fallback), nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", cfg.GetClassifierKind())
	}
}
