package classifier

import (
	"context"
	"reflect"
	"testing"
)

func TestRulesClassify(t *testing.T) {
	tests := []struct {
		name       string
		note       string
		intent     Intent
		priority   Priority
		nextAction NextAction
		tags       []string
	}{
		{
			name:       "urgent purchase with volume",
			note:       "Need urgent pricing for 50 seats ASAP!",
			intent:     IntentBuy,
			priority:   PriorityP0,
			nextAction: ActionCall,
			tags:       []string{"urgent", "volume"},
		},
		{
			name:       "support request without urgency",
			note:       "The app is broken and I need help",
			intent:     IntentSupport,
			priority:   PriorityP2,
			nextAction: ActionEmail,
		},
		{
			name:       "inquiry about a demo",
			note:       "I'm curious about a demo",
			intent:     IntentInquire,
			priority:   PriorityP2,
			nextAction: ActionNurture,
			tags:       []string{"trial"},
		},
		{
			name:       "buy outranks inquire when both match",
			note:       "no rush, just wondering about pricing someday",
			intent:     IntentBuy,
			priority:   PriorityP3,
			nextAction: ActionNurture,
		},
		{
			name:       "volume raises the default tier",
			note:       "we need licenses for 200 users",
			intent:     IntentBuy,
			priority:   PriorityP0,
			nextAction: ActionCall,
			tags:       []string{"volume"},
		},
		{
			name:       "no keyword match",
			note:       "hello there",
			intent:     IntentUnknown,
			priority:   PriorityP3,
			nextAction: ActionIgnore,
		},
		{
			name:       "unknown intent with urgency",
			note:       "please get back to me today",
			intent:     IntentUnknown,
			priority:   PriorityP0,
			nextAction: ActionEmail,
			tags:       []string{"urgent"},
		},
	}

	rules := NewRules()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rules.Classify(context.Background(), Input{Note: tt.note})
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if err := got.Validate(); err != nil {
				t.Fatalf("Classify() violated contract: %v", err)
			}
			if got.Intent != tt.intent {
				t.Errorf("intent = %q, want %q", got.Intent, tt.intent)
			}
			if got.Priority != tt.priority {
				t.Errorf("priority = %q, want %q", got.Priority, tt.priority)
			}
			if got.NextAction != tt.nextAction {
				t.Errorf("nextAction = %q, want %q", got.NextAction, tt.nextAction)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("confidence = %f, want in (0,1]", got.Confidence)
			}
			if !reflect.DeepEqual(got.Tags, tt.tags) {
				t.Errorf("tags = %v, want %v", got.Tags, tt.tags)
			}
		})
	}
}

func TestRulesClassifyDeterministic(t *testing.T) {
	rules := NewRules()
	in := Input{Note: "Urgent: our integration is broken, need help ASAP"}

	first, err := rules.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		again, err := rules.Classify(context.Background(), in)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Classify() not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestRulesConfidenceGrowsWithMatches(t *testing.T) {
	rules := NewRules()

	weak, err := rules.Classify(context.Background(), Input{Note: "what is the cost"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	strong, err := rules.Classify(context.Background(), Input{Note: "send a quote with pricing and cost to purchase"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if strong.Confidence <= weak.Confidence {
		t.Errorf("confidence %f should exceed %f with more keyword hits", strong.Confidence, weak.Confidence)
	}
	if strong.Confidence > 0.9 {
		t.Errorf("confidence = %f, want capped at 0.9", strong.Confidence)
	}
}
