package classifier

import (
	"context"
	"regexp"
	"strings"
)

// intentRule maps keywords to an intent and the default priority that intent
// carries when the note contains no explicit urgency language.
type intentRule struct {
	intent          Intent
	keywords        []string
	defaultPriority Priority
}

// Rules are checked in order; the first intent with a keyword hit wins, so a
// note that both buys and complains is triaged as a purchase.
var intentRules = []intentRule{
	{
		intent: IntentBuy,
		keywords: []string{
			"pricing", "price", "quote", "buy", "purchase", "cost",
			"seats", "license", "upgrade", "order", "budget",
		},
		defaultPriority: PriorityP1,
	},
	{
		intent: IntentSupport,
		keywords: []string{
			"help", "broken", "not working", "error", "bug", "issue",
			"crash", "support", "down",
		},
		defaultPriority: PriorityP2,
	},
	{
		intent: IntentInquire,
		keywords: []string{
			"question", "wondering", "curious", "interested", "learn more",
			"more info", "demo", "trial", "how does",
		},
		defaultPriority: PriorityP2,
	},
}

var urgencyKeywords = map[Priority][]string{
	PriorityP0: {"urgent", "asap", "immediately", "today", "right away", "critical"},
	PriorityP1: {"soon", "this week", "shortly", "quickly"},
	PriorityP3: {"someday", "no rush", "whenever", "eventually"},
}

// actionTable derives the next action from intent and priority.
var actionTable = map[Intent]map[Priority]NextAction{
	IntentBuy: {
		PriorityP0: ActionCall, PriorityP1: ActionCall,
		PriorityP2: ActionEmail, PriorityP3: ActionNurture,
	},
	IntentSupport: {
		PriorityP0: ActionCall, PriorityP1: ActionEmail,
		PriorityP2: ActionEmail, PriorityP3: ActionEmail,
	},
	IntentInquire: {
		PriorityP0: ActionEmail, PriorityP1: ActionEmail,
		PriorityP2: ActionNurture, PriorityP3: ActionNurture,
	},
	IntentUnknown: {
		PriorityP0: ActionEmail, PriorityP1: ActionNurture,
		PriorityP2: ActionNurture, PriorityP3: ActionIgnore,
	},
}

var volumePattern = regexp.MustCompile(`\b\d+\s*(seats?|users?|licenses?|employees?)\b`)

// Rules is the deterministic keyword-matching classifier. Same input always
// yields the same output; it never returns an error.
type Rules struct{}

// NewRules creates the rule-based classifier.
func NewRules() *Rules {
	return &Rules{}
}

var _ Classifier = (*Rules)(nil)

// Classify derives an insight draft from the note text alone.
func (r *Rules) Classify(_ context.Context, in Input) (Result, error) {
	note := strings.ToLower(in.Note)

	intent, matches := detectIntent(note)
	priority := detectPriority(note, intent)

	// Volume or budget language bumps the tier: a 50-seat request is not a
	// routine inquiry even without urgency words.
	if volumePattern.MatchString(note) {
		priority = raiseTier(priority)
	}

	return Result{
		Intent:     intent,
		Priority:   priority,
		NextAction: actionTable[intent][priority],
		Confidence: confidence(intent, matches),
		Tags:       detectTags(note),
	}, nil
}

func detectIntent(note string) (Intent, int) {
	for _, rule := range intentRules {
		matches := 0
		for _, kw := range rule.keywords {
			if strings.Contains(note, kw) {
				matches++
			}
		}
		if matches > 0 {
			return rule.intent, matches
		}
	}
	return IntentUnknown, 0
}

func detectPriority(note string, intent Intent) Priority {
	for _, tier := range []Priority{PriorityP0, PriorityP1, PriorityP3} {
		for _, kw := range urgencyKeywords[tier] {
			if strings.Contains(note, kw) {
				return tier
			}
		}
	}

	for _, rule := range intentRules {
		if rule.intent == intent {
			return rule.defaultPriority
		}
	}
	return PriorityP3
}

func raiseTier(p Priority) Priority {
	switch p {
	case PriorityP3:
		return PriorityP2
	case PriorityP2:
		return PriorityP1
	case PriorityP1:
		return PriorityP0
	default:
		return p
	}
}

func confidence(intent Intent, matches int) float64 {
	if intent == IntentUnknown {
		return 0.3
	}
	c := 0.3 + float64(matches)*0.2
	if c > 0.9 {
		c = 0.9
	}
	return c
}

func detectTags(note string) []string {
	var tags []string
	if containsAny(note, urgencyKeywords[PriorityP0]) {
		tags = append(tags, "urgent")
	}
	if containsAny(note, []string{"enterprise", "company-wide", "whole team", "organization"}) {
		tags = append(tags, "enterprise")
	}
	if containsAny(note, []string{"trial", "demo", "evaluate", "evaluation"}) {
		tags = append(tags, "trial")
	}
	if volumePattern.MatchString(note) {
		tags = append(tags, "volume")
	}
	return tags
}

func containsAny(note string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(note, kw) {
			return true
		}
	}
	return false
}
