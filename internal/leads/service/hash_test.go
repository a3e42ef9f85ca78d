package service

import (
	"testing"

	"lead_triage_backend/internal/leads/transport"
)

func strPtr(s string) *string { return &s }

func TestPayloadFingerprint(t *testing.T) {
	base := transport.CreateLeadRequest{
		Email: strPtr("a@example.com"),
		Note:  "need pricing",
	}

	t.Run("stable across calls", func(t *testing.T) {
		if PayloadFingerprint(base) != PayloadFingerprint(base) {
			t.Fatal("same payload produced different fingerprints")
		}
	})

	t.Run("value change changes the fingerprint", func(t *testing.T) {
		changed := base
		changed.Note = "need support"
		if PayloadFingerprint(base) == PayloadFingerprint(changed) {
			t.Fatal("different payloads produced the same fingerprint")
		}
	})

	t.Run("absent and present fields differ", func(t *testing.T) {
		noEmail := transport.CreateLeadRequest{Note: "need pricing"}
		if PayloadFingerprint(base) == PayloadFingerprint(noEmail) {
			t.Fatal("payloads with and without email produced the same fingerprint")
		}
	})
}

func TestNormalizeRequest(t *testing.T) {
	req := transport.CreateLeadRequest{
		Email:  strPtr("  a@example.com  "),
		Name:   strPtr("   "),
		Note:   "  need pricing  ",
		Source: strPtr("web"),
	}

	got := normalizeRequest(req)

	if got.Note != "need pricing" {
		t.Errorf("note = %q", got.Note)
	}
	if got.Email == nil || *got.Email != "a@example.com" {
		t.Errorf("email = %v, want trimmed", got.Email)
	}
	if got.Name != nil {
		t.Errorf("name = %v, want nil for whitespace-only input", got.Name)
	}
	if got.Source == nil || *got.Source != "web" {
		t.Errorf("source = %v", got.Source)
	}

	// Normalization feeds the fingerprint, so padded and clean payloads
	// collapse to the same key identity.
	clean := transport.CreateLeadRequest{
		Email:  strPtr("a@example.com"),
		Note:   "need pricing",
		Source: strPtr("web"),
	}
	if PayloadFingerprint(got) != PayloadFingerprint(normalizeRequest(clean)) {
		t.Error("normalized padded payload does not match clean payload")
	}
}
