package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"lead_triage_backend/internal/leads/transport"
)

// PayloadFingerprint returns the canonical hash of a create-lead payload.
// The payload is marshalled from the bound struct, so JSON field order and
// whitespace in the original request body never change the hash; any value
// change does. A key's fingerprint is fixed forever once recorded.
func PayloadFingerprint(req transport.CreateLeadRequest) string {
	canonical, err := json.Marshal(req)
	if err != nil {
		// CreateLeadRequest contains only strings; Marshal cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
