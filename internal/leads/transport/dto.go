package transport

import "github.com/google/uuid"

// CreateLeadRequest is the POST /leads body.
type CreateLeadRequest struct {
	Email  *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone  *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Name   *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Note   string  `json:"note" validate:"required,min=1"`
	Source *string `json:"source,omitempty" validate:"omitempty,max=100"`
}

// LeadResponse represents a lead in API responses.
type LeadResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Name      *string   `json:"name,omitempty"`
	Note      string    `json:"note"`
	Source    *string   `json:"source,omitempty"`
	CreatedAt string    `json:"createdAt"`
}

// InsightResponse represents a lead's structured insight in API responses.
type InsightResponse struct {
	ID         uuid.UUID `json:"id"`
	LeadID     uuid.UUID `json:"leadId"`
	Intent     string    `json:"intent"`
	Priority   string    `json:"priority"`
	NextAction string    `json:"nextAction"`
	Confidence float64   `json:"confidence"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  string    `json:"createdAt"`
}
