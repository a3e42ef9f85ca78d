package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lead_triage_backend/internal/leads/service"
	"lead_triage_backend/internal/leads/transport"
	"lead_triage_backend/platform/httpkit"
	"lead_triage_backend/platform/validator"
)

const (
	msgMissingKey       = "Idempotency-Key header required"
	msgInvalidRequest   = "invalid request body"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid lead ID"
)

// Handler handles HTTP requests for the leads pipeline.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Create accepts a lead submission under an idempotency key.
// POST /api/v1/leads
func (h *Handler) Create(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingKey, nil)
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusUnprocessableEntity, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreateLead(c.Request.Context(), key, req)
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusCreated
	if result.Status == service.StatusReplayed {
		status = http.StatusOK
	}

	// The stored response bytes are replayed verbatim so the 2nd..Nth calls
	// return exactly what the first success returned.
	c.Data(status, "application/json; charset=utf-8", result.Response)
}

// GetByID retrieves a lead.
// GET /api/v1/leads/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetInsight retrieves the insight derived from a lead.
// GET /api/v1/leads/:id/insight
func (h *Handler) GetInsight(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetInsight(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
