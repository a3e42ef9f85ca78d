package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lead_triage_backend/internal/leads/repository"
	"lead_triage_backend/internal/leads/service"
	"lead_triage_backend/platform/apperr"
	"lead_triage_backend/platform/logger"
	"lead_triage_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeRepo struct {
	records  map[string]repository.IdempotencyRecord
	leads    map[uuid.UUID]repository.Lead
	insights map[uuid.UUID]repository.Insight
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:  map[string]repository.IdempotencyRecord{},
		leads:    map[uuid.UUID]repository.Lead{},
		insights: map[uuid.UUID]repository.Insight{},
	}
}

func (f *fakeRepo) CreateLeadWithKey(_ context.Context, p repository.CreateLeadParams) error {
	if _, ok := f.records[p.Key]; ok {
		return repository.ErrKeyExists
	}
	f.records[p.Key] = repository.IdempotencyRecord{
		Key:         p.Key,
		PayloadHash: p.PayloadHash,
		LeadID:      p.Lead.ID,
		Response:    p.Response,
		CreatedAt:   time.Now().UTC(),
	}
	f.leads[p.Lead.ID] = p.Lead
	return nil
}

func (f *fakeRepo) GetIdempotencyRecord(_ context.Context, key string) (repository.IdempotencyRecord, error) {
	rec, ok := f.records[key]
	if !ok {
		return repository.IdempotencyRecord{}, apperr.NotFound("idempotency key not found")
	}
	return rec, nil
}

func (f *fakeRepo) GetLead(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeRepo) GetInsight(_ context.Context, leadID uuid.UUID) (repository.Insight, error) {
	insight, ok := f.insights[leadID]
	if !ok {
		return repository.Insight{}, apperr.NotFound("no insight for lead yet")
	}
	return insight, nil
}

func newTestRouter(repo repository.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := service.New(repo, nil, nil, nil, logger.New("test"))
	h := New(svc, validator.New())

	engine := gin.New()
	api := engine.Group("/api/v1")
	api.POST("/leads", h.Create)
	api.GET("/leads/:id", h.GetByID)
	api.GET("/leads/:id/insight", h.GetInsight)
	return engine
}

func postLead(t *testing.T, engine *gin.Engine, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCreateLead(t *testing.T) {
	t.Run("missing idempotency key", func(t *testing.T) {
		engine := newTestRouter(newFakeRepo())
		rec := postLead(t, engine, "", `{"note":"need pricing"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		engine := newTestRouter(newFakeRepo())
		rec := postLead(t, engine, "key-1", `{"note":`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("missing note", func(t *testing.T) {
		engine := newTestRouter(newFakeRepo())
		rec := postLead(t, engine, "key-1", `{"email":"a@example.com"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		engine := newTestRouter(newFakeRepo())
		rec := postLead(t, engine, "key-1", `{"note":"hi","email":"not-an-email"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("fresh create returns 201", func(t *testing.T) {
		engine := newTestRouter(newFakeRepo())
		rec := postLead(t, engine, "key-1", `{"note":"need pricing"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body)
		}

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		if resp["note"] != "need pricing" {
			t.Errorf("note = %v", resp["note"])
		}
		if _, err := uuid.Parse(resp["id"].(string)); err != nil {
			t.Errorf("id = %v, want a UUID", resp["id"])
		}
	})

	t.Run("replay returns 200 with identical body", func(t *testing.T) {
		engine := newTestRouter(newFakeRepo())
		first := postLead(t, engine, "key-1", `{"note":"need pricing"}`)
		if first.Code != http.StatusCreated {
			t.Fatalf("first status = %d, want 201", first.Code)
		}

		second := postLead(t, engine, "key-1", `{"note":"need pricing"}`)
		if second.Code != http.StatusOK {
			t.Fatalf("second status = %d, want 200", second.Code)
		}
		if second.Body.String() != first.Body.String() {
			t.Errorf("replay body differs:\n%s\n%s", second.Body, first.Body)
		}
	})

	t.Run("key reuse with different payload returns 409", func(t *testing.T) {
		engine := newTestRouter(newFakeRepo())
		if rec := postLead(t, engine, "key-1", `{"note":"need pricing"}`); rec.Code != http.StatusCreated {
			t.Fatalf("first status = %d, want 201", rec.Code)
		}

		rec := postLead(t, engine, "key-1", `{"note":"totally different"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})
}

func TestGetLead(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	repo.leads[leadID] = repository.Lead{ID: leadID, Note: "need pricing", CreatedAt: time.Now().UTC()}
	engine := newTestRouter(repo)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/"+leadID.String(), nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGetInsight(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	repo.insights[leadID] = repository.Insight{
		ID:         uuid.New(),
		LeadID:     leadID,
		Intent:     "buy",
		Priority:   "P1",
		NextAction: "call",
		Confidence: 0.7,
		CreatedAt:  time.Now().UTC(),
	}
	engine := newTestRouter(repo)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/"+leadID.String()+"/insight", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
		if resp["intent"] != "buy" || resp["nextAction"] != "call" {
			t.Errorf("unexpected insight body: %v", resp)
		}
	})

	t.Run("not yet produced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/"+uuid.NewString()+"/insight", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}
