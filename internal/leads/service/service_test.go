package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lead_triage_backend/internal/leads/cache"
	"lead_triage_backend/internal/leads/repository"
	"lead_triage_backend/internal/leads/transport"
	"lead_triage_backend/internal/stream"
	"lead_triage_backend/platform/apperr"
	"lead_triage_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadRepo struct {
	records     map[string]repository.IdempotencyRecord
	createErr   error
	onCreate    func(p repository.CreateLeadParams) error
	created     []repository.CreateLeadParams
	createCalls int
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{records: map[string]repository.IdempotencyRecord{}}
}

func (f *fakeLeadRepo) CreateLeadWithKey(_ context.Context, p repository.CreateLeadParams) error {
	f.createCalls++
	if f.onCreate != nil {
		return f.onCreate(p)
	}
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, p)
	f.records[p.Key] = repository.IdempotencyRecord{
		Key:         p.Key,
		PayloadHash: p.PayloadHash,
		LeadID:      p.Lead.ID,
		Response:    p.Response,
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (f *fakeLeadRepo) GetIdempotencyRecord(_ context.Context, key string) (repository.IdempotencyRecord, error) {
	rec, ok := f.records[key]
	if !ok {
		return repository.IdempotencyRecord{}, apperr.NotFound("idempotency key not found")
	}
	return rec, nil
}

func (f *fakeLeadRepo) GetLead(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	return repository.Lead{}, apperr.NotFound("lead not found")
}

func (f *fakeLeadRepo) GetInsight(_ context.Context, leadID uuid.UUID) (repository.Insight, error) {
	return repository.Insight{}, apperr.NotFound("no insight for lead yet")
}

type fakePublisher struct {
	err       error
	published []stream.LeadCreatedPayload
}

func (f *fakePublisher) PublishLeadCreated(_ context.Context, payload stream.LeadCreatedPayload) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, payload)
	return nil
}

type fakeOutbox struct {
	marked []uuid.UUID
}

func (f *fakeOutbox) MarkPublished(_ context.Context, id uuid.UUID) error {
	f.marked = append(f.marked, id)
	return nil
}

type fakeCache struct {
	entries map[string]cache.Entry
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]cache.Entry{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	entry, ok := f.entries[key]
	return entry, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, entry cache.Entry) error {
	f.entries[key] = entry
	return nil
}

func newTestService(repo repository.Repository, c ResponseCache, pub Publisher, ob OutboxMarker) *Service {
	return New(repo, c, pub, ob, logger.New("test"))
}

func noteRequest(note string) transport.CreateLeadRequest {
	return transport.CreateLeadRequest{Note: note}
}

func TestCreateLeadFresh(t *testing.T) {
	repo := newFakeLeadRepo()
	pub := &fakePublisher{}
	ob := &fakeOutbox{}
	c := newFakeCache()
	svc := newTestService(repo, c, pub, ob)

	result, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing"))
	if err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}
	if result.Status != StatusCreated {
		t.Errorf("status = %v, want StatusCreated", result.Status)
	}

	var resp transport.LeadResponse
	if err := json.Unmarshal(result.Response, &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Note != "need pricing" {
		t.Errorf("response note = %q", resp.Note)
	}
	if resp.ID == uuid.Nil {
		t.Error("response missing lead id")
	}

	if len(repo.created) != 1 {
		t.Fatalf("created %d leads, want 1", len(repo.created))
	}
	params := repo.created[0]
	if params.Key != "key-1" {
		t.Errorf("ledger key = %q", params.Key)
	}

	// The committed event reached the stream and retired its outbox row.
	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
	if pub.published[0].LeadID != resp.ID.String() {
		t.Errorf("published lead id = %q, want %q", pub.published[0].LeadID, resp.ID)
	}
	if len(ob.marked) != 1 || ob.marked[0] != params.OutboxID {
		t.Errorf("outbox marked = %v, want [%s]", ob.marked, params.OutboxID)
	}

	if _, ok := c.entries["key-1"]; !ok {
		t.Error("response was not cached under the idempotency key")
	}
}

func TestCreateLeadReplaySamePayload(t *testing.T) {
	repo := newFakeLeadRepo()
	pub := &fakePublisher{}
	svc := newTestService(repo, nil, pub, &fakeOutbox{})

	first, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing"))
	if err != nil {
		t.Fatalf("first CreateLead() error = %v", err)
	}

	second, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing"))
	if err != nil {
		t.Fatalf("second CreateLead() error = %v", err)
	}
	if second.Status != StatusReplayed {
		t.Errorf("status = %v, want StatusReplayed", second.Status)
	}
	if string(second.Response) != string(first.Response) {
		t.Errorf("replay response differs from original:\n%s\n%s", second.Response, first.Response)
	}
	if repo.createCalls != 1 {
		t.Errorf("create called %d times, want 1", repo.createCalls)
	}
	if len(pub.published) != 1 {
		t.Errorf("published %d events across a replay, want 1", len(pub.published))
	}
}

func TestCreateLeadReplayIgnoresCosmeticDifferences(t *testing.T) {
	repo := newFakeLeadRepo()
	svc := newTestService(repo, nil, &fakePublisher{}, &fakeOutbox{})

	if _, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing")); err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}

	result, err := svc.CreateLead(context.Background(), "key-1", noteRequest("  need pricing  "))
	if err != nil {
		t.Fatalf("CreateLead() with padded note error = %v", err)
	}
	if result.Status != StatusReplayed {
		t.Errorf("status = %v, want StatusReplayed for a whitespace-only difference", result.Status)
	}
}

func TestCreateLeadKeyConflict(t *testing.T) {
	repo := newFakeLeadRepo()
	svc := newTestService(repo, nil, &fakePublisher{}, &fakeOutbox{})

	if _, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing")); err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}

	_, err := svc.CreateLead(context.Background(), "key-1", noteRequest("completely different note"))
	if err == nil {
		t.Fatal("CreateLead() error = nil, want conflict")
	}
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("error kind = %v, want KindConflict", err)
	}
}

func TestCreateLeadInsertRace(t *testing.T) {
	repo := newFakeLeadRepo()
	winnerResp := json.RawMessage(`{"id":"11111111-1111-1111-1111-111111111111","note":"need pricing"}`)

	// The key is free at lookup time, but a concurrent request commits it
	// before our insert lands. The loser must replay the winner's response.
	repo.onCreate = func(_ repository.CreateLeadParams) error {
		repo.records["key-1"] = repository.IdempotencyRecord{
			Key:         "key-1",
			PayloadHash: PayloadFingerprint(noteRequest("need pricing")),
			Response:    winnerResp,
		}
		return repository.ErrKeyExists
	}

	svc := newTestService(repo, nil, &fakePublisher{}, &fakeOutbox{})

	result, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing"))
	if err != nil {
		t.Fatalf("CreateLead() error = %v, want replay after losing the race", err)
	}
	if result.Status != StatusReplayed {
		t.Errorf("status = %v, want StatusReplayed", result.Status)
	}
	if string(result.Response) != string(winnerResp) {
		t.Errorf("response = %s, want the winner's stored response", result.Response)
	}
}

func TestCreateLeadCacheFastPath(t *testing.T) {
	repo := newFakeLeadRepo()
	c := newFakeCache()
	cached := json.RawMessage(`{"id":"22222222-2222-2222-2222-222222222222","note":"need pricing"}`)
	c.entries["key-1"] = cache.Entry{
		PayloadHash: PayloadFingerprint(noteRequest("need pricing")),
		StatusCode:  201,
		Response:    cached,
	}
	svc := newTestService(repo, c, &fakePublisher{}, &fakeOutbox{})

	result, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing"))
	if err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}
	if result.Status != StatusReplayed {
		t.Errorf("status = %v, want StatusReplayed from cache", result.Status)
	}
	if string(result.Response) != string(cached) {
		t.Errorf("response = %s, want cached bytes", result.Response)
	}
	if repo.createCalls != 0 {
		t.Errorf("create called %d times on a cache hit, want 0", repo.createCalls)
	}
}

func TestCreateLeadCacheHashMismatchConflicts(t *testing.T) {
	c := newFakeCache()
	c.entries["key-1"] = cache.Entry{
		PayloadHash: "different-hash",
		Response:    json.RawMessage(`{}`),
	}
	svc := newTestService(newFakeLeadRepo(), c, &fakePublisher{}, &fakeOutbox{})

	_, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing"))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("error = %v, want KindConflict", err)
	}
}

func TestCreateLeadPublishFailureStillSucceeds(t *testing.T) {
	repo := newFakeLeadRepo()
	pub := &fakePublisher{err: errors.New("redis unavailable")}
	ob := &fakeOutbox{}
	svc := newTestService(repo, nil, pub, ob)

	result, err := svc.CreateLead(context.Background(), "key-1", noteRequest("need pricing"))
	if err != nil {
		t.Fatalf("CreateLead() error = %v, want success; the relay delivers later", err)
	}
	if result.Status != StatusCreated {
		t.Errorf("status = %v, want StatusCreated", result.Status)
	}
	// The outbox row stays pending for the relay.
	if len(ob.marked) != 0 {
		t.Errorf("outbox marked %v despite failed publish", ob.marked)
	}
}
