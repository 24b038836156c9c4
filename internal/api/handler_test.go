package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/feedtrack/internal/assistant"
	"github.com/kalambet/feedtrack/internal/feedback"
	"github.com/kalambet/feedtrack/internal/storage"
)

// --- mocks ---

type mockAnswerProvider struct {
	mu       sync.Mutex
	answer   string
	err      error
	calls    int
	question string
}

func (m *mockAnswerProvider) Ask(_ context.Context, question string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.question = question
	return m.answer, m.err
}

type failingStore struct{}

func (failingStore) LoadAll(context.Context) ([]feedback.Record, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) SaveAll(context.Context, []feedback.Record) error {
	return errors.New("disk on fire")
}

// --- helpers ---

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), storage.FeedbackFile))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return Deps{
		Feedback:      feedback.NewService(store),
		Assistant:     &mockAnswerProvider{answer: "ok"},
		AllowedOrigin: "http://localhost:3000",
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func createTestRecord(t *testing.T, h http.Handler, body string) feedback.Record {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/feedback", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[feedback.Record](t, w)
}

// --- tests ---

func TestScenario_CreateResolveDelete(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	w := do(t, h, http.MethodPost, "/api/feedback", `{"title":"Bug on login","description":"Cannot log in on Safari"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201; body = %s", w.Code, w.Body.String())
	}
	created := decode[feedback.Record](t, w)
	if created.Category != feedback.CategoryGeneral {
		t.Errorf("category = %q, want general", created.Category)
	}
	if created.Priority != feedback.PriorityMedium {
		t.Errorf("priority = %q, want medium", created.Priority)
	}
	if created.Status != feedback.StatusOpen {
		t.Errorf("status = %q, want open", created.Status)
	}
	if created.ID == "" {
		t.Fatal("expected an id")
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Errorf("createdAt %v != updatedAt %v", created.CreatedAt, created.UpdatedAt)
	}

	w = do(t, h, http.MethodPut, "/api/feedback/"+created.ID, `{"status":"resolved"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decode[feedback.Record](t, w)
	if updated.Status != feedback.StatusResolved {
		t.Errorf("status = %q, want resolved", updated.Status)
	}
	if updated.Title != "Bug on login" {
		t.Errorf("title = %q, want unchanged", updated.Title)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updatedAt did not advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}

	w = do(t, h, http.MethodDelete, "/api/feedback/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", w.Code, w.Body.String())
	}
	msg := decode[map[string]string](t, w)
	if msg["message"] != "Feedback deleted successfully" {
		t.Errorf("delete message = %q", msg["message"])
	}

	w = do(t, h, http.MethodGet, "/api/feedback", "")
	list := decode[[]feedback.Record](t, w)
	for _, r := range list {
		if r.ID == created.ID {
			t.Errorf("deleted record %s still listed", created.ID)
		}
	}
}

func TestListFeedback_EmptyIsArray(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	w := do(t, h, http.MethodGet, "/api/feedback", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestListFeedback_Filters(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	bug := createTestRecord(t, h, `{"title":"a","description":"a","category":"bug","priority":"high"}`)
	createTestRecord(t, h, `{"title":"b","description":"b","category":"feature","priority":"high"}`)
	createTestRecord(t, h, `{"title":"c","description":"c","category":"bug","priority":"low"}`)

	w := do(t, h, http.MethodGet, "/api/feedback?category=bug&priority=high", "")
	list := decode[[]feedback.Record](t, w)
	if len(list) != 1 || list[0].ID != bug.ID {
		t.Errorf("filtered list = %+v, want only %s", list, bug.ID)
	}

	w = do(t, h, http.MethodGet, "/api/feedback?status=resolved", "")
	if list := decode[[]feedback.Record](t, w); len(list) != 0 {
		t.Errorf("status=resolved returned %d records, want 0", len(list))
	}

	w = do(t, h, http.MethodGet, "/api/feedback?category=urgent", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid filter status = %d, want 400", w.Code)
	}
}

func TestListFeedback_PreservesOrder(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	var ids []string
	for i := range 5 {
		rec := createTestRecord(t, h, fmt.Sprintf(`{"title":"t%d","description":"d"}`, i))
		ids = append(ids, rec.ID)
	}

	list := decode[[]feedback.Record](t, do(t, h, http.MethodGet, "/api/feedback", ""))
	if len(list) != len(ids) {
		t.Fatalf("got %d records, want %d", len(list), len(ids))
	}
	for i := range ids {
		if list[i].ID != ids[i] {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, ids[i])
		}
	}
}

func TestCreateFeedback_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing title", `{"description":"d"}`, http.StatusBadRequest},
		{"missing description", `{"title":"t"}`, http.StatusBadRequest},
		{"whitespace title", `{"title":"   ","description":"d"}`, http.StatusBadRequest},
		{"malformed json", `{"title":`, http.StatusBadRequest},
		{"wrong type", `{"title":5,"description":"d"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newTestDeps(t))

			w := do(t, h, http.MethodPost, "/api/feedback", tt.body)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, tt.code, w.Body.String())
			}
			e := decode[errorBody](t, w)
			if e.Type != errValidation || e.Error == "" {
				t.Errorf("error body = %+v", e)
			}

			list := decode[[]feedback.Record](t, do(t, h, http.MethodGet, "/api/feedback", ""))
			if len(list) != 0 {
				t.Errorf("collection size = %d after rejected create", len(list))
			}
		})
	}
}

func TestCreateFeedback_MissingFieldsMessage(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	w := do(t, h, http.MethodPost, "/api/feedback", `{"title":""}`)
	e := decode[errorBody](t, w)
	if e.Error != "Title and description are required" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestCreateFeedback_IgnoresClientIdentity(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rec := createTestRecord(t, h, `{"id":"mine","title":"t","description":"d","status":"resolved","createdAt":"2001-01-01T00:00:00Z"}`)
	if rec.ID == "mine" {
		t.Error("client-supplied id was used")
	}
	if rec.Status != feedback.StatusOpen {
		t.Errorf("status = %q, want open", rec.Status)
	}
	if rec.CreatedAt.Year() == 2001 {
		t.Error("client-supplied createdAt was used")
	}
}

func TestCreateFeedback_BodyTooLarge(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	big := `{"title":"t","description":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	w := do(t, h, http.MethodPost, "/api/feedback", big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestCreateFeedback_NonStringEnumsDefault(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	rec := createTestRecord(t, h, `{"title":"a","description":"b","category":5,"priority":true}`)
	if rec.Category != feedback.CategoryGeneral {
		t.Errorf("category = %q, want general", rec.Category)
	}
	if rec.Priority != feedback.PriorityMedium {
		t.Errorf("priority = %q, want medium", rec.Priority)
	}
}

func TestCreateFeedback_MalformedBodyMessage(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	for _, body := range []string{`{"title":5,"description":"d"}`, `{"title":`, `not json`} {
		w := do(t, h, http.MethodPost, "/api/feedback", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
			continue
		}
		e := decode[errorBody](t, w)
		if e.Error != "Invalid JSON request body" || e.Type != errValidation {
			t.Errorf("%s: error body = %+v", body, e)
		}
	}
}

func TestCreateFeedback_EmptyBody(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	w := do(t, h, http.MethodPost, "/api/feedback", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if e := decode[errorBody](t, w); e.Error != "Title and description are required" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestUpdateFeedback_EmptyBody(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rec := createTestRecord(t, h, `{"title":"t","description":"d"}`)

	w := do(t, h, http.MethodPut, "/api/feedback/"+rec.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[feedback.Record](t, w)
	if got.Title != "t" || got.Status != feedback.StatusOpen {
		t.Errorf("record changed by empty update: %+v", got)
	}
	if !got.UpdatedAt.After(rec.UpdatedAt) {
		t.Errorf("updatedAt = %v, want after %v", got.UpdatedAt, rec.UpdatedAt)
	}

	w = do(t, h, http.MethodPut, "/api/feedback/does-not-exist", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
}

func TestUpdateFeedback_IgnoresImmutableFields(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rec := createTestRecord(t, h, `{"title":"t","description":"d"}`)

	body := `{"id":"other","createdAt":"2001-01-01T00:00:00Z","updatedAt":"2001-01-01T00:00:00Z","priority":"high"}`
	w := do(t, h, http.MethodPut, "/api/feedback/"+rec.ID, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[feedback.Record](t, w)
	if got.ID != rec.ID {
		t.Errorf("id = %q, want %q", got.ID, rec.ID)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
	if got.Priority != feedback.PriorityHigh {
		t.Errorf("priority = %q, want high", got.Priority)
	}
	if got.UpdatedAt.Year() == 2001 {
		t.Error("client-supplied updatedAt was used")
	}
}

func TestUpdateFeedback_InvalidStatus(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	rec := createTestRecord(t, h, `{"title":"t","description":"d"}`)

	w := do(t, h, http.MethodPut, "/api/feedback/"+rec.ID, `{"status":"done"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	got := decode[feedback.Record](t, do(t, h, http.MethodGet, "/api/feedback/"+rec.ID, ""))
	if got.Status != feedback.StatusOpen {
		t.Errorf("status = %q after rejected update, want open", got.Status)
	}
}

func TestNotFound(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	createTestRecord(t, h, `{"title":"t","description":"d"}`)

	for _, tc := range []struct{ method, body string }{
		{http.MethodGet, ""},
		{http.MethodPut, `{"title":"x"}`},
		{http.MethodDelete, ""},
	} {
		w := do(t, h, tc.method, "/api/feedback/does-not-exist", tc.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", tc.method, w.Code)
			continue
		}
		e := decode[errorBody](t, w)
		if e.Error != "Feedback not found" || e.Type != errNotFound {
			t.Errorf("%s error body = %+v", tc.method, e)
		}
	}

	list := decode[[]feedback.Record](t, do(t, h, http.MethodGet, "/api/feedback", ""))
	if len(list) != 1 {
		t.Errorf("collection size = %d, want 1", len(list))
	}
}

func TestStorageFailure(t *testing.T) {
	deps := newTestDeps(t)
	deps.Feedback = feedback.NewService(failingStore{})
	h := NewHandler(deps)

	w := do(t, h, http.MethodGet, "/api/feedback", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	e := decode[errorBody](t, w)
	if e.Type != errStorage || e.Error != "Failed to read feedback" {
		t.Errorf("error body = %+v", e)
	}
	if strings.Contains(w.Body.String(), "disk on fire") {
		t.Error("internal error leaked to client")
	}

	w = do(t, h, http.MethodPost, "/api/feedback", `{"title":"t","description":"d"}`)
	if e := decode[errorBody](t, w); e.Error != "Failed to create feedback" {
		t.Errorf("create error = %q", e.Error)
	}
}

func TestFeedbackStats(t *testing.T) {
	h := NewHandler(newTestDeps(t))
	createTestRecord(t, h, `{"title":"a","description":"a","category":"bug"}`)
	createTestRecord(t, h, `{"title":"b","description":"b","category":"bug","priority":"high"}`)

	w := do(t, h, http.MethodGet, "/api/feedback/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	stats := decode[feedback.Stats](t, w)
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByCategory[feedback.CategoryBug] != 2 || stats.ByCategory[feedback.CategoryFeature] != 0 {
		t.Errorf("byCategory = %v", stats.ByCategory)
	}
	if stats.ByStatus[feedback.StatusOpen] != 2 {
		t.Errorf("byStatus = %v", stats.ByStatus)
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	w := do(t, h, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[map[string]string](t, w)
	if body["status"] != "OK" || body["timestamp"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestCORS(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/feedback", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/feedback", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for foreign origin = %q, want empty", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	w := do(t, h, http.MethodGet, "/api/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestConcurrentCreates(t *testing.T) {
	h := NewHandler(newTestDeps(t))

	const n = 25
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := bytes.NewBufferString(fmt.Sprintf(`{"title":"t%d","description":"d"}`, i))
			req := httptest.NewRequest(http.MethodPost, "/api/feedback", body)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusCreated {
				t.Errorf("status = %d", w.Code)
			}
		}()
	}
	wg.Wait()

	list := decode[[]feedback.Record](t, do(t, h, http.MethodGet, "/api/feedback", ""))
	if len(list) != n {
		t.Errorf("got %d records, want %d", len(list), n)
	}
}

var _ assistant.AnswerProvider = (*mockAnswerProvider)(nil)
