package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/sanitize"
	"github.com/hitoshi/planboard/internal/security"
)

// mockDraftStore はDraftStoreInterfaceのモック実装。
type mockDraftStore struct {
	draft   *model.Entry
	saved   *model.Entry
	cleared bool
}

func (m *mockDraftStore) LoadDraft(ctx context.Context) *model.Entry { return m.draft }

func (m *mockDraftStore) SaveDraft(ctx context.Context, draft *model.Entry) error {
	m.saved = draft
	return nil
}

func (m *mockDraftStore) ClearDraft(ctx context.Context) error {
	m.cleared = true
	return nil
}

func newDraftRouter(store DraftStoreInterface) http.Handler {
	h := NewDraftHandler(store, sanitize.NewSanitizer(security.NewTextSanitizer()))
	r := chi.NewRouter()
	r.Route("/api/draft", func(r chi.Router) {
		r.Get("/", h.GetDraft)
		r.Put("/", h.SaveDraft)
		r.Delete("/", h.ClearDraft)
	})
	return r
}

func TestDraftHandler_GetDraft(t *testing.T) {
	store := &mockDraftStore{draft: &model.Entry{ID: "d-1", Caption: "下書きキャプション"}}
	r := newDraftRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/draft", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["id"] != "d-1" {
		t.Errorf("id = %v, want d-1", body["id"])
	}
}

func TestDraftHandler_GetDraft_Missing_Returns404(t *testing.T) {
	r := newDraftRouter(&mockDraftStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/draft", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestDraftHandler_SaveDraft_SanitizesInput(t *testing.T) {
	store := &mockDraftStore{}
	r := newDraftRouter(store)

	body := `{"id":"d-1","caption":"<script>alert(1)</script>安全なテキスト"}`
	req := httptest.NewRequest(http.MethodPut, "/api/draft", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if store.saved == nil {
		t.Fatal("draft was not saved")
	}
	if strings.Contains(store.saved.Caption, "<script>") {
		t.Errorf("caption = %q, script tag should be stripped", store.saved.Caption)
	}
	if !strings.Contains(store.saved.Caption, "安全なテキスト") {
		t.Errorf("caption = %q, plain text should survive", store.saved.Caption)
	}
}

func TestDraftHandler_SaveDraft_InvalidBody_Returns400(t *testing.T) {
	r := newDraftRouter(&mockDraftStore{})

	req := httptest.NewRequest(http.MethodPut, "/api/draft", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestDraftHandler_ClearDraft(t *testing.T) {
	store := &mockDraftStore{draft: &model.Entry{ID: "d-1"}}
	r := newDraftRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/draft", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if !store.cleared {
		t.Error("ClearDraft was not called on the store")
	}
}
