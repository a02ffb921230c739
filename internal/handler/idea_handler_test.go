package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/planboard/internal/middleware"
	"github.com/hitoshi/planboard/internal/model"
)

// mockIdeaService はIdeaServiceInterfaceのモック実装。
type mockIdeaService struct {
	listFn    func() []*model.Idea
	getFn     func(id string) (*model.Idea, error)
	addFn     func(ctx context.Context, raw any, actor string) (*model.Idea, error)
	updateFn  func(ctx context.Context, id string, raw any) (*model.Idea, error)
	deleteFn  func(ctx context.Context, id string) error
	convertFn func(ctx context.Context, id, actor string) (*model.Entry, error)
}

func (m *mockIdeaService) List() []*model.Idea {
	if m.listFn != nil {
		return m.listFn()
	}
	return nil
}

func (m *mockIdeaService) Get(id string) (*model.Idea, error) {
	if m.getFn != nil {
		return m.getFn(id)
	}
	return nil, model.NewIdeaNotFoundError(id)
}

func (m *mockIdeaService) Add(ctx context.Context, raw any, actor string) (*model.Idea, error) {
	if m.addFn != nil {
		return m.addFn(ctx, raw, actor)
	}
	return &model.Idea{ID: "i-new"}, nil
}

func (m *mockIdeaService) Update(ctx context.Context, id string, raw any) (*model.Idea, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, raw)
	}
	return &model.Idea{ID: id}, nil
}

func (m *mockIdeaService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockIdeaService) ConvertToEntry(ctx context.Context, id, actor string) (*model.Entry, error) {
	if m.convertFn != nil {
		return m.convertFn(ctx, id, actor)
	}
	return &model.Entry{ID: "e-from-" + id}, nil
}

// mockIdeaImporter はIdeaImporterInterfaceのモック実装。
type mockIdeaImporter struct {
	importFn func(ctx context.Context, rawURL, actor string) ([]*model.Idea, error)
}

func (m *mockIdeaImporter) ImportFromURL(ctx context.Context, rawURL, actor string) ([]*model.Idea, error) {
	if m.importFn != nil {
		return m.importFn(ctx, rawURL, actor)
	}
	return nil, nil
}

func newIdeaRouter(service IdeaServiceInterface, importer IdeaImporterInterface) http.Handler {
	h := NewIdeaHandler(service, importer)
	r := chi.NewRouter()
	r.Use(middleware.NewActorMiddleware())
	r.Route("/api/ideas", func(r chi.Router) {
		r.Get("/", h.ListIdeas)
		r.Post("/", h.CreateIdea)
		r.Post("/import", h.ImportIdeas)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetIdea)
			r.Patch("/", h.UpdateIdea)
			r.Delete("/", h.DeleteIdea)
			r.Post("/convert", h.ConvertIdea)
		})
	})
	return r
}

func TestIdeaHandler_ListIdeas(t *testing.T) {
	service := &mockIdeaService{
		listFn: func() []*model.Idea {
			return []*model.Idea{{ID: "i-1", Title: "夏キャンペーン案"}}
		},
	}

	r := newIdeaRouter(service, &mockIdeaImporter{})
	req := httptest.NewRequest(http.MethodGet, "/api/ideas", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body []map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 1 || body[0]["id"] != "i-1" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestIdeaHandler_CreateIdea_PassesActor(t *testing.T) {
	var gotActor string
	var gotRaw map[string]any
	service := &mockIdeaService{
		addFn: func(ctx context.Context, raw any, actor string) (*model.Idea, error) {
			gotActor = actor
			gotRaw, _ = raw.(map[string]any)
			return &model.Idea{ID: "i-new", Title: "new idea"}, nil
		},
	}

	r := newIdeaRouter(service, &mockIdeaImporter{})
	req := httptest.NewRequest(http.MethodPost, "/api/ideas", strings.NewReader(`{"title":"new idea","type":"blog"}`))
	req.Header.Set("X-Actor", "Dan")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
	if gotActor != "Dan" {
		t.Errorf("actor = %q, want %q", gotActor, "Dan")
	}
	if gotRaw["title"] != "new idea" {
		t.Errorf("raw title = %v, want %q", gotRaw["title"], "new idea")
	}
}

func TestIdeaHandler_GetIdea_NotFound(t *testing.T) {
	r := newIdeaRouter(&mockIdeaService{}, &mockIdeaImporter{})
	req := httptest.NewRequest(http.MethodGet, "/api/ideas/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}

	var body map[string]any
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body["code"] != "IDEA_NOT_FOUND" {
		t.Errorf("code = %v, want IDEA_NOT_FOUND", body["code"])
	}
}

func TestIdeaHandler_ConvertIdea_ReturnsEntry(t *testing.T) {
	var gotID, gotActor string
	service := &mockIdeaService{
		convertFn: func(ctx context.Context, id, actor string) (*model.Entry, error) {
			gotID, gotActor = id, actor
			return &model.Entry{ID: "e-99"}, nil
		},
	}

	r := newIdeaRouter(service, &mockIdeaImporter{})
	req := httptest.NewRequest(http.MethodPost, "/api/ideas/i-7/convert", nil)
	req.Header.Set("X-Actor", "Erin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
	if gotID != "i-7" || gotActor != "Erin" {
		t.Errorf("convert called with (%q, %q), want (i-7, Erin)", gotID, gotActor)
	}
}

func TestIdeaHandler_ConvertIdea_AlreadyConverted_Returns409(t *testing.T) {
	service := &mockIdeaService{
		convertFn: func(ctx context.Context, id, actor string) (*model.Entry, error) {
			return nil, model.NewIdeaAlreadyConvertedError(id)
		},
	}

	r := newIdeaRouter(service, &mockIdeaImporter{})
	req := httptest.NewRequest(http.MethodPost, "/api/ideas/i-1/convert", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
}

func TestIdeaHandler_ImportIdeas_PassesURLAndActor(t *testing.T) {
	var gotURL, gotActor string
	importer := &mockIdeaImporter{
		importFn: func(ctx context.Context, rawURL, actor string) ([]*model.Idea, error) {
			gotURL, gotActor = rawURL, actor
			return []*model.Idea{{ID: "i-imp-1"}, {ID: "i-imp-2"}}, nil
		},
	}

	r := newIdeaRouter(&mockIdeaService{}, importer)
	req := httptest.NewRequest(http.MethodPost, "/api/ideas/import", strings.NewReader(`{"url":"https://example.com/feed"}`))
	req.Header.Set("X-Actor", "Frank")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
	if gotURL != "https://example.com/feed" || gotActor != "Frank" {
		t.Errorf("import called with (%q, %q), want (https://example.com/feed, Frank)", gotURL, gotActor)
	}

	var body []map[string]any
	json.NewDecoder(w.Result().Body).Decode(&body)
	if len(body) != 2 {
		t.Errorf("imported = %d ideas, want 2", len(body))
	}
}

func TestIdeaHandler_ImportIdeas_InvalidURL_Returns422(t *testing.T) {
	importer := &mockIdeaImporter{
		importFn: func(ctx context.Context, rawURL, actor string) ([]*model.Idea, error) {
			return nil, model.NewInvalidImportURLError("プライベートアドレスへのアクセスは許可されていません")
		},
	}

	r := newIdeaRouter(&mockIdeaService{}, importer)
	req := httptest.NewRequest(http.MethodPost, "/api/ideas/import", strings.NewReader(`{"url":"http://169.254.169.254/"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestIdeaHandler_ImportIdeas_EmptyResultIsArray(t *testing.T) {
	r := newIdeaRouter(&mockIdeaService{}, &mockIdeaImporter{})
	req := httptest.NewRequest(http.MethodPost, "/api/ideas/import", strings.NewReader(`{"url":"https://example.com/empty"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want %q", got, "[]\n")
	}
}

func TestIdeaHandler_DeleteIdea(t *testing.T) {
	var deleted string
	service := &mockIdeaService{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	r := newIdeaRouter(service, &mockIdeaImporter{})
	req := httptest.NewRequest(http.MethodDelete, "/api/ideas/i-3", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if deleted != "i-3" {
		t.Errorf("deleted = %q, want %q", deleted, "i-3")
	}
}
