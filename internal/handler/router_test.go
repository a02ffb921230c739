package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/planboard/internal/middleware"
	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/sanitize"
	"github.com/hitoshi/planboard/internal/security"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin:   "http://localhost:3000",
		RateLimiter:         limiter,
		EntryService:        &mockEntryService{},
		QueueService:        &mockQueueService{},
		NoticeCenter:        &mockNoticeCenter{},
		NotificationService: &mockNotificationService{},
		IdeaService:         &mockIdeaService{},
		IdeaImporter:        &mockIdeaImporter{},
		DraftStore:          &mockDraftStore{},
		AuditRecorder:       &mockAuditRecorder{},
		Sanitizer:           sanitize.NewSanitizer(security.NewTextSanitizer()),
		Gatherer:            prometheus.NewRegistry(),
	})
}

// mockAuditRecorder はAuditRecorderInterfaceのモック実装。
type mockAuditRecorder struct {
	events []*model.AuditEvent
}

func (m *mockAuditRecorder) List(ctx context.Context) []*model.AuditEvent { return m.events }

func TestRouter_HealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_SecurityHeadersOnAPIRoutes(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestRouter_APIRoutesAreWired(t *testing.T) {
	r := newTestRouter(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/entries"},
		{http.MethodGet, "/api/queue"},
		{http.MethodGet, "/api/notices"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodGet, "/api/ideas"},
		{http.MethodGet, "/api/audit"},
	}

	for _, route := range routes {
		req := httptest.NewRequest(route.method, route.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("%s %s: status = %d, want %d",
				route.method, route.path, w.Result().StatusCode, http.StatusOK)
		}
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/entries", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}
}
