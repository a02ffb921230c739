package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/planboard/internal/middleware"
	"github.com/hitoshi/planboard/internal/model"
)

// mockNotificationService はNotificationServiceInterfaceのモック実装。
type mockNotificationService struct {
	listFn        func(ctx context.Context) []*model.Notification
	listForUserFn func(ctx context.Context, user string) []*model.Notification
	markedRead    []string
	markedAllFor  []string
}

func (m *mockNotificationService) List(ctx context.Context) []*model.Notification {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil
}

func (m *mockNotificationService) ListForUser(ctx context.Context, user string) []*model.Notification {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, user)
	}
	return nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, id string) {
	m.markedRead = append(m.markedRead, id)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, user string) {
	m.markedAllFor = append(m.markedAllFor, user)
}

func newNotificationRouter(service NotificationServiceInterface) http.Handler {
	h := NewNotificationHandler(service)
	r := chi.NewRouter()
	r.Use(middleware.NewActorMiddleware())
	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Post("/read-all", h.MarkAllRead)
		r.Post("/{id}/read", h.MarkRead)
	})
	return r
}

func TestNotificationHandler_ListNotifications_UsesActor(t *testing.T) {
	var gotUser string
	service := &mockNotificationService{
		listForUserFn: func(ctx context.Context, user string) []*model.Notification {
			gotUser = user
			return []*model.Notification{{ID: "n-1", User: user, Message: "承認されました"}}
		},
	}

	r := newNotificationRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("X-Actor", "Grace")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if gotUser != "Grace" {
		t.Errorf("user = %q, want %q", gotUser, "Grace")
	}

	var body []map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 1 || body[0]["id"] != "n-1" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestNotificationHandler_ListNotifications_AllParam(t *testing.T) {
	listCalled := false
	service := &mockNotificationService{
		listFn: func(ctx context.Context) []*model.Notification {
			listCalled = true
			return []*model.Notification{{ID: "n-1"}, {ID: "n-2"}}
		},
		listForUserFn: func(ctx context.Context, user string) []*model.Notification {
			t.Error("ListForUser should not be called with ?all=true")
			return nil
		},
	}

	r := newNotificationRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/api/notifications?all=true", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if !listCalled {
		t.Error("List was not called")
	}
}

func TestNotificationHandler_ListNotifications_EmptyIsArray(t *testing.T) {
	r := newNotificationRouter(&mockNotificationService{})
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want %q", got, "[]\n")
	}
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	service := &mockNotificationService{}
	r := newNotificationRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/n-5/read", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if len(service.markedRead) != 1 || service.markedRead[0] != "n-5" {
		t.Errorf("markedRead = %v, want [n-5]", service.markedRead)
	}
}

func TestNotificationHandler_MarkAllRead_UsesActor(t *testing.T) {
	service := &mockNotificationService{}
	r := newNotificationRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/read-all", nil)
	req.Header.Set("X-Actor", "Heidi")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if len(service.markedAllFor) != 1 || service.markedAllFor[0] != "Heidi" {
		t.Errorf("markedAllFor = %v, want [Heidi]", service.markedAllFor)
	}
}
