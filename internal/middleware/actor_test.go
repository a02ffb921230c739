package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestActorMiddleware_ReadsHeader(t *testing.T) {
	mw := NewActorMiddleware()

	var captured string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("X-Actor", "Jane Doe")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if captured != "Jane Doe" {
		t.Errorf("actor = %q, want %q", captured, "Jane Doe")
	}
}

func TestActorMiddleware_MissingHeaderFallsBackToAnonymous(t *testing.T) {
	mw := NewActorMiddleware()

	var captured string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if captured != "anonymous" {
		t.Errorf("actor = %q, want %q", captured, "anonymous")
	}
}

func TestActorFromContext_WithoutMiddleware(t *testing.T) {
	// ミドルウェアを通らないコンテキストでもanonymousを返す
	if got := ActorFromContext(context.Background()); got != "anonymous" {
		t.Errorf("actor = %q, want %q", got, "anonymous")
	}
}

func TestContextWithActor_RoundTrip(t *testing.T) {
	ctx := ContextWithActor(context.Background(), "dan")
	if got := ActorFromContext(ctx); got != "dan" {
		t.Errorf("actor = %q, want %q", got, "dan")
	}
}
