package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/planboard/internal/middleware"
	"github.com/hitoshi/planboard/internal/model"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	List(ctx context.Context) []*model.Notification
	ListForUser(ctx context.Context, user string) []*model.Notification
	MarkRead(ctx context.Context, id string)
	MarkAllRead(ctx context.Context, user string)
}

// NotificationHandler はアプリ内通知のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ListNotifications は通知一覧を新しい順で取得する。
// GET /api/notifications（操作者宛）
// GET /api/notifications?all=true（全件）
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	var items []*model.Notification
	if r.URL.Query().Get("all") == "true" {
		items = h.service.List(r.Context())
	} else {
		actor := middleware.ActorFromContext(r.Context())
		items = h.service.ListForUser(r.Context(), actor)
	}
	if items == nil {
		items = []*model.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

// MarkRead は通知を既読にする。冪等で、既読の通知に対しては何もしない。
// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.service.MarkRead(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead は操作者宛の全通知を既読にする。
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	h.service.MarkAllRead(r.Context(), actor)
	w.WriteHeader(http.StatusNoContent)
}
