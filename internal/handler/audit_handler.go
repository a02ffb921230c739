package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/planboard/internal/model"
)

// AuditRecorderInterface は監査ログハンドラーが必要とするインターフェース。
type AuditRecorderInterface interface {
	List(ctx context.Context) []*model.AuditEvent
}

// AuditHandler は監査ログのHTTPハンドラー。
type AuditHandler struct {
	recorder AuditRecorderInterface
}

// NewAuditHandler はAuditHandlerを生成する。
func NewAuditHandler(recorder AuditRecorderInterface) *AuditHandler {
	return &AuditHandler{recorder: recorder}
}

// ListEvents は監査イベント一覧を新しい順で取得する。
// GET /api/audit
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events := h.recorder.List(r.Context())
	if events == nil {
		events = []*model.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
