package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/sanitize"
)

// DraftStoreInterface は下書きハンドラーが必要とするストアインターフェース。
type DraftStoreInterface interface {
	LoadDraft(ctx context.Context) *model.Entry
	SaveDraft(ctx context.Context, draft *model.Entry) error
	ClearDraft(ctx context.Context) error
}

// DraftHandler は編集中の下書きエントリーのHTTPハンドラー。
// 下書きは1件のみ保持し、上書き保存する。
type DraftHandler struct {
	store     DraftStoreInterface
	sanitizer *sanitize.Sanitizer
}

// NewDraftHandler はDraftHandlerを生成する。
func NewDraftHandler(store DraftStoreInterface, sanitizer *sanitize.Sanitizer) *DraftHandler {
	return &DraftHandler{store: store, sanitizer: sanitizer}
}

// GetDraft は保存中の下書きを取得する。下書きがない場合は404を返す。
// GET /api/draft
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft := h.store.LoadDraft(r.Context())
	if draft == nil {
		handleServiceError(w, model.NewEntryNotFoundError("draft"))
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// SaveDraft は下書きを上書き保存する。
// PUT /api/draft
func (h *DraftHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeInvalidBody(w)
		return
	}

	draft := h.sanitizer.Entry(raw)
	if draft == nil {
		handleServiceError(w, model.NewInvalidRequestError("下書きの内容が不正です"))
		return
	}

	if err := h.store.SaveDraft(r.Context(), draft); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// ClearDraft は下書きを破棄する。
// DELETE /api/draft
func (h *DraftHandler) ClearDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearDraft(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
