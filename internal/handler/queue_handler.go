package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/planboard/internal/syncqueue"
)

// QueueServiceInterface は同期キューハンドラーが必要とするサービスインターフェース。
type QueueServiceInterface interface {
	Items() []*syncqueue.Item
	RetryItem(ctx context.Context, id string) (bool, error)
	RetryAll(ctx context.Context) int
	Dismiss(id string) error
}

// NoticeCenterInterface は通知バナーの参照・破棄インターフェース。
type NoticeCenterInterface interface {
	Notices() []*syncqueue.Notice
	Dismiss(id string)
}

// QueueHandler は同期キューと通知バナーのHTTPハンドラー。
type QueueHandler struct {
	queue   QueueServiceInterface
	notices NoticeCenterInterface
}

// NewQueueHandler はQueueHandlerを生成する。
func NewQueueHandler(queue QueueServiceInterface, notices NoticeCenterInterface) *QueueHandler {
	return &QueueHandler{queue: queue, notices: notices}
}

// retryResponse はリトライ結果のレスポンス。
type retryResponse struct {
	Succeeded bool `json:"succeeded"`
}

// retryAllResponse は一括リトライ結果のレスポンス。
type retryAllResponse struct {
	Succeeded int `json:"succeeded"`
	Remaining int `json:"remaining"`
}

// ListItems は同期キューの滞留項目一覧を取得する。
// GET /api/queue
func (h *QueueHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.queue.Items()
	if items == nil {
		items = []*syncqueue.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// RetryItem は指定された項目を再実行する。
// POST /api/queue/:id/retry
func (h *QueueHandler) RetryItem(w http.ResponseWriter, r *http.Request) {
	ok, err := h.queue.RetryItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retryResponse{Succeeded: ok})
}

// RetryAll はキュー内の全項目を再実行する。
// POST /api/queue/retry-all
func (h *QueueHandler) RetryAll(w http.ResponseWriter, r *http.Request) {
	succeeded := h.queue.RetryAll(r.Context())
	writeJSON(w, http.StatusOK, retryAllResponse{
		Succeeded: succeeded,
		Remaining: len(h.queue.Items()),
	})
}

// DismissItem は指定された項目をリトライせずに破棄する。
// DELETE /api/queue/:id
func (h *QueueHandler) DismissItem(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Dismiss(chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotices は表示中の通知バナー一覧を取得する。
// GET /api/notices
func (h *QueueHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	notices := h.notices.Notices()
	if notices == nil {
		notices = []*syncqueue.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}

// DismissNotice は通知バナーをTTL満了前に手動で破棄する。
// DELETE /api/notices/:id
func (h *QueueHandler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	h.notices.Dismiss(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
