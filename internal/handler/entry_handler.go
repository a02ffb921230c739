package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/planboard/internal/entry"
	"github.com/hitoshi/planboard/internal/middleware"
	"github.com/hitoshi/planboard/internal/model"
)

// EntryServiceInterface はエントリーハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	List() []*model.Entry
	Active() []*model.Entry
	Trashed() []*model.Entry
	Get(id string) (*model.Entry, error)
	Add(ctx context.Context, raw any, actor string) (*model.Entry, error)
	Upsert(ctx context.Context, id string, patch entry.Patch, actor string) (*model.Entry, error)
	ToggleApprove(ctx context.Context, id, actor string) (*model.Entry, error)
	AddComment(ctx context.Context, id, author, body string) (*model.Comment, error)
	Publish(ctx context.Context, id, actor string) (*model.Entry, error)
	PostAgain(ctx context.Context, id, actor string) (*model.Entry, error)
	SoftDelete(ctx context.Context, id, actor string) error
	Restore(ctx context.Context, id, actor string) error
	HardDelete(ctx context.Context, id string, confirmed bool, actor string) error
	BulkShiftDates(ctx context.Context, ids []string, days int, actor string) ([]*model.Entry, error)
	Refresh(ctx context.Context)
}

// EntryHandler はエントリー管理のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

// --- リクエスト型 ---

// entryPatchRequest はエントリー部分更新リクエストのボディ。
// nilのフィールドは「変更なし」として扱う。
type entryPatchRequest struct {
	Date             *string                      `json:"date,omitempty"`
	ApprovalDeadline *string                      `json:"approvalDeadline,omitempty"`
	Caption          *string                      `json:"caption,omitempty"`
	PlatformCaptions map[string]string            `json:"platformCaptions,omitempty"`
	AssetType        *model.AssetType             `json:"assetType,omitempty"`
	Script           *string                      `json:"script,omitempty"`
	DesignCopy       *string                      `json:"designCopy,omitempty"`
	CarouselSlides   []string                     `json:"carouselSlides,omitempty"`
	Platforms        []string                     `json:"platforms,omitempty"`
	PreviewURL       *string                      `json:"previewUrl,omitempty"`
	FirstComment     *string                      `json:"firstComment,omitempty"`
	URL              *string                      `json:"url,omitempty"`
	WorkflowStatus   *model.WorkflowStatus        `json:"workflowStatus,omitempty"`
	Approvers        []string                     `json:"approvers,omitempty"`
	Checklist        model.Checklist              `json:"checklist,omitempty"`
	Analytics        map[string]map[string]string `json:"analytics,omitempty"`
	Evergreen        *bool                        `json:"evergreen,omitempty"`
}

func (req entryPatchRequest) toPatch() entry.Patch {
	return entry.Patch{
		Date:             req.Date,
		ApprovalDeadline: req.ApprovalDeadline,
		Caption:          req.Caption,
		PlatformCaptions: req.PlatformCaptions,
		AssetType:        req.AssetType,
		Script:           req.Script,
		DesignCopy:       req.DesignCopy,
		CarouselSlides:   req.CarouselSlides,
		Platforms:        req.Platforms,
		PreviewURL:       req.PreviewURL,
		FirstComment:     req.FirstComment,
		URL:              req.URL,
		WorkflowStatus:   req.WorkflowStatus,
		Approvers:        req.Approvers,
		Checklist:        req.Checklist,
		Analytics:        req.Analytics,
		Evergreen:        req.Evergreen,
	}
}

// commentRequest はコメント追加リクエストのボディ。
type commentRequest struct {
	Body string `json:"body"`
}

// bulkShiftRequest は一括日付シフトリクエストのボディ。
type bulkShiftRequest struct {
	IDs  []string `json:"ids"`
	Days int      `json:"days"`
}

// --- ハンドラー ---

// ListEntries はエントリー一覧を取得する。
// GET /api/entries?view=active|trashed|all
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	var entries []*model.Entry
	switch r.URL.Query().Get("view") {
	case "trashed":
		entries = h.service.Trashed()
	case "all":
		entries = h.service.List()
	default:
		entries = h.service.Active()
	}
	if entries == nil {
		entries = []*model.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetEntry はエントリー詳細を取得する。
// GET /api/entries/:id
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEntry は新しいエントリーを作成する。
// POST /api/entries
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeInvalidBody(w)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	e, err := h.service.Add(r.Context(), raw, actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEntry はエントリーを部分更新する。
// PATCH /api/entries/:id
func (h *EntryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	e, err := h.service.Upsert(r.Context(), chi.URLParam(r, "id"), req.toPatch(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ToggleApprove はエントリーの承認状態を切り替える。
// POST /api/entries/:id/approve
func (h *EntryHandler) ToggleApprove(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	e, err := h.service.ToggleApprove(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// AddComment はエントリーにコメントを追加する。
// POST /api/entries/:id/comments
func (h *EntryHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	comment, err := h.service.AddComment(r.Context(), chi.URLParam(r, "id"), actor, req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// Publish はエントリーの投稿を実行する。
// POST /api/entries/:id/publish
func (h *EntryHandler) Publish(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	e, err := h.service.Publish(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// PostAgain は投稿済みエントリーを下書きとして複製する。
// POST /api/entries/:id/post-again
func (h *EntryHandler) PostAgain(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	clone, err := h.service.PostAgain(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clone)
}

// DeleteEntry はエントリーを削除する。
// DELETE /api/entries/:id（ソフト削除）
// DELETE /api/entries/:id?hard=true&confirm=true（完全削除）
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor := middleware.ActorFromContext(r.Context())

	if r.URL.Query().Get("hard") == "true" {
		confirmed := r.URL.Query().Get("confirm") == "true"
		if err := h.service.HardDelete(r.Context(), id, confirmed, actor); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.service.SoftDelete(r.Context(), id, actor); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreEntry はソフト削除されたエントリーを復元する。
// POST /api/entries/:id/restore
func (h *EntryHandler) RestoreEntry(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if err := h.service.Restore(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkShiftDates は複数エントリーの日付を一括でシフトする。
// POST /api/entries/bulk-shift
func (h *EntryHandler) BulkShiftDates(w http.ResponseWriter, r *http.Request) {
	var req bulkShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	entries, err := h.service.BulkShiftDates(r.Context(), req.IDs, req.Days, actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Refresh はサーバーからエントリー一覧を再取得して突き合わせる。
// POST /api/entries/refresh
func (h *EntryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.service.Refresh(r.Context())
	entries := h.service.Active()
	if entries == nil {
		entries = []*model.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
