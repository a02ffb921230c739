package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/planboard/internal/middleware"
	"github.com/hitoshi/planboard/internal/model"
)

// IdeaServiceInterface はアイデアハンドラーが必要とするサービスインターフェース。
type IdeaServiceInterface interface {
	List() []*model.Idea
	Get(id string) (*model.Idea, error)
	Add(ctx context.Context, raw any, actor string) (*model.Idea, error)
	Update(ctx context.Context, id string, raw any) (*model.Idea, error)
	Delete(ctx context.Context, id string) error
	ConvertToEntry(ctx context.Context, id, actor string) (*model.Entry, error)
}

// IdeaImporterInterface は外部URLからのアイデア取り込みインターフェース。
type IdeaImporterInterface interface {
	ImportFromURL(ctx context.Context, rawURL, actor string) ([]*model.Idea, error)
}

// IdeaHandler はアイデア管理のHTTPハンドラー。
type IdeaHandler struct {
	service  IdeaServiceInterface
	importer IdeaImporterInterface
}

// NewIdeaHandler はIdeaHandlerを生成する。
func NewIdeaHandler(service IdeaServiceInterface, importer IdeaImporterInterface) *IdeaHandler {
	return &IdeaHandler{service: service, importer: importer}
}

// importRequest はアイデア取り込みリクエストのボディ。
type importRequest struct {
	URL string `json:"url"`
}

// ListIdeas はアイデア一覧を新しい順で取得する。
// GET /api/ideas
func (h *IdeaHandler) ListIdeas(w http.ResponseWriter, r *http.Request) {
	ideas := h.service.List()
	if ideas == nil {
		ideas = []*model.Idea{}
	}
	writeJSON(w, http.StatusOK, ideas)
}

// GetIdea はアイデア詳細を取得する。
// GET /api/ideas/:id
func (h *IdeaHandler) GetIdea(w http.ResponseWriter, r *http.Request) {
	idea, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idea)
}

// CreateIdea は新しいアイデアを作成する。
// POST /api/ideas
func (h *IdeaHandler) CreateIdea(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeInvalidBody(w)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	idea, err := h.service.Add(r.Context(), raw, actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idea)
}

// UpdateIdea はアイデアを部分更新する。
// PATCH /api/ideas/:id
func (h *IdeaHandler) UpdateIdea(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeInvalidBody(w)
		return
	}

	idea, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idea)
}

// DeleteIdea はアイデアを削除する。
// DELETE /api/ideas/:id
func (h *IdeaHandler) DeleteIdea(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConvertIdea はアイデアをエントリーへ変換する。
// POST /api/ideas/:id/convert
func (h *IdeaHandler) ConvertIdea(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	e, err := h.service.ConvertToEntry(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// ImportIdeas は外部URL（フィードまたはHTMLページ）からアイデアを取り込む。
// POST /api/ideas/import
func (h *IdeaHandler) ImportIdeas(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	ideas, err := h.importer.ImportFromURL(r.Context(), req.URL, actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if ideas == nil {
		ideas = []*model.Idea{}
	}
	writeJSON(w, http.StatusCreated, ideas)
}
