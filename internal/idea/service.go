// Package idea はアイデア（エントリー化前の軽量レコード）の管理を提供する。
package idea

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/planboard/internal/event"
	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/remote"
	"github.com/hitoshi/planboard/internal/sanitize"
	"github.com/hitoshi/planboard/internal/store"
	"github.com/hitoshi/planboard/internal/syncqueue"
)

// EntryCreator はアイデアからのエントリー作成先。エントリー状態機械が実装する。
type EntryCreator interface {
	Add(ctx context.Context, raw any, actor string) (*model.Entry, error)
}

// Service はアイデアの状態を所有し、すべての変更操作を提供する。
type Service struct {
	mu        sync.Mutex
	ideas     []*model.Idea // 新しい順
	cache     *store.Cache
	queue     syncqueue.QueueService
	remote    remote.Collaborator
	sanitizer *sanitize.Sanitizer
	entries   EntryCreator
	bus       *event.Bus
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	cache *store.Cache,
	queue syncqueue.QueueService,
	collab remote.Collaborator,
	sanitizer *sanitize.Sanitizer,
	entries EntryCreator,
	bus *event.Bus,
	logger *slog.Logger,
) *Service {
	return &Service{
		cache:     cache,
		queue:     queue,
		remote:    collab,
		sanitizer: sanitizer,
		entries:   entries,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Load はキャッシュからアイデアリストを読み込む。起動時に一度呼ぶ。
func (s *Service) Load(ctx context.Context) {
	ideas := s.cache.LoadIdeas(ctx)
	s.mu.Lock()
	s.ideas = ideas
	s.mu.Unlock()
}

// List は全アイデアを新しい順で返す。
func (s *Service) List() []*model.Idea {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Idea, len(s.ideas))
	for i, idea := range s.ideas {
		copied := *idea
		out[i] = &copied
	}
	return out
}

// Get はIDでアイデアを取得する。
func (s *Service) Get(id string) (*model.Idea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea := s.findLocked(id)
	if idea == nil {
		return nil, model.NewIdeaNotFoundError(id)
	}
	copied := *idea
	return &copied, nil
}

// Add はアイデアを新規作成する。
func (s *Service) Add(ctx context.Context, raw any, actor string) (*model.Idea, error) {
	idea := s.sanitizer.Idea(raw)
	if idea == nil {
		return nil, model.NewInvalidRequestError("アイデアの形式が不正です")
	}
	if idea.Title == "" {
		return nil, model.NewInvalidRequestError("タイトルは必須です")
	}

	idea.ID = s.newID()
	idea.CreatedAt = model.Now(s.now())
	if idea.CreatedBy == "" {
		idea.CreatedBy = actor
	}
	idea.ConvertedTo = ""

	s.mu.Lock()
	s.ideas = append([]*model.Idea{idea}, s.ideas...)
	s.saveLocked(ctx)
	s.mu.Unlock()

	snapshot := *idea
	s.queue.RunTask(context.WithoutCancel(ctx), "create idea \""+idea.Title+"\"", func(ctx context.Context) error {
		return s.remote.CreateIdea(ctx, &snapshot)
	})
	copied := *idea
	return &copied, nil
}

// Update はアイデアの部分更新を行う。patchはサニタイズ済みの値のみが
// 既存のアイデアへ反映される。
func (s *Service) Update(ctx context.Context, id string, raw any) (*model.Idea, error) {
	patch := s.sanitizer.Idea(raw)
	if patch == nil {
		return nil, model.NewInvalidRequestError("アイデアの形式が不正です")
	}

	s.mu.Lock()
	idea := s.findLocked(id)
	if idea == nil {
		s.mu.Unlock()
		return nil, model.NewIdeaNotFoundError(id)
	}

	payload := map[string]any{}
	if patch.Title != "" {
		idea.Title = patch.Title
		payload["title"] = patch.Title
	}
	if patch.Notes != "" {
		idea.Notes = patch.Notes
		payload["notes"] = patch.Notes
	}
	if patch.Type != "" {
		idea.Type = patch.Type
		payload["type"] = patch.Type
	}
	if patch.Links != nil {
		idea.Links = patch.Links
		payload["links"] = patch.Links
	}
	if patch.Attachments != nil {
		idea.Attachments = patch.Attachments
		payload["attachments"] = patch.Attachments
	}
	if patch.TargetDate != "" {
		idea.TargetDate = patch.TargetDate
		payload["targetDate"] = patch.TargetDate
	}
	if patch.TargetMonth != "" {
		idea.TargetMonth = patch.TargetMonth
		payload["targetMonth"] = patch.TargetMonth
	}
	copied := *idea
	s.saveLocked(ctx)
	s.mu.Unlock()

	if len(payload) > 0 {
		s.queue.RunTask(context.WithoutCancel(ctx), "update idea \""+copied.Title+"\"", func(ctx context.Context) error {
			return s.remote.UpdateIdea(ctx, id, payload)
		})
	}
	return &copied, nil
}

// Delete はアイデアを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idea := s.findLocked(id)
	if idea == nil {
		s.mu.Unlock()
		return model.NewIdeaNotFoundError(id)
	}
	label := "delete idea \"" + idea.Title + "\""
	s.removeLocked(id)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.queue.RunTask(context.WithoutCancel(ctx), label, func(ctx context.Context) error {
		return s.remote.DeleteIdea(ctx, id)
	})
	return nil
}

// ConvertToEntry はアイデアをエントリーへ変換する。フィールドの一部を
// コピーして新しいエントリーを作成し、アイデア側に変換先IDを刻む。
// 変換済みのアイデアは再変換できない。
func (s *Service) ConvertToEntry(ctx context.Context, id, actor string) (*model.Entry, error) {
	s.mu.Lock()
	idea := s.findLocked(id)
	if idea == nil {
		s.mu.Unlock()
		return nil, model.NewIdeaNotFoundError(id)
	}
	if idea.IsConverted() {
		s.mu.Unlock()
		return nil, model.NewIdeaAlreadyConvertedError(id)
	}
	source := *idea
	s.mu.Unlock()

	raw := map[string]any{
		"caption":      source.Title,
		"date":         source.TargetDate,
		"url":          firstLink(source.Links),
		"sourceIdeaId": source.ID,
	}
	if source.Notes != "" {
		raw["caption"] = source.Title + "\n\n" + source.Notes
	}
	created, err := s.entries.Add(ctx, raw, actor)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	idea = s.findLocked(id)
	if idea != nil {
		idea.ConvertedTo = created.ID
		s.saveLocked(ctx)
	}
	s.mu.Unlock()

	s.bus.Publish(ctx, event.IdeaConverted{Idea: &source, Entry: created, Actor: actor})

	payload := map[string]any{"convertedToEntryId": created.ID}
	s.queue.RunTask(context.WithoutCancel(ctx), "mark idea \""+source.Title+"\" converted", func(ctx context.Context) error {
		return s.remote.UpdateIdea(ctx, id, payload)
	})
	return created, nil
}

func firstLink(links []string) string {
	if len(links) == 0 {
		return ""
	}
	return links[0]
}

func (s *Service) findLocked(id string) *model.Idea {
	for _, idea := range s.ideas {
		if idea.ID == id {
			return idea
		}
	}
	return nil
}

func (s *Service) removeLocked(id string) {
	for i, idea := range s.ideas {
		if idea.ID == id {
			s.ideas = append(s.ideas[:i], s.ideas[i+1:]...)
			return
		}
	}
}

func (s *Service) saveLocked(ctx context.Context) {
	if err := s.cache.SaveIdeas(ctx, s.ideas); err != nil {
		s.logger.Warn("アイデアキャッシュの保存に失敗しました",
			slog.String("error", err.Error()))
	}
}
