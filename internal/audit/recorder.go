// Package audit は監査イベントの記録を提供する。
//
// すべての状態変更操作はドメインイベントとして監査リングバッファへ
// 追記される。バッファはローカルへ永続化され、リモートが到達可能なら
// ベストエフォートで転送される。転送失敗は黙って無視され、
// 元の操作の成否には一切影響しない。
package audit

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/planboard/internal/event"
	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/store"
)

// MaxEvents はリングバッファが保持する監査イベント数の上限。
const MaxEvents = 500

// Forwarder は監査イベントのリモート転送先。
type Forwarder interface {
	IsReachable() bool
	AppendAudit(ctx context.Context, ev *model.AuditEvent) error
}

// Recorder は監査イベントの記録者。監査コレクションの唯一の書き込み手。
type Recorder struct {
	mu        sync.Mutex
	cache     *store.Cache
	forwarder Forwarder
	logger    *slog.Logger
	now       func() time.Time
}

// NewRecorder はRecorderの新しいインスタンスを生成する。
func NewRecorder(cache *store.Cache, forwarder Forwarder, logger *slog.Logger) *Recorder {
	return &Recorder{
		cache:     cache,
		forwarder: forwarder,
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe はイベントバスへ購読者として登録する。起動時に一度だけ呼ぶ。
func (r *Recorder) Subscribe(bus *event.Bus) {
	bus.Subscribe(r.HandleEvent)
}

// HandleEvent はドメインイベントを監査レコードへ変換する購読者。
func (r *Recorder) HandleEvent(ctx context.Context, ev event.Event) {
	record := &model.AuditEvent{
		ID:     uuid.NewString(),
		TS:     model.Now(r.now()),
		Action: ev.Name(),
	}

	switch v := ev.(type) {
	case event.EntryCreated:
		record.User = v.Actor
		record.EntryID = v.Entry.ID
	case event.EntryUpdated:
		record.User = v.Actor
		record.EntryID = v.After.ID
		record.Meta = map[string]string{
			"fields": strings.Join(v.ChangedFields, ","),
		}
	case event.EntryApproved:
		record.User = v.Actor
		record.EntryID = v.Entry.ID
	case event.EntryUnapproved:
		record.User = v.Actor
		record.EntryID = v.Entry.ID
	case event.EntryPublishDispatched:
		record.User = v.Actor
		record.EntryID = v.Entry.ID
		record.Meta = map[string]string{
			"succeeded": strconv.FormatBool(v.Succeeded),
		}
		if v.Error != "" {
			record.Meta["error"] = v.Error
		}
	case event.EntryCloned:
		record.User = v.Actor
		record.EntryID = v.Clone.ID
		record.Meta = map[string]string{"variantOfId": v.Original.ID}
	case event.EntrySoftDeleted:
		record.User = v.Actor
		record.EntryID = v.Entry.ID
	case event.EntryRestored:
		record.User = v.Actor
		record.EntryID = v.Entry.ID
	case event.EntryHardDeleted:
		record.User = v.Actor
		record.EntryID = v.EntryID
	case event.EntryDatesShifted:
		record.User = v.Actor
		record.Meta = map[string]string{
			"days":    strconv.Itoa(v.Days),
			"entries": strings.Join(v.EntryIDs, ","),
		}
	case event.CommentAdded:
		record.User = v.Actor
		record.EntryID = v.Entry.ID
		record.Meta = map[string]string{"commentId": v.Comment.ID}
	case event.IdeaConverted:
		record.User = v.Actor
		record.EntryID = v.Entry.ID
		record.Meta = map[string]string{"ideaId": v.Idea.ID}
	default:
		return
	}

	r.Append(ctx, record)
}

// Append は監査イベントをリングバッファへ追記し、上限超過分の最古の
// イベントを切り捨てる。リモートが到達可能ならベストエフォートで転送する。
func (r *Recorder) Append(ctx context.Context, record *model.AuditEvent) {
	r.mu.Lock()
	events := r.cache.LoadAudit(ctx)
	events = append([]*model.AuditEvent{record}, events...)
	if len(events) > MaxEvents {
		events = events[:MaxEvents]
	}
	if err := r.cache.SaveAudit(ctx, events); err != nil {
		r.logger.Warn("監査イベントの保存に失敗しました",
			slog.String("error", err.Error()))
	}
	r.mu.Unlock()

	if r.forwarder.IsReachable() {
		if err := r.forwarder.AppendAudit(ctx, record); err != nil {
			r.logger.Debug("監査イベントの転送に失敗しました",
				slog.String("error", err.Error()))
		}
	}
}

// List は記録済みの監査イベントを新しい順で返す。
func (r *Recorder) List(ctx context.Context) []*model.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.LoadAudit(ctx)
}
