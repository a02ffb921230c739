// Package syncqueue はオフライン耐性のある同期キューを提供する。
// リモートAPIへの書き込みが失敗またはオフラインで実行できなかった場合、
// タスクをキューに退避し、後から再試行できるようにする。
package syncqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/planboard/internal/metrics"
	"github.com/hitoshi/planboard/internal/model"
)

// MaxItems はキューが保持する項目数の上限。超過時は最古の項目を追い出す。
const MaxItems = 25

// OfflineError はオフラインのため実行できなかったタスクに記録されるエラー文字列。
const OfflineError = "API offline"

// ReachabilityProbe はリモートAPIの到達可能性を返す。
type ReachabilityProbe interface {
	IsReachable() bool
}

// Action はキューに積まれる再実行可能な処理。
type Action func(ctx context.Context) error

// Item は失敗した同期タスクのキュー項目。
type Item struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	EntryID     string    `json:"entryId,omitempty"`
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"createdAt"`
	LastTriedAt time.Time `json:"lastTriedAt"`

	requiresAPI bool
	action      Action
}

type taskConfig struct {
	requiresAPI bool
	entryID     string
}

// TaskOption はRunTaskの挙動を調整するオプション。
type TaskOption func(*taskConfig)

// WithEntryID はタスクを特定のエントリに紐付ける。
// 紐付いたエントリは再同期ガードの対象になる。
func WithEntryID(id string) TaskOption {
	return func(c *taskConfig) { c.entryID = id }
}

// WithoutAPI はAPI到達可能性の事前チェックを無効にする。
// ベストエフォート配信など、失敗してもキュー退避だけで良い処理に使う。
func WithoutAPI() TaskOption {
	return func(c *taskConfig) { c.requiresAPI = false }
}

// QueueService は同期キューのインターフェース。
type QueueService interface {
	RunTask(ctx context.Context, label string, action Action, opts ...TaskOption) bool
	RetryItem(ctx context.Context, id string) (bool, error)
	RetryAll(ctx context.Context) int
	Dismiss(id string) error
	Items() []*Item
	Len() int
	PendingEntryIDs() map[string]bool
}

// Queue は同期キューの実装。メモリ上に保持され、プロセス内で完結する。
type Queue struct {
	mu      sync.Mutex
	items   []*Item
	probe   ReachabilityProbe
	notices *NoticeCenter
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewQueue は新しいQueueを生成する。
func NewQueue(probe ReachabilityProbe, notices *NoticeCenter, collector metrics.MetricsCollector, logger *slog.Logger) *Queue {
	return &Queue{
		probe:   probe,
		notices: notices,
		metrics: collector,
		logger:  logger,
		now:     time.Now,
	}
}

// RunTask はタスクを即時実行し、成功すればtrueを返す。
// オフラインまたは実行失敗の場合はキューに退避してfalseを返す。
// 退避された項目のAttemptsは1から始まる。
func (q *Queue) RunTask(ctx context.Context, label string, action Action, opts ...TaskOption) bool {
	cfg := taskConfig{requiresAPI: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.requiresAPI && !q.probe.IsReachable() {
		q.enqueue(label, cfg, action, OfflineError)
		q.notices.Add("Offline: " + label + " queued for sync")
		return false
	}

	if err := action(ctx); err != nil {
		q.logger.Warn("同期タスクが失敗しました",
			slog.String("label", label),
			slog.String("error", err.Error()))
		q.enqueue(label, cfg, action, err.Error())
		q.notices.Add("Failed: " + label + " queued for retry")
		return false
	}

	q.metrics.RecordSyncSuccess(label)
	return true
}

func (q *Queue) enqueue(label string, cfg taskConfig, action Action, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.items = append(q.items, &Item{
		ID:          uuid.NewString(),
		Label:       label,
		EntryID:     cfg.entryID,
		Error:       errMsg,
		Attempts:    1,
		CreatedAt:   now,
		LastTriedAt: now,
		requiresAPI: cfg.requiresAPI,
		action:      action,
	})

	for len(q.items) > MaxItems {
		evicted := q.items[0]
		q.items = q.items[1:]
		q.metrics.RecordQueueEviction()
		q.logger.Warn("キュー上限超過のため最古の項目を破棄しました",
			slog.String("id", evicted.ID),
			slog.String("label", evicted.Label))
	}

	q.metrics.RecordSyncFailure(label)
	q.metrics.SetQueueDepth(len(q.items))
}

// RetryItem は指定された項目を再実行する。成功すれば項目を取り除きtrueを返す。
// 失敗した場合はAttemptsを増やしてfalseを返す。項目が存在しなければエラー。
func (q *Queue) RetryItem(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	item := q.find(id)
	q.mu.Unlock()
	if item == nil {
		return false, model.NewQueueItemNotFoundError(id)
	}

	if item.requiresAPI && !q.probe.IsReachable() {
		// 試行時刻とエラーは更新するが、Attemptsは実行していないので増やさない
		q.mu.Lock()
		item.LastTriedAt = q.now()
		item.Error = OfflineError
		q.mu.Unlock()
		q.notices.Add("Still offline: " + item.Label)
		return false, nil
	}

	q.metrics.RecordSyncRetry(item.Label)
	err := item.action(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		item.Attempts++
		item.Error = err.Error()
		item.LastTriedAt = q.now()
		q.logger.Warn("再試行が失敗しました",
			slog.String("id", item.ID),
			slog.String("label", item.Label),
			slog.Int("attempts", item.Attempts),
			slog.String("error", err.Error()))
		return false, nil
	}

	q.removeLocked(id)
	q.metrics.RecordSyncSuccess(item.Label)
	q.notices.Add("Synced: " + item.Label)
	return true, nil
}

// RetryAll はキュー内の全項目を並行して再実行し、成功した数を返す。
func (q *Queue) RetryAll(ctx context.Context) int {
	q.mu.Lock()
	ids := make([]string, len(q.items))
	for i, item := range q.items {
		ids[i] = item.ID
	}
	q.mu.Unlock()

	var wg sync.WaitGroup
	var succeeded int
	var mu sync.Mutex
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ok, err := q.RetryItem(ctx, id)
			if err == nil && ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return succeeded
}

// Dismiss は項目を再実行せずにキューから取り除く。
func (q *Queue) Dismiss(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.find(id) == nil {
		return model.NewQueueItemNotFoundError(id)
	}
	q.removeLocked(id)
	return nil
}

// Items はキュー内の項目のスナップショットを古い順で返す。
func (q *Queue) Items() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Item, len(q.items))
	for i, item := range q.items {
		copied := *item
		out[i] = &copied
	}
	return out
}

// Len はキュー内の項目数を返す。
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PendingEntryIDs はキュー項目に紐付いたエントリIDの集合を返す。
// 再同期時にこれらのエントリはリモート状態で上書きしない。
func (q *Queue) PendingEntryIDs() map[string]bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make(map[string]bool)
	for _, item := range q.items {
		if item.EntryID != "" {
			ids[item.EntryID] = true
		}
	}
	return ids
}

func (q *Queue) find(id string) *Item {
	for _, item := range q.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (q *Queue) removeLocked(id string) {
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.metrics.SetQueueDepth(len(q.items))
}
