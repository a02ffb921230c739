// Package notify は通知エンジンを提供する。
//
// ドメインイベントからユーザー宛ての通知レコードを組み立て、
// 決定的キーで重複排除して永続化する。併せてメール/Webhookによる
// サーバーサイド配信をベストエフォートで試みる。配信失敗は
// アプリ内通知に影響しない。
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/planboard/internal/event"
	"github.com/hitoshi/planboard/internal/metrics"
	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/security"
	"github.com/hitoshi/planboard/internal/store"
	"github.com/hitoshi/planboard/internal/syncqueue"
)

// approverRelevantFields は承認者への再通知に値する変更フィールドの集合。
// 内部的な帳簿フィールドの変更で通知スパムを起こさないためのフィルタ。
var approverRelevantFields = map[string]bool{
	"caption":          true,
	"platformCaptions": true,
	"date":             true,
	"approvalDeadline": true,
	"assetType":        true,
	"script":           true,
	"designCopy":       true,
	"carouselSlides":   true,
	"platforms":        true,
	"previewUrl":       true,
	"firstComment":     true,
	"url":              true,
	"checklist":        true,
	"analytics":        true,
}

// Deliverer はサーバーサイド配信（メール/Webhook）の依頼先。
type Deliverer interface {
	Notify(ctx context.Context, payload model.NotifyPayload) error
}

// Key は通知の重複排除キーを計算する純粋関数。
// 同一キーの通知は同一イベントとみなされ、2件目以降は挿入時に破棄される。
func Key(t model.NotificationType, entryID, user, commentID string) string {
	return strings.Join([]string{string(t), entryID, user, commentID}, "|")
}

// Engine は通知エンジンの実装。通知コレクションの唯一の書き込み手。
type Engine struct {
	mu        sync.Mutex
	cache     *store.Cache
	queue     syncqueue.QueueService
	deliverer Deliverer
	guard     security.SSRFGuardService
	limiter   *rate.Limiter
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time

	// webhookURL は設定済みの既定Teams Webhook。空なら未設定。
	webhookURL string
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(
	cache *store.Cache,
	queue syncqueue.QueueService,
	deliverer Deliverer,
	guard security.SSRFGuardService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	webhookURL string,
) *Engine {
	return &Engine{
		cache:      cache,
		queue:      queue,
		deliverer:  deliverer,
		guard:      guard,
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 3),
		metrics:    collector,
		logger:     logger,
		now:        time.Now,
		webhookURL: webhookURL,
	}
}

// Subscribe はイベントバスへ購読者として登録する。起動時に一度だけ呼ぶ。
func (e *Engine) Subscribe(bus *event.Bus) {
	bus.Subscribe(e.HandleEvent)
}

// HandleEvent はドメインイベントを通知へ変換する購読者。
func (e *Engine) HandleEvent(ctx context.Context, ev event.Event) {
	switch v := ev.(type) {
	case event.EntryCreated:
		e.handleCreated(ctx, v)
	case event.EntryUpdated:
		e.handleUpdated(ctx, v)
	case event.EntryApproved:
		e.handleApproved(ctx, v)
	case event.EntryUnapproved:
		e.handleUnapproved(ctx, v)
	case event.CommentAdded:
		e.handleComment(ctx, v)
	}
}

func (e *Engine) handleCreated(ctx context.Context, ev event.EntryCreated) {
	items := e.BuildApprovalNotifications(ev.Entry, ev.Entry.Approvers...)
	e.Add(ctx, items)

	if len(ev.Entry.Approvers) > 0 || e.webhookURL != "" {
		e.Deliver(ctx, model.NotifyPayload{
			Approvers:       ev.Entry.Approvers,
			Subject:         "Approval requested: " + ev.Entry.Describe(),
			Text:            ev.Actor + " requested your approval for \"" + ev.Entry.Describe() + "\"",
			TeamsWebhookURL: e.webhookURL,
		})
	}
}

func (e *Engine) handleUpdated(ctx context.Context, ev event.EntryUpdated) {
	var items []*model.Notification

	// 新たに追加された承認者のみに通知する。既存の承認者は
	// 無関係な編集のたびに再通知されない。
	items = append(items, e.BuildApprovalNotifications(ev.After, ev.AddedApprovers...)...)

	if e.isApproverRelevant(ev.ChangedFields) &&
		len(ev.After.Approvers) > 0 &&
		!ev.After.HasApprover(ev.Actor) {
		for _, approver := range ev.After.Approvers {
			items = append(items, &model.Notification{
				EntryID: ev.After.ID,
				User:    approver,
				Type:    model.NotificationApprovalUpdate,
				Message: "\"" + ev.After.Describe() + "\" was updated",
			})
		}
	}

	if e.Add(ctx, items) > 0 && len(ev.AddedApprovers) > 0 {
		e.Deliver(ctx, model.NotifyPayload{
			Approvers:       ev.AddedApprovers,
			Subject:         "Approval requested: " + ev.After.Describe(),
			Text:            ev.Actor + " requested your approval for \"" + ev.After.Describe() + "\"",
			TeamsWebhookURL: e.webhookURL,
		})
	}
}

func (e *Engine) handleApproved(ctx context.Context, ev event.EntryApproved) {
	var items []*model.Notification
	for _, approver := range ev.Entry.Approvers {
		if approver == ev.Actor {
			continue
		}
		items = append(items, &model.Notification{
			EntryID: ev.Entry.ID,
			User:    approver,
			Type:    model.NotificationApprovalUpdate,
			Message: "\"" + ev.Entry.Describe() + "\" was approved by " + ev.Actor,
		})
	}
	if ev.Entry.Author != "" && ev.Entry.Author != ev.Actor {
		items = append(items, &model.Notification{
			EntryID: ev.Entry.ID,
			User:    ev.Entry.Author,
			Type:    model.NotificationApprovalUpdate,
			Message: "\"" + ev.Entry.Describe() + "\" was approved by " + ev.Actor,
		})
	}
	e.Add(ctx, items)

	if ev.Entry.Author != "" && ev.Entry.Author != ev.Actor {
		e.Deliver(ctx, model.NotifyPayload{
			To:              []string{ev.Entry.Author},
			Subject:         "Approved: " + ev.Entry.Describe(),
			Text:            "\"" + ev.Entry.Describe() + "\" was approved by " + ev.Actor,
			TeamsWebhookURL: e.webhookURL,
		})
	}
}

func (e *Engine) handleUnapproved(ctx context.Context, ev event.EntryUnapproved) {
	var items []*model.Notification
	for _, approver := range ev.Entry.Approvers {
		if approver == ev.Actor {
			continue
		}
		items = append(items, &model.Notification{
			EntryID: ev.Entry.ID,
			User:    approver,
			Type:    model.NotificationApprovalUpdate,
			Message: "Approval was withdrawn for \"" + ev.Entry.Describe() + "\"",
		})
	}
	e.Add(ctx, items)
}

func (e *Engine) handleComment(ctx context.Context, ev event.CommentAdded) {
	directory := e.cache.LoadInfluencers(ctx)
	items := BuildCommentNotifications(ev.Entry, ev.Comment, directory)
	if e.Add(ctx, items) > 0 {
		recipients := make([]string, 0, len(items))
		for _, item := range items {
			recipients = append(recipients, item.User)
		}
		e.Deliver(ctx, model.NotifyPayload{
			To:              recipients,
			Subject:         "New comment on " + ev.Entry.Describe(),
			Text:            ev.Comment.Author + " commented on \"" + ev.Entry.Describe() + "\": " + ev.Comment.Body,
			TeamsWebhookURL: e.webhookURL,
		})
	}
}

// BuildApprovalNotifications は承認者宛ての通知を組み立てる。
// namesが空の場合は何も生成しない。
func (e *Engine) BuildApprovalNotifications(entry *model.Entry, names ...string) []*model.Notification {
	var items []*model.Notification
	for _, name := range names {
		if name == "" {
			continue
		}
		items = append(items, &model.Notification{
			EntryID: entry.ID,
			User:    name,
			Type:    model.NotificationApprovalAssigned,
			Message: "You were added as an approver for \"" + entry.Describe() + "\"",
		})
	}
	return items
}

// Add は通知を重複排除しつつ挿入し、実際に挿入された件数を返す。
// entryId/user/type/messageのいずれかを欠く項目と、既存キーと衝突する
// 項目は破棄される。挿入は新しい順（先頭）。
func (e *Engine) Add(ctx context.Context, items []*model.Notification) int {
	if len(items) == 0 {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing := e.cache.LoadNotifications(ctx)
	seen := make(map[string]bool, len(existing))
	for _, n := range existing {
		seen[n.Key] = true
	}

	inserted := 0
	for _, item := range items {
		if item == nil || item.EntryID == "" || item.User == "" || item.Type == "" || item.Message == "" {
			continue
		}
		key := Key(item.Type, item.EntryID, item.User, item.Meta["commentId"])
		if seen[key] {
			e.metrics.RecordNotificationDeduped(string(item.Type))
			continue
		}
		seen[key] = true

		item.ID = uuid.NewString()
		item.Key = key
		item.CreatedAt = model.Now(e.now())
		item.Read = false
		existing = append([]*model.Notification{item}, existing...)
		inserted++
		e.metrics.RecordNotificationCreated(string(item.Type))
	}

	if inserted > 0 {
		if err := e.cache.SaveNotifications(ctx, existing); err != nil {
			e.logger.Warn("通知の保存に失敗しました", slog.String("error", err.Error()))
		}
	}
	return inserted
}

// List は全通知を新しい順で返す。
func (e *Engine) List(ctx context.Context) []*model.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.LoadNotifications(ctx)
}

// ListForUser は指定ユーザー宛ての通知を新しい順で返す。
func (e *Engine) ListForUser(ctx context.Context, user string) []*model.Notification {
	var out []*model.Notification
	for _, n := range e.List(ctx) {
		if n.User == user {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead は通知を既読にする。false→trueの一方向のみで、
// 既読の通知や存在しないIDに対しては何もしない。
func (e *Engine) MarkRead(ctx context.Context, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	notifications := e.cache.LoadNotifications(ctx)
	changed := false
	for _, n := range notifications {
		if n.ID == id && !n.Read {
			n.Read = true
			changed = true
		}
	}
	if changed {
		if err := e.cache.SaveNotifications(ctx, notifications); err != nil {
			e.logger.Warn("通知の保存に失敗しました", slog.String("error", err.Error()))
		}
	}
}

// MarkAllRead は指定ユーザー宛ての未読通知をすべて既読にする。
func (e *Engine) MarkAllRead(ctx context.Context, user string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	notifications := e.cache.LoadNotifications(ctx)
	changed := false
	for _, n := range notifications {
		if n.User == user && !n.Read {
			n.Read = true
			changed = true
		}
	}
	if changed {
		if err := e.cache.SaveNotifications(ctx, notifications); err != nil {
			e.logger.Warn("通知の保存に失敗しました", slog.String("error", err.Error()))
		}
	}
}

// Deliver はサーバーサイド配信をバックグラウンドで試みる。
// 同期キュー経由（API到達可能性チェックなし）で実行され、失敗しても
// 呼び出し元へは伝播しない。Webhook URLは送信前にSSRF検査を通過する。
func (e *Engine) Deliver(ctx context.Context, payload model.NotifyPayload) {
	if payload.TeamsWebhookURL != "" {
		if err := e.guard.ValidateURL(payload.TeamsWebhookURL); err != nil {
			e.logger.Warn("Webhook URLがSSRF検査で拒否されました",
				slog.String("error", err.Error()))
			payload.TeamsWebhookURL = ""
		}
	}
	if len(payload.To) == 0 && len(payload.Approvers) == 0 && payload.TeamsWebhookURL == "" {
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		e.queue.RunTask(detached, "notify delivery", func(ctx context.Context) error {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
			start := e.now()
			err := e.deliverer.Notify(ctx, payload)
			e.metrics.RecordOutboundLatency(time.Since(start))
			e.metrics.RecordOutboundDelivery(err == nil)
			return err
		}, syncqueue.WithoutAPI())
	}()
}

func (e *Engine) isApproverRelevant(fields []string) bool {
	for _, f := range fields {
		if approverRelevantFields[f] {
			return true
		}
	}
	return false
}
