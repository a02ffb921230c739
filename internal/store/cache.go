package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/sanitize"
)

// trashRetention はソフト削除済みエントリーの保持期間。
// これを超過したエントリーは次回読み込み時にパージされる。
const trashRetention = 30 * 24 * time.Hour

// Cache はコレクション単位の型付きアクセサを提供する。
// 読み込み時は全要素がサニタイザーを通過するため、破損した永続データが
// メモリ上の不変条件を壊すことはない。破損値は黙って空コレクションに
// フォールバックし、エラーとして浮上させない。
type Cache struct {
	kv        KV
	sanitizer *sanitize.Sanitizer
	logger    *slog.Logger

	// now はテストで時刻を固定するために差し替え可能。
	now func() time.Time
}

// NewCache はCacheの新しいインスタンスを生成する。
func NewCache(kv KV, sanitizer *sanitize.Sanitizer, logger *slog.Logger) *Cache {
	return &Cache{
		kv:        kv,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// loadRaw はキーの値をJSON配列（要素は任意オブジェクト）として読み込む。
// 欠損・破損時はnilを返し、破損はログのみで握りつぶす。
func (c *Cache) loadRaw(ctx context.Context, key string) []map[string]any {
	data, err := c.kv.Load(ctx, key)
	if err != nil {
		c.logger.Warn("キャッシュの読み込みに失敗しました。空コレクションで続行します",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Warn("キャッシュ値の形式が不正です。空コレクションで続行します",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return raw
}

func (c *Cache) save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.kv.Save(ctx, key, data)
}

// LoadEntries はエントリーコレクションを読み込む。
// 各要素はサニタイザーを通過し、保持期間を超過したソフト削除済み
// エントリーはパージされる（パージが発生した場合は書き戻す）。
func (c *Cache) LoadEntries(ctx context.Context) []*model.Entry {
	raw := c.loadRaw(ctx, KeyEntries)
	var entries []*model.Entry
	purged := 0
	cutoff := c.now().Add(-trashRetention)

	for _, item := range raw {
		entry := c.sanitizer.Entry(item)
		if entry == nil || entry.ID == "" {
			continue
		}
		if entry.DeletedAt != "" {
			deletedAt, err := time.Parse(model.TimestampFormat, entry.DeletedAt)
			if err == nil && deletedAt.Before(cutoff) {
				purged++
				continue
			}
		}
		entries = append(entries, entry)
	}

	if purged > 0 {
		c.logger.Info("保持期間超過のソフト削除済みエントリーをパージしました",
			slog.Int("purged", purged),
		)
		if err := c.SaveEntries(ctx, entries); err != nil {
			c.logger.Warn("パージ後の書き戻しに失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}
	return entries
}

// SaveEntries はエントリーコレクション全体を上書き保存する。
func (c *Cache) SaveEntries(ctx context.Context, entries []*model.Entry) error {
	if entries == nil {
		entries = []*model.Entry{}
	}
	return c.save(ctx, KeyEntries, entries)
}

// LoadIdeas はアイデアコレクションを読み込む。
func (c *Cache) LoadIdeas(ctx context.Context) []*model.Idea {
	raw := c.loadRaw(ctx, KeyIdeas)
	var ideas []*model.Idea
	for _, item := range raw {
		idea := c.sanitizer.Idea(item)
		if idea == nil || idea.ID == "" {
			continue
		}
		ideas = append(ideas, idea)
	}
	return ideas
}

// SaveIdeas はアイデアコレクション全体を上書き保存する。
func (c *Cache) SaveIdeas(ctx context.Context, ideas []*model.Idea) error {
	if ideas == nil {
		ideas = []*model.Idea{}
	}
	return c.save(ctx, KeyIdeas, ideas)
}

// LoadNotifications は通知コレクションを読み込む。
func (c *Cache) LoadNotifications(ctx context.Context) []*model.Notification {
	raw := c.loadRaw(ctx, KeyNotifications)
	var notifications []*model.Notification
	for _, item := range raw {
		n := c.sanitizer.Notification(item)
		if n == nil || n.ID == "" {
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications
}

// SaveNotifications は通知コレクション全体を上書き保存する。
func (c *Cache) SaveNotifications(ctx context.Context, notifications []*model.Notification) error {
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	return c.save(ctx, KeyNotifications, notifications)
}

// LoadAudit は監査イベントコレクションを読み込む。
// 監査レコードは表示専用のため、型変換のみで個別サニタイズは行わない。
func (c *Cache) LoadAudit(ctx context.Context) []*model.AuditEvent {
	data, err := c.kv.Load(ctx, KeyAudit)
	if err != nil || len(data) == 0 {
		return nil
	}
	var events []*model.AuditEvent
	if err := json.Unmarshal(data, &events); err != nil {
		c.logger.Warn("監査キャッシュの形式が不正です。空コレクションで続行します",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return events
}

// SaveAudit は監査イベントコレクション全体を上書き保存する。
func (c *Cache) SaveAudit(ctx context.Context, events []*model.AuditEvent) error {
	if events == nil {
		events = []*model.AuditEvent{}
	}
	return c.save(ctx, KeyAudit, events)
}

// LoadDraft は自動保存された下書きエントリーを読み込む。未保存時はnil。
func (c *Cache) LoadDraft(ctx context.Context) *model.Entry {
	data, err := c.kv.Load(ctx, KeyDraftEntry)
	if err != nil || len(data) == 0 {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	return c.sanitizer.Entry(raw)
}

// SaveDraft は下書きエントリーを保存する。
func (c *Cache) SaveDraft(ctx context.Context, draft *model.Entry) error {
	return c.save(ctx, KeyDraftEntry, draft)
}

// ClearDraft は下書きエントリーを破棄する。
func (c *Cache) ClearDraft(ctx context.Context) error {
	return c.kv.Delete(ctx, KeyDraftEntry)
}

// LoadInfluencers はメンション解決などに使う既知の名前のディレクトリを読み込む。
func (c *Cache) LoadInfluencers(ctx context.Context) []string {
	data, err := c.kv.Load(ctx, KeyInfluencers)
	if err != nil || len(data) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil
	}
	var out []string
	for _, name := range names {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// SaveInfluencers は既知の名前のディレクトリを上書き保存する。
func (c *Cache) SaveInfluencers(ctx context.Context, names []string) error {
	if names == nil {
		names = []string{}
	}
	return c.save(ctx, KeyInfluencers, names)
}
