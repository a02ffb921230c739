// Package entry はコンテンツエントリーの状態機械を提供する。
//
// メモリ上のエントリーリストの唯一の所有者であり、すべての変更操作は
// このパッケージの公開メソッドを経由する。各操作はローカル状態を同期的に
// 更新し（楽観的更新）、サーバーへの永続化は同期キュー経由でベスト
// エフォートに行う。リモート失敗でローカル状態を巻き戻すことはなく、
// 「再同期が上書きするまでローカルが真実」という方針を取る。
package entry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/planboard/internal/event"
	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/notify"
	"github.com/hitoshi/planboard/internal/remote"
	"github.com/hitoshi/planboard/internal/sanitize"
	"github.com/hitoshi/planboard/internal/store"
	"github.com/hitoshi/planboard/internal/syncqueue"
)

// Service はエントリー状態機械の実装。
type Service struct {
	mu        sync.Mutex
	entries   []*model.Entry // 新しい順
	cache     *store.Cache
	queue     syncqueue.QueueService
	remote    remote.Collaborator
	sanitizer *sanitize.Sanitizer
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
	bus *event.Bus,
	logger *slog.Logger,
) *Service {
	return &Service{
		cache:     cache,
		queue:     queue,
		remote:    collab,
		sanitizer: sanitizer,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Load はキャッシュからエントリーリストを読み込む。起動時に一度呼ぶ。
func (s *Service) Load(ctx context.Context) {
	entries := s.cache.LoadEntries(ctx)
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// List は全エントリー（ソフト削除済みを含む）を新しい順で返す。
func (s *Service) List() []*model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Active はソフト削除されていないエントリーを新しい順で返す。
func (s *Service) Active() []*model.Entry {
	var out []*model.Entry
	for _, e := range s.List() {
		if !e.IsDeleted() {
			out = append(out, e)
		}
	}
	return out
}

// Trashed はソフト削除済みエントリーを削除が新しい順で返す。
func (s *Service) Trashed() []*model.Entry {
	var out []*model.Entry
	for _, e := range s.List() {
		if e.IsDeleted() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeletedAt > out[j].DeletedAt
	})
	return out
}

// Get はIDでエントリーを取得する。
func (s *Service) Get(id string) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findLocked(id)
	if e == nil {
		return nil, model.NewEntryNotFoundError(id)
	}
	return e.Clone(), nil
}

// Add はエントリーを新規作成する。入力はサニタイザーを通過し、
// 新しいIDとタイムスタンプが付与される。ローカルリストへ先頭挿入した後、
// サーバーへのcreateを同期キュー経由で発行する。
func (s *Service) Add(ctx context.Context, raw any, actor string) (*model.Entry, error) {
	e := s.sanitizer.Entry(raw)
	if e == nil {
		return nil, model.NewInvalidRequestError("エントリーの形式が不正です")
	}

	now := model.Now(s.now())
	e.ID = s.newID()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.DeletedAt = ""
	if e.Status == "" {
		e.Status = model.StatusPending
	}
	if e.Author == "" {
		e.Author = actor
	}
	e = s.sanitizer.Normalize(e)
	e.SyncState = model.SyncLocal

	s.mu.Lock()
	s.entries = append([]*model.Entry{e}, s.entries...)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, event.EntryCreated{Entry: e.Clone(), Actor: actor})
	s.syncCreate(ctx, e.ID, e.Describe())
	return e.Clone(), nil
}

// Upsert は型付きパッチをエントリーへ適用する。updatedAtを更新し、
// 再サニタイズした上で、同期状態に応じてcreateまたはupdateを発行する。
func (s *Service) Upsert(ctx context.Context, id string, patch Patch, actor string) (*model.Entry, error) {
	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return nil, model.NewEntryNotFoundError(id)
	}

	before := e.Clone()
	patch.Apply(e)
	e.UpdatedAt = model.Now(s.now())
	if patch.Analytics != nil {
		e.AnalyticsUpdatedAt = e.UpdatedAt
	}
	normalized := s.sanitizer.Normalize(e)
	*e = *normalized
	if before.SyncState == model.SyncLocal {
		e.SyncState = model.SyncLocal
	}
	after := e.Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, event.EntryUpdated{
		Before:         before,
		After:          after,
		Actor:          actor,
		ChangedFields:  patch.Fields(),
		AddedApprovers: addedApprovers(before.Approvers, after.Approvers),
	})

	// createが未確認のエントリーはupdateではなくcreateを再発行する
	if after.SyncState == model.SyncLocal {
		s.syncCreate(ctx, after.ID, after.Describe())
	} else {
		s.syncUpdate(ctx, after.ID, "update entry \""+after.Describe()+"\"", patch.remotePayload(after))
	}
	return after, nil
}

// ToggleApprove は承認ステータスをPending↔Approvedで切り替える。
// approvedAtとworkflowStatusは常にstatusと矛盾しない組へ同期される。
// サーバーへはステータス関連フィールドのみの部分更新を発行する。
func (s *Service) ToggleApprove(ctx context.Context, id, actor string) (*model.Entry, error) {
	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return nil, model.NewEntryNotFoundError(id)
	}

	now := model.Now(s.now())
	approved := e.Status != model.StatusApproved
	if approved {
		e.Status = model.StatusApproved
		e.WorkflowStatus = model.WorkflowApproved
		e.ApprovedAt = now
	} else {
		e.Status = model.StatusPending
		e.WorkflowStatus = model.WorkflowReadyForReview
		e.ApprovedAt = ""
	}
	e.UpdatedAt = now
	e.StatusDetail = model.StatusDetail(e.Status, e.Checklist)
	after := e.Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	if approved {
		s.bus.Publish(ctx, event.EntryApproved{Entry: after, Actor: actor})
	} else {
		s.bus.Publish(ctx, event.EntryUnapproved{Entry: after, Actor: actor})
	}

	payload := map[string]any{
		"status":         after.Status,
		"workflowStatus": after.WorkflowStatus,
		"approvedAt":     after.ApprovedAt,
		"statusDetail":   after.StatusDetail,
		"updatedAt":      after.UpdatedAt,
	}
	s.syncUpdate(ctx, after.ID, "update approval for \""+after.Describe()+"\"", payload)
	return after, nil
}

// AddComment はエントリーへコメントを追加する。本文中の@メンションは
// 既知の名前のディレクトリへ解決されて記録される。
func (s *Service) AddComment(ctx context.Context, id, author, body string) (*model.Comment, error) {
	if body == "" {
		return nil, model.NewInvalidRequestError("コメント本文が空です")
	}
	directory := s.cache.LoadInfluencers(ctx)

	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return nil, model.NewEntryNotFoundError(id)
	}

	var mentions []string
	for _, token := range notify.ParseMentions(body) {
		if name, ok := notify.ResolveMention(token, directory); ok {
			mentions = append(mentions, name)
		}
	}

	comment := model.Comment{
		ID:        s.newID(),
		Author:    author,
		Body:      body,
		CreatedAt: model.Now(s.now()),
		Mentions:  mentions,
	}
	e.Comments = append(e.Comments, comment)
	e.UpdatedAt = comment.CreatedAt
	after := e.Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, event.CommentAdded{Entry: after, Comment: comment, Actor: author})

	payload := map[string]any{
		"comments":  after.Comments,
		"updatedAt": after.UpdatedAt,
	}
	s.syncUpdate(ctx, after.ID, "add comment to \""+after.Describe()+"\"", payload)
	return &comment, nil
}

// canPublish は公開可能条件を判定する。承認済みで、プラットフォームが
// 1つ以上あり、公開処理中でも公開済みでもないこと。
func canPublish(e *model.Entry) bool {
	if e.WorkflowStatus != model.WorkflowApproved || len(e.Platforms) == 0 {
		return false
	}
	for _, ps := range e.PublishStatus {
		if ps.Status == model.PublishPublishing {
			return false
		}
	}
	return true
}

// Publish は公開リクエストを送出する。全プラットフォームをpublishingに
// マークした後、送出に成功すればpublished、失敗すればfailedへ遷移する。
// ここでの「成功」は送出レベルの成功であり、実際の公開確認ではない。
func (s *Service) Publish(ctx context.Context, id, actor string) (*model.Entry, error) {
	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return nil, model.NewEntryNotFoundError(id)
	}
	if !canPublish(e) {
		s.mu.Unlock()
		return nil, model.NewNotPublishableError(id)
	}

	now := model.Now(s.now())
	if e.PublishStatus == nil {
		e.PublishStatus = make(map[string]model.PlatformPublishStatus, len(e.Platforms))
	}
	for _, platform := range e.Platforms {
		e.PublishStatus[platform] = model.PlatformPublishStatus{
			Status:    model.PublishPublishing,
			Timestamp: now,
		}
	}
	snapshot := e.Clone()
	s.mu.Unlock()

	dispatchErr := s.remote.DispatchPublish(ctx, snapshot)

	s.mu.Lock()
	e = s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return nil, model.NewEntryNotFoundError(id)
	}
	now = model.Now(s.now())
	if dispatchErr == nil {
		for _, platform := range e.Platforms {
			e.PublishStatus[platform] = model.PlatformPublishStatus{
				Status:    model.PublishPublished,
				Timestamp: now,
			}
		}
		e.WorkflowStatus = model.WorkflowPublished
		e.PublishedAt = now
	} else {
		for _, platform := range e.Platforms {
			e.PublishStatus[platform] = model.PlatformPublishStatus{
				Status:    model.PublishFailed,
				Error:     dispatchErr.Error(),
				Timestamp: now,
			}
		}
	}
	e.UpdatedAt = now
	after := e.Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	ev := event.EntryPublishDispatched{Entry: after, Actor: actor, Succeeded: dispatchErr == nil}
	if dispatchErr != nil {
		ev.Error = dispatchErr.Error()
	}
	s.bus.Publish(ctx, ev)

	payload := map[string]any{
		"publishStatus":  after.PublishStatus,
		"workflowStatus": after.WorkflowStatus,
		"publishedAt":    after.PublishedAt,
		"updatedAt":      after.UpdatedAt,
	}
	s.syncUpdate(ctx, after.ID, "publish \""+after.Describe()+"\"", payload)
	return after, nil
}

// PostAgain は公開済みエントリーを新しいIDでクローンし、下書きへ戻す。
// クローンはvariantOfIdで元エントリーを指し、次回の永続化はcreateになる。
func (s *Service) PostAgain(ctx context.Context, id, actor string) (*model.Entry, error) {
	s.mu.Lock()
	original := s.findLocked(id)
	if original == nil {
		s.mu.Unlock()
		return nil, model.NewEntryNotFoundError(id)
	}
	if original.WorkflowStatus != model.WorkflowPublished {
		s.mu.Unlock()
		return nil, model.NewNotPublishedError(id)
	}

	now := model.Now(s.now())
	clone := original.Clone()
	clone.ID = s.newID()
	clone.Status = model.StatusPending
	clone.WorkflowStatus = model.WorkflowDraft
	clone.StatusDetail = model.StatusDetail(clone.Status, clone.Checklist)
	clone.PublishStatus = nil
	clone.PublishedAt = ""
	clone.ApprovedAt = ""
	clone.VariantOf = original.ID
	clone.CreatedAt = now
	clone.UpdatedAt = now
	clone.SyncState = model.SyncLocal

	s.entries = append([]*model.Entry{clone}, s.entries...)
	originalCopy := original.Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, event.EntryCloned{Original: originalCopy, Clone: clone.Clone(), Actor: actor})
	s.syncCreate(ctx, clone.ID, clone.Describe())
	return clone.Clone(), nil
}

// SoftDelete はエントリーにdeletedAtを付けてゴミ箱へ移す。
// エントリーはローカルリストに残り、保持期間経過後にパージされる。
func (s *Service) SoftDelete(ctx context.Context, id, actor string) error {
	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return model.NewEntryNotFoundError(id)
	}
	now := model.Now(s.now())
	e.DeletedAt = now
	e.UpdatedAt = now
	after := e.Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, event.EntrySoftDeleted{Entry: after, Actor: actor})
	payload := map[string]any{"deletedAt": after.DeletedAt, "updatedAt": after.UpdatedAt}
	s.syncUpdate(ctx, after.ID, "move \""+after.Describe()+"\" to trash", payload)
	return nil
}

// Restore はソフト削除済みエントリーをゴミ箱から戻す。
func (s *Service) Restore(ctx context.Context, id, actor string) error {
	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return model.NewEntryNotFoundError(id)
	}
	e.DeletedAt = ""
	e.UpdatedAt = model.Now(s.now())
	after := e.Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, event.EntryRestored{Entry: after, Actor: actor})
	payload := map[string]any{"deletedAt": "", "updatedAt": after.UpdatedAt}
	s.syncUpdate(ctx, after.ID, "restore \""+after.Describe()+"\"", payload)
	return nil
}

// HardDelete はエントリーを完全に削除する。明示的な確認が必須で、
// ローカルリストからは即座に取り除かれる。
func (s *Service) HardDelete(ctx context.Context, id string, confirmed bool, actor string) error {
	if !confirmed {
		return model.NewConfirmationRequiredError()
	}

	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return model.NewEntryNotFoundError(id)
	}
	label := "delete \"" + e.Describe() + "\""
	s.removeLocked(id)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.bus.Publish(ctx, event.EntryHardDeleted{EntryID: id, Actor: actor})
	s.queue.RunTask(context.WithoutCancel(ctx), label, func(ctx context.Context) error {
		return s.remote.DeleteEntry(ctx, id, true)
	}, syncqueue.WithEntryID(id))
	return nil
}

// ShiftDate は日付文字列へ暦日単位のオフセットを適用する。
// 年月日の明示的な算術で月境界・うるう年を正しく越える。
func ShiftDate(date string, days int) (string, error) {
	t, err := time.Parse(model.DateFormat, date)
	if err != nil {
		return "", model.NewInvalidDateError(date)
	}
	return t.AddDate(0, 0, days).Format(model.DateFormat), nil
}

// BulkShiftDates は指定された全エントリーの日付へ同じ暦日オフセットを
// 適用する。全件の新日付を先に計算してから一括で適用するため、いずれかの
// エントリーの日付が不正な場合は1件も変更せずエラーを返す。サーバーへの
// 更新は各エントリーのシフト前の日付から計算した絶対日付を送るため、
// 再試行でシフトが累積することはない。
func (s *Service) BulkShiftDates(ctx context.Context, ids []string, days int, actor string) ([]*model.Entry, error) {
	if days == 0 || len(ids) == 0 {
		return nil, nil
	}

	type shifted struct {
		id       string
		label    string
		newDate  string
		newStamp string
	}
	var applied []shifted

	s.mu.Lock()

	// 第1パス: 変更せずに全対象の新日付を計算する
	type planned struct {
		entry   *model.Entry
		newDate string
	}
	var plan []planned
	for _, id := range ids {
		e := s.findLocked(id)
		if e == nil {
			continue
		}
		newDate, err := ShiftDate(e.Date, days)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		plan = append(plan, planned{entry: e, newDate: newDate})
	}

	// 第2パス: 全件の検証が済んでから適用する
	var out []*model.Entry
	for _, p := range plan {
		e := p.entry
		e.Date = p.newDate
		e.UpdatedAt = model.Now(s.now())
		applied = append(applied, shifted{
			id:       e.ID,
			label:    "shift \"" + e.Describe() + "\"",
			newDate:  p.newDate,
			newStamp: e.UpdatedAt,
		})
		out = append(out, e.Clone())
	}
	s.saveLocked(ctx)
	s.mu.Unlock()

	if len(applied) == 0 {
		return nil, nil
	}

	shiftedIDs := make([]string, len(applied))
	for i, a := range applied {
		shiftedIDs[i] = a.id
	}
	s.bus.Publish(ctx, event.EntryDatesShifted{EntryIDs: shiftedIDs, Days: days, Actor: actor})

	for _, a := range applied {
		payload := map[string]any{"date": a.newDate, "updatedAt": a.newStamp}
		s.syncUpdate(ctx, a.id, a.label, payload)
	}
	return out, nil
}

// Refresh はサーバーのエントリー一覧でローカル状態を再同期する。
// ただし同期キューに未処理タスクが残っているエントリーと、サーバー側の
// 確認が取れていない（syncStateがsynced以外の）エントリーは上書き
// しない。未同期のローカル編集が無関係な同期の成功で消えることを防ぐ。
func (s *Service) Refresh(ctx context.Context) {
	raw, err := s.remote.ListEntries(ctx)
	if err != nil {
		s.logger.Warn("サーバーからのエントリー再取得に失敗しました",
			slog.String("error", err.Error()))
		return
	}

	server := make(map[string]*model.Entry, len(raw))
	var serverOrder []string
	for _, item := range raw {
		e := s.sanitizer.Entry(item)
		if e == nil || e.ID == "" {
			continue
		}
		e.SyncState = model.SyncSynced
		server[e.ID] = e
		serverOrder = append(serverOrder, e.ID)
	}

	pending := s.queue.PendingEntryIDs()

	s.mu.Lock()
	defer s.mu.Unlock()

	var next []*model.Entry
	kept := make(map[string]bool)
	for _, local := range s.entries {
		if pending[local.ID] || local.SyncState != model.SyncSynced {
			next = append(next, local)
			kept[local.ID] = true
			continue
		}
		if confirmed, ok := server[local.ID]; ok {
			next = append(next, confirmed)
			kept[local.ID] = true
		}
		// サーバーに存在せず未処理タスクもない同期済みエントリーは、
		// 他クライアントによる削除とみなして取り除く
	}
	for _, id := range serverOrder {
		if !kept[id] {
			next = append(next, server[id])
		}
	}

	s.entries = next
	s.saveLocked(ctx)
}

// SweepTrash はソフト削除から保持期間を超過したエントリーを破棄する。
// 削除件数を返す。冪等で、対象がなければ何もしない。
func (s *Service) SweepTrash(ctx context.Context, retention time.Duration) int {
	cutoff := s.now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	var next []*model.Entry
	purged := 0
	for _, e := range s.entries {
		if e.DeletedAt != "" {
			deletedAt, err := time.Parse(model.TimestampFormat, e.DeletedAt)
			if err == nil && deletedAt.Before(cutoff) {
				purged++
				continue
			}
		}
		next = append(next, e)
	}

	if purged > 0 {
		s.entries = next
		s.saveLocked(ctx)
	}
	return purged
}

// --- 内部ヘルパー ---

func (s *Service) findLocked(id string) *model.Entry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *Service) removeLocked(id string) {
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *Service) saveLocked(ctx context.Context) {
	if err := s.cache.SaveEntries(ctx, s.entries); err != nil {
		s.logger.Warn("エントリーキャッシュの保存に失敗しました",
			slog.String("error", err.Error()))
	}
}

// snapshot は現在のエントリー状態のクローンを返す。同期アクションが
// 実行時点の最新状態を送るために使う（enqueue時のスナップショットを
// 送ると、再試行時に後続の編集を巻き戻してしまう）。
func (s *Service) snapshot(id string) *model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findLocked(id)
	if e == nil {
		return nil
	}
	return e.Clone()
}

func (s *Service) markSynced(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findLocked(id)
	if e == nil {
		return
	}
	e.SyncState = model.SyncSynced
	s.saveLocked(ctx)
}

// syncCreate はサーバーへのcreateを同期キュー経由で発行する。
// 成功時はsyncStateをsyncedへ遷移させ、全体再同期を起動する。
func (s *Service) syncCreate(ctx context.Context, id, describe string) {
	detached := context.WithoutCancel(ctx)
	// キャプションが重複してもキュー表示でエントリーを特定できるよう、
	// ラベルにはIDも含める
	s.queue.RunTask(detached, "create entry \""+describe+"\" ("+id+")", func(ctx context.Context) error {
		current := s.snapshot(id)
		if current == nil {
			// 実行前に完全削除されたエントリー。何もすることがない。
			return nil
		}
		if err := s.remote.CreateEntry(ctx, current); err != nil {
			return err
		}
		s.markSynced(ctx, id)
		s.Refresh(ctx)
		return nil
	}, syncqueue.WithEntryID(id))
}

// syncUpdate はサーバーへの部分更新を同期キュー経由で発行する。
// createが未確認のエントリーに対してはupdateではなくcreateへ切り替える。
func (s *Service) syncUpdate(ctx context.Context, id, label string, payload map[string]any) {
	detached := context.WithoutCancel(ctx)
	s.queue.RunTask(detached, label, func(ctx context.Context) error {
		current := s.snapshot(id)
		if current == nil {
			return nil
		}
		if current.SyncState == model.SyncLocal {
			if err := s.remote.CreateEntry(ctx, current); err != nil {
				return err
			}
		} else if err := s.remote.UpdateEntry(ctx, id, payload); err != nil {
			return err
		}
		s.markSynced(ctx, id)
		s.Refresh(ctx)
		return nil
	}, syncqueue.WithEntryID(id))
}
