// Package event はドメインイベントの同期配信を提供する。
//
// 状態機械の各操作は「何が起きたか」をイベントとして同期的に発行し、
// 通知エンジンや監査シンクなどの購読者が「どう反応するか」を担当する。
// 散在する副作用呼び出しを排除するための明示的な分離。
package event

import (
	"context"
	"log/slog"

	"github.com/hitoshi/planboard/internal/model"
)

// Event はドメインイベントを表す。
type Event interface {
	// Name はイベント種別名を返す（監査アクション名としても使用される）。
	Name() string
}

// Handler はイベント購読者。パニックしてはならない（保険としてBus側でも回収する）。
type Handler func(ctx context.Context, e Event)

// Bus は同期イベントバス。購読者は起動時に登録され、
// Publishは登録順に同一ゴルーチン上で各購読者を呼び出す。
type Bus struct {
	logger   *slog.Logger
	handlers []Handler
}

// NewBus はBusの新しいインスタンスを生成する。
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe は購読者を登録する。起動時のワイヤリングでのみ呼び出すこと。
func (b *Bus) Subscribe(h Handler) {
	b.handlers = append(b.handlers, h)
}

// Publish はイベントを全購読者へ同期配信する。
// 購読者のパニックは回収してログに記録し、後続の購読者と発行元の処理は継続する。
func (b *Bus) Publish(ctx context.Context, e Event) {
	for _, h := range b.handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("イベント購読者がパニックしました",
						slog.String("event", e.Name()),
						slog.Any("panic", r),
					)
				}
			}()
			h(ctx, e)
		}()
	}
}

// --- イベント定義 ---

// EntryCreated はエントリー新規作成を表す。
type EntryCreated struct {
	Entry *model.Entry
	Actor string
}

func (EntryCreated) Name() string { return "entry.created" }

// EntryUpdated はエントリー更新を表す。
// AddedApproversは今回の更新で新たに追加された承認者のみを含む。
// ChangedFieldsはパッチに含まれたフィールド名のリスト。
type EntryUpdated struct {
	Before         *model.Entry
	After          *model.Entry
	Actor          string
	ChangedFields  []string
	AddedApprovers []string
}

func (EntryUpdated) Name() string { return "entry.updated" }

// EntryApproved はエントリー承認を表す。
type EntryApproved struct {
	Entry *model.Entry
	Actor string
}

func (EntryApproved) Name() string { return "entry.approved" }

// EntryUnapproved は承認の取り消しを表す。
type EntryUnapproved struct {
	Entry *model.Entry
	Actor string
}

func (EntryUnapproved) Name() string { return "entry.unapproved" }

// EntryPublishDispatched は公開リクエストの送出結果を表す。
// Succeededは「リクエストがネットワークエラーなく送出された」ことを
// 意味するに過ぎず、実際の公開確認は別経路で非同期に届く。
type EntryPublishDispatched struct {
	Entry     *model.Entry
	Actor     string
	Succeeded bool
	Error     string
}

func (EntryPublishDispatched) Name() string { return "entry.publish-dispatched" }

// EntryCloned は「再投稿」によるクローン作成を表す。
type EntryCloned struct {
	Original *model.Entry
	Clone    *model.Entry
	Actor    string
}

func (EntryCloned) Name() string { return "entry.cloned" }

// EntrySoftDeleted はソフト削除を表す。
type EntrySoftDeleted struct {
	Entry *model.Entry
	Actor string
}

func (EntrySoftDeleted) Name() string { return "entry.soft-deleted" }

// EntryRestored はソフト削除からの復元を表す。
type EntryRestored struct {
	Entry *model.Entry
	Actor string
}

func (EntryRestored) Name() string { return "entry.restored" }

// EntryHardDeleted は完全削除を表す。
type EntryHardDeleted struct {
	EntryID string
	Actor   string
}

func (EntryHardDeleted) Name() string { return "entry.hard-deleted" }

// EntryDatesShifted は一括日付シフトを表す。
type EntryDatesShifted struct {
	EntryIDs []string
	Days     int
	Actor    string
}

func (EntryDatesShifted) Name() string { return "entry.dates-shifted" }

// CommentAdded はコメント追加を表す。
type CommentAdded struct {
	Entry   *model.Entry
	Comment model.Comment
	Actor   string
}

func (CommentAdded) Name() string { return "entry.comment-added" }

// IdeaConverted はアイデアのエントリー化を表す。
type IdeaConverted struct {
	Idea  *model.Idea
	Entry *model.Entry
	Actor string
}

func (IdeaConverted) Name() string { return "idea.converted" }
