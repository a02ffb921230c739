// Package remote はリモートCRUDバックエンドおよび通知コラボレーターへの
// クライアントを提供する。
//
// コアは到達可能性フラグを読み取り専用の入力として扱い、失敗は
// 「rejectされた」こと以上の意味を持たない素のエラーとして返される。
package remote

import (
	"context"

	"github.com/hitoshi/planboard/internal/model"
)

// Collaborator はリモートバックエンドのインターフェース。
// 同期キューとエントリー状態機械のコンストラクタへ明示的に注入され、
// テストではフェイク実装に差し替えられる。
type Collaborator interface {
	// IsReachable はリモートバックエンドが現在呼び出し可能かを返す。
	// バックグラウンドのヘルスプローブが更新する。
	IsReachable() bool

	// ListEntries はサーバー側のエントリー一覧を取得する。
	// 戻り値は未検証のオブジェクトであり、呼び出し側でサニタイズする。
	ListEntries(ctx context.Context) ([]map[string]any, error)

	// CreateEntry はエントリーを新規作成する。ID指定のupsertとして
	// 実装されており、再試行による重複実行は安全。
	CreateEntry(ctx context.Context, entry *model.Entry) error

	// UpdateEntry はエントリーの部分更新を行う。
	UpdateEntry(ctx context.Context, id string, patch map[string]any) error

	// DeleteEntry はエントリーを削除する。hard=falseはソフト削除マーク。
	DeleteEntry(ctx context.Context, id string, hard bool) error

	// ListIdeas はサーバー側のアイデア一覧を取得する。
	ListIdeas(ctx context.Context) ([]map[string]any, error)

	// CreateIdea はアイデアを新規作成する（ID指定のupsert）。
	CreateIdea(ctx context.Context, idea *model.Idea) error

	// UpdateIdea はアイデアの部分更新を行う。
	UpdateIdea(ctx context.Context, id string, patch map[string]any) error

	// DeleteIdea はアイデアを削除する。
	DeleteIdea(ctx context.Context, id string) error

	// DispatchPublish は公開処理の起動をWebhook経由で依頼する。
	// 成功は「リクエストがネットワークエラーなく送出された」ことを
	// 意味するに過ぎず、実際の公開確認は別経路で非同期に届く。
	DispatchPublish(ctx context.Context, entry *model.Entry) error

	// AppendAudit は監査イベントをリモートへ転送する。
	// 呼び出し側はベストエフォートとして失敗を黙って無視する。
	AppendAudit(ctx context.Context, ev *model.AuditEvent) error

	// Notify はメール/Webhookによるサーバーサイド配信を依頼する。
	Notify(ctx context.Context, payload model.NotifyPayload) error
}
