// Package store はローカルキャッシュの永続化を提供する。
//
// コレクション単位のキーバリュー永続化であり、書き込みは常にコレクション
// 全体の上書き、読み込みは欠損・破損値を許容して空コレクションを返す。
// ビジネスロジックは持たない。
package store

import "context"

// キャッシュストアの固定キー。コレクション1つにつきキー1つ。
const (
	KeyEntries       = "entries"
	KeyIdeas         = "ideas"
	KeyNotifications = "notifications"
	KeyAudit         = "audit"
	KeyDraftEntry    = "draft-entry"
	KeyInfluencers   = "influencers"
)

// KV はキーバリュー永続化のインターフェース。
type KV interface {
	// Load は指定キーの値を取得する。キーが存在しない場合は(nil, nil)を返す。
	Load(ctx context.Context, key string) ([]byte, error)

	// Save は指定キーの値を全体上書きで保存する。
	Save(ctx context.Context, key string, value []byte) error

	// Delete は指定キーの値を削除する。キーが存在しない場合もエラーにならない。
	Delete(ctx context.Context, key string) error
}
