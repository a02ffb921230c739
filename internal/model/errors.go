// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, entry, idea, sync, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEntryNotFound        = "ENTRY_NOT_FOUND"
	ErrCodeIdeaNotFound         = "IDEA_NOT_FOUND"
	ErrCodeQueueItemNotFound    = "QUEUE_ITEM_NOT_FOUND"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidDate          = "INVALID_DATE"
	ErrCodeNotPublishable       = "NOT_PUBLISHABLE"
	ErrCodeNotPublished         = "NOT_PUBLISHED"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeIdeaAlreadyConverted = "IDEA_ALREADY_CONVERTED"
	ErrCodeInvalidImportURL     = "INVALID_IMPORT_URL"
	ErrCodeImportFailed         = "IMPORT_FAILED"
)

// NewEntryNotFoundError はエントリー未検出エラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定されたエントリーが見つかりません: %s", entryID),
		Category: "entry",
		Action:   "エントリーIDを確認してください。",
	}
}

// NewIdeaNotFoundError はアイデア未検出エラーを生成する。
func NewIdeaNotFoundError(ideaID string) *APIError {
	return &APIError{
		Code:     ErrCodeIdeaNotFound,
		Message:  fmt.Sprintf("指定されたアイデアが見つかりません: %s", ideaID),
		Category: "idea",
		Action:   "アイデアIDを確認してください。",
	}
}

// NewQueueItemNotFoundError は同期キュー項目未検出エラーを生成する。
func NewQueueItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeQueueItemNotFound,
		Message:  fmt.Sprintf("指定された同期キュー項目が見つかりません: %s", itemID),
		Category: "sync",
		Action:   "キュー一覧を再読み込みしてください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidDateError は日付形式不正エラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", value),
		Category: "validation",
		Action:   "日付はYYYY-MM-DD形式で指定してください。",
	}
}

// NewNotPublishableError は公開条件未達エラーを生成する。
func NewNotPublishableError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotPublishable,
		Message:  fmt.Sprintf("エントリーは公開可能な状態ではありません: %s", entryID),
		Category: "entry",
		Action:   "承認済みかつプラットフォームが1つ以上設定されていることを確認してください。",
	}
}

// NewNotPublishedError は再投稿条件未達エラーを生成する。
func NewNotPublishedError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotPublished,
		Message:  fmt.Sprintf("エントリーはまだ公開されていません: %s", entryID),
		Category: "entry",
		Action:   "再投稿は公開済みのエントリーに対してのみ実行できます。",
	}
}

// NewConfirmationRequiredError は破壊的操作の確認不足エラーを生成する。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  "完全削除には明示的な確認が必要です。",
		Category: "validation",
		Action:   "confirmed=true を指定して再実行してください。",
	}
}

// NewIdeaAlreadyConvertedError は変換済みアイデアへの再変換エラーを生成する。
func NewIdeaAlreadyConvertedError(ideaID string) *APIError {
	return &APIError{
		Code:     ErrCodeIdeaAlreadyConverted,
		Message:  fmt.Sprintf("アイデアは既にエントリーへ変換されています: %s", ideaID),
		Category: "idea",
		Action:   "変換先のエントリーを確認してください。",
	}
}

// NewInvalidImportURLError はインポートURL不正エラーを生成する。
func NewInvalidImportURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImportURL,
		Message:  fmt.Sprintf("無効なインポートURLです: %s", reason),
		Category: "validation",
		Action:   "公開されているフィードのURL（http:// または https://）を指定してください。",
	}
}

// NewImportFailedError はフィードインポート失敗エラーを生成する。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("フィードの取り込みに失敗しました: %s", reason),
		Category: "idea",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}
