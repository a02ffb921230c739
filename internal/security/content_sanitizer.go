// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザーやリモートバックエンド由来のテキスト
// （キャプション、コメント本文、台本など）からHTMLタグとスクリプトを
// 除去し、プレーンテキストとして安全に保持できる形へ正規化する。
// bluemondayライブラリのStrictPolicyを使用し、全てのタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// エンティティサニタイザーの全ての文字列フィールド正規化で使用される。
type TextSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
	// HTMLエンティティはデコードされ、前後の空白はトリムされる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（全タグ除去）を使用する。計画ダッシュボードのキャプションや
// コメントはプレーンテキストであり、HTML許可リストは不要。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	// bluemondayは残存テキストをエンティティエスケープするため、
	// プレーンテキストとして保持する前にデコードする。
	return strings.TrimSpace(html.UnescapeString(stripped))
}
