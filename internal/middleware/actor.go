// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// actorHeaderName は操作者名を運ぶリクエストヘッダー。
const actorHeaderName = "X-Actor"

// defaultActor はヘッダー未指定時の操作者名。
// 認証・認可ポリシーはこのサービスの範囲外であり、操作者名は
// 監査と通知のための表示名としてのみ扱う。
const defaultActor = "anonymous"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// actorContextKey はリクエストコンテキストに操作者名を格納するためのキー。
var actorContextKey = contextKey("actor")

// NewActorMiddleware はX-Actorヘッダーから操作者名を読み取り、
// リクエストコンテキストへ注入するミドルウェアを返す。
// ヘッダーがない場合はデフォルトの操作者名を使用する。
func NewActorMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(actorHeaderName))
			if actor == "" {
				actor = defaultActor
			}
			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext はリクエストコンテキストから操作者名を取得する。
// ミドルウェアを通過していないコンテキストではデフォルトの操作者名を返す。
func ActorFromContext(ctx context.Context) string {
	actor, ok := ctx.Value(actorContextKey).(string)
	if !ok || actor == "" {
		return defaultActor
	}
	return actor
}

// ContextWithActor はコンテキストに操作者名を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}
