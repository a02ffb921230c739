package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hitoshi/planboard/internal/model"
)

// HTTPClient はCollaboratorのHTTP JSON実装。
// 到達可能性はatomicなフラグとして保持し、バックグラウンドの
// ヘルスプローブ（worker/retryloop）が更新する。
type HTTPClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	reachable  atomic.Bool
}

// NewHTTPClient はHTTPClientの新しいインスタンスを生成する。
// 到達可能性の初期値はfalseであり、最初のプローブ成功で遷移する。
func NewHTTPClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *HTTPClient {
	return &HTTPClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// IsReachable はリモートバックエンドが現在呼び出し可能かを返す。
func (c *HTTPClient) IsReachable() bool {
	return c.reachable.Load()
}

// SetReachable は到達可能性フラグを更新する。プローブループが使用する。
func (c *HTTPClient) SetReachable(ok bool) {
	c.reachable.Store(ok)
}

// Probe はヘルスエンドポイントを叩いて到達可能性を更新し、
// 更新後の到達可能性を返す。
func (c *HTTPClient) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		c.SetReachable(false)
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.SetReachable(false)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode == http.StatusOK
	c.SetReachable(ok)
	return ok
}

// do は共通のリクエスト送出処理。2xx以外のステータスはエラーとして返す。
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "Planboard/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("リモートバックエンドの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("リモートバックエンドがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("リモートバックエンドがステータス %d を返しました", resp.StatusCode)
	}

	return respBody, nil
}

// list はコレクション一覧を未検証オブジェクトの配列として取得する。
func (c *HTTPClient) list(ctx context.Context, collection string) ([]map[string]any, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/"+collection, nil)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return items, nil
}

// ListEntries はサーバー側のエントリー一覧を取得する。
func (c *HTTPClient) ListEntries(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, "entries")
}

// CreateEntry はエントリーを新規作成する。
// サーバー側はID指定のupsertとして処理するため、再試行は安全。
func (c *HTTPClient) CreateEntry(ctx context.Context, entry *model.Entry) error {
	_, err := c.do(ctx, http.MethodPut, "/api/entries/"+url.PathEscape(entry.ID), entry)
	return err
}

// UpdateEntry はエントリーの部分更新を行う。
func (c *HTTPClient) UpdateEntry(ctx context.Context, id string, patch map[string]any) error {
	_, err := c.do(ctx, http.MethodPatch, "/api/entries/"+url.PathEscape(id), patch)
	return err
}

// DeleteEntry はエントリーを削除する。hard=trueで完全削除。
func (c *HTTPClient) DeleteEntry(ctx context.Context, id string, hard bool) error {
	path := "/api/entries/" + url.PathEscape(id)
	if hard {
		path += "?hard=true"
	}
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// ListIdeas はサーバー側のアイデア一覧を取得する。
func (c *HTTPClient) ListIdeas(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, "ideas")
}

// CreateIdea はアイデアを新規作成する（ID指定のupsert）。
func (c *HTTPClient) CreateIdea(ctx context.Context, idea *model.Idea) error {
	_, err := c.do(ctx, http.MethodPut, "/api/ideas/"+url.PathEscape(idea.ID), idea)
	return err
}

// UpdateIdea はアイデアの部分更新を行う。
func (c *HTTPClient) UpdateIdea(ctx context.Context, id string, patch map[string]any) error {
	_, err := c.do(ctx, http.MethodPatch, "/api/ideas/"+url.PathEscape(id), patch)
	return err
}

// DeleteIdea はアイデアを削除する。
func (c *HTTPClient) DeleteIdea(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/ideas/"+url.PathEscape(id), nil)
	return err
}

// DispatchPublish は公開処理の起動をWebhook経由で依頼する。
// 送出の成否のみを返し、実際の公開結果は観測しない。
func (c *HTTPClient) DispatchPublish(ctx context.Context, entry *model.Entry) error {
	_, err := c.do(ctx, http.MethodPost, "/api/publish", entry)
	return err
}

// AppendAudit は監査イベントをリモートへ転送する。
func (c *HTTPClient) AppendAudit(ctx context.Context, ev *model.AuditEvent) error {
	_, err := c.do(ctx, http.MethodPost, "/api/audit", ev)
	return err
}

// Notify はメール/Webhookによるサーバーサイド配信を依頼する。
func (c *HTTPClient) Notify(ctx context.Context, payload model.NotifyPayload) error {
	_, err := c.do(ctx, http.MethodPost, "/api/notify", payload)
	return err
}

// DefaultTimeout はリモート呼び出しのデフォルトタイムアウト。
// ハングしたリクエストが永久に未解決のままになることを防ぐ。
const DefaultTimeout = 15 * time.Second
