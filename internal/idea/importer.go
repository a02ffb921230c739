package idea

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hitoshi/planboard/internal/model"
	"github.com/hitoshi/planboard/internal/security"
)

const (
	// importMaxBodySize はインポート時に読み込むレスポンスの最大サイズ。
	importMaxBodySize = 5 * 1024 * 1024
	// importMaxItems は1回のインポートで取り込むフィード記事の上限。
	importMaxItems = 20
	// importTimeout はインポートフェッチのタイムアウト。
	importTimeout = 20 * time.Second
)

// Importer は外部URL（RSS/AtomフィードまたはWebページ）からアイデアを
// 取り込む。URLはユーザー入力であるため、SSRF防止クライアントを必ず
// 経由する。
type Importer struct {
	svc    *Service
	guard  security.SSRFGuardService
	client *http.Client
	logger *slog.Logger
}

// NewImporter はImporterの新しいインスタンスを生成する。
func NewImporter(svc *Service, guard security.SSRFGuardService, logger *slog.Logger) *Importer {
	return &Importer{
		svc:    svc,
		guard:  guard,
		client: guard.NewSafeClient(importTimeout, importMaxBodySize),
		logger: logger,
	}
}

// ImportFromURL はURLをフェッチし、フィードなら記事を、フィードで
// なければページタイトル1件をアイデアとして取り込む。既に同じリンクを
// 持つアイデアは重複して取り込まれない。
func (im *Importer) ImportFromURL(ctx context.Context, rawURL, actor string) ([]*model.Idea, error) {
	if err := im.guard.ValidateURL(rawURL); err != nil {
		return nil, model.NewInvalidImportURLError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidImportURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Planboard/1.0")

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, model.NewImportFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, model.NewImportFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, importMaxBodySize))
	if err != nil {
		return nil, model.NewImportFailedError(err.Error())
	}

	known := make(map[string]bool)
	for _, existing := range im.svc.List() {
		for _, link := range existing.Links {
			known[link] = true
		}
	}

	parser := gofeed.NewParser()
	feed, parseErr := parser.ParseString(string(body))
	if parseErr == nil {
		return im.importFeed(ctx, feed, actor, known)
	}

	// フィードとしてパースできないページはタイトル1件のアイデアにする
	title := extractHTMLTitle(body)
	if title == "" {
		return nil, model.NewImportFailedError("フィードでもタイトル付きページでもありません")
	}
	if known[rawURL] {
		return nil, nil
	}
	created, err := im.svc.Add(ctx, map[string]any{
		"type":  "import",
		"title": title,
		"links": []any{rawURL},
	}, actor)
	if err != nil {
		return nil, err
	}
	return []*model.Idea{created}, nil
}

func (im *Importer) importFeed(ctx context.Context, feed *gofeed.Feed, actor string, known map[string]bool) ([]*model.Idea, error) {
	var imported []*model.Idea
	for _, item := range feed.Items {
		if item == nil || item.Title == "" {
			continue
		}
		if item.Link != "" && known[item.Link] {
			continue
		}
		raw := map[string]any{
			"type":  "import",
			"title": item.Title,
			"notes": item.Description,
		}
		if item.Link != "" {
			raw["links"] = []any{item.Link}
		}
		created, err := im.svc.Add(ctx, raw, actor)
		if err != nil {
			im.logger.Warn("フィード記事の取り込みに失敗しました",
				slog.String("title", item.Title),
				slog.String("error", err.Error()))
			continue
		}
		imported = append(imported, created)
		if item.Link != "" {
			known[item.Link] = true
		}
		if len(imported) >= importMaxItems {
			break
		}
	}

	im.logger.Info("フィードからアイデアを取り込みました",
		slog.String("feed_title", feed.Title),
		slog.Int("imported", len(imported)),
		slog.Int("items_total", len(feed.Items)))
	return imported, nil
}

// extractHTMLTitle はHTMLドキュメントから<title>要素のテキストを抜き出す。
func extractHTMLTitle(body []byte) string {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				inTitle = false
			}
		}
	}
}
