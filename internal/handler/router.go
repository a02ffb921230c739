package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/planboard/internal/metrics"
	"github.com/hitoshi/planboard/internal/middleware"
	"github.com/hitoshi/planboard/internal/sanitize"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	EntryService        EntryServiceInterface
	QueueService        QueueServiceInterface
	NoticeCenter        NoticeCenterInterface
	NotificationService NotificationServiceInterface
	IdeaService         IdeaServiceInterface
	IdeaImporter        IdeaImporterInterface
	DraftStore          DraftStoreInterface
	AuditRecorder       AuditRecorderInterface
	Sanitizer           *sanitize.Sanitizer

	// メトリクス
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Actor → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewRecoveryMiddleware())

	entryHandler := NewEntryHandler(deps.EntryService)
	queueHandler := NewQueueHandler(deps.QueueService, deps.NoticeCenter)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	ideaHandler := NewIdeaHandler(deps.IdeaService, deps.IdeaImporter)
	draftHandler := NewDraftHandler(deps.DraftStore, deps.Sanitizer)
	auditHandler := NewAuditHandler(deps.AuditRecorder)

	// --- レート制限の外のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---
	// ミドルウェアスタック: Actor → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewActorMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// エントリー管理
		r.Route("/api/entries", func(r chi.Router) {
			r.Get("/", entryHandler.ListEntries)
			r.Post("/", entryHandler.CreateEntry)
			r.Post("/bulk-shift", entryHandler.BulkShiftDates)
			r.Post("/refresh", entryHandler.Refresh)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", entryHandler.GetEntry)
				r.Patch("/", entryHandler.UpdateEntry)
				r.Delete("/", entryHandler.DeleteEntry)
				r.Post("/approve", entryHandler.ToggleApprove)
				r.Post("/publish", entryHandler.Publish)
				r.Post("/post-again", entryHandler.PostAgain)
				r.Post("/restore", entryHandler.RestoreEntry)
				r.Post("/comments", entryHandler.AddComment)
			})
		})

		// 同期キュー
		r.Route("/api/queue", func(r chi.Router) {
			r.Get("/", queueHandler.ListItems)
			r.Post("/retry-all", queueHandler.RetryAll)
			r.Post("/{id}/retry", queueHandler.RetryItem)
			r.Delete("/{id}", queueHandler.DismissItem)
		})

		// 通知バナー
		r.Route("/api/notices", func(r chi.Router) {
			r.Get("/", queueHandler.ListNotices)
			r.Delete("/{id}", queueHandler.DismissNotice)
		})

		// アプリ内通知
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.ListNotifications)
			r.Post("/read-all", notificationHandler.MarkAllRead)
			r.Post("/{id}/read", notificationHandler.MarkRead)
		})

		// アイデア管理
		r.Route("/api/ideas", func(r chi.Router) {
			r.Get("/", ideaHandler.ListIdeas)
			r.Post("/", ideaHandler.CreateIdea)

			// POST /api/ideas/import - 外部取り込み（取り込み専用レート制限を追加）
			r.With(deps.RateLimiter.ImportMiddleware()).Post("/import", ideaHandler.ImportIdeas)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ideaHandler.GetIdea)
				r.Patch("/", ideaHandler.UpdateIdea)
				r.Delete("/", ideaHandler.DeleteIdea)
				r.Post("/convert", ideaHandler.ConvertIdea)
			})
		})

		// 下書き
		r.Route("/api/draft", func(r chi.Router) {
			r.Get("/", draftHandler.GetDraft)
			r.Put("/", draftHandler.SaveDraft)
			r.Delete("/", draftHandler.ClearDraft)
		})

		// 監査ログ
		r.Get("/api/audit", auditHandler.ListEvents)
	})

	return r
}
