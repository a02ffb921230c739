package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/planboard/internal/audit"
	"github.com/hitoshi/planboard/internal/config"
	"github.com/hitoshi/planboard/internal/database"
	"github.com/hitoshi/planboard/internal/entry"
	"github.com/hitoshi/planboard/internal/event"
	"github.com/hitoshi/planboard/internal/handler"
	"github.com/hitoshi/planboard/internal/idea"
	"github.com/hitoshi/planboard/internal/logger"
	"github.com/hitoshi/planboard/internal/metrics"
	"github.com/hitoshi/planboard/internal/middleware"
	"github.com/hitoshi/planboard/internal/notify"
	"github.com/hitoshi/planboard/internal/remote"
	"github.com/hitoshi/planboard/internal/sanitize"
	"github.com/hitoshi/planboard/internal/security"
	"github.com/hitoshi/planboard/internal/store"
	"github.com/hitoshi/planboard/internal/syncqueue"
	"github.com/hitoshi/planboard/internal/worker/cleanup"
	"github.com/hitoshi/planboard/internal/worker/retryloop"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("remote_base_url", cfg.RemoteBaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// core はドメインサービス一式を保持する。serveとworkerで共有される
// ワイヤリングの結果で、構築後はいずれかのモードが所有する。
type core struct {
	cache     *store.Cache
	sanitizer *sanitize.Sanitizer
	remote    *remote.HTTPClient
	notices   *syncqueue.NoticeCenter
	queue     *syncqueue.Queue
	bus       *event.Bus
	engine    *notify.Engine
	recorder  *audit.Recorder
	entries   *entry.Service
	ideas     *idea.Service
	importer  *idea.Importer
	collector *metrics.Collector
	registry  *prometheus.Registry
}

// buildCore はDB接続の上に全ドメインサービスをワイヤリングし、
// ローカルキャッシュから状態を読み込む。
func buildCore(ctx context.Context, cfg *config.Config, db *sql.DB) *core {
	log := slog.Default()

	sanitizer := sanitize.NewSanitizer(security.NewTextSanitizer())
	cache := store.NewCache(store.NewPostgresKV(db), sanitizer, log)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	remoteClient := remote.NewHTTPClient(
		&http.Client{Timeout: 15 * time.Second}, log, cfg.RemoteBaseURL,
	)

	notices := syncqueue.NewNoticeCenter()
	queue := syncqueue.NewQueue(remoteClient, notices, collector, log)

	bus := event.NewBus(log)

	ssrfGuard := security.NewSSRFGuard()

	engine := notify.NewEngine(
		cache, queue, remoteClient, ssrfGuard, collector, log, cfg.WebhookURL,
	)
	engine.Subscribe(bus)

	recorder := audit.NewRecorder(cache, remoteClient, log)
	recorder.Subscribe(bus)

	entrySvc := entry.NewService(cache, queue, remoteClient, sanitizer, bus, log)
	entrySvc.Load(ctx)

	ideaSvc := idea.NewService(cache, queue, remoteClient, sanitizer, entrySvc, bus, log)
	ideaSvc.Load(ctx)

	importer := idea.NewImporter(ideaSvc, ssrfGuard, log)

	return &core{
		cache:     cache,
		sanitizer: sanitizer,
		remote:    remoteClient,
		notices:   notices,
		queue:     queue,
		bus:       bus,
		engine:    engine,
		recorder:  recorder,
		entries:   entrySvc,
		ideas:     ideaSvc,
		importer:  importer,
		collector: collector,
		registry:  registry,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// 同期キューはメモリ上に存在するため、到達可能性プローブと再接続時の
// 自動再試行ループもこのプロセスで動かす。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. ドメインサービスのワイヤリング
	c := buildCore(ctx, cfg, db)

	// 3. レート制限の構成（configはreq/min単位、limiterはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ImportRate = rate.Limit(float64(cfg.RateLimitImport) / 60.0)
	rateLimiterCfg.ImportBurst = cfg.RateLimitImport

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 4. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		EntryService:        c.entries,
		QueueService:        c.queue,
		NoticeCenter:        c.notices,
		NotificationService: c.engine,
		IdeaService:         c.ideas,
		IdeaImporter:        c.importer,
		DraftStore:          c.cache,
		AuditRecorder:       c.recorder,
		Sanitizer:           c.sanitizer,

		Gatherer: c.registry,
	})

	// 5. 到達可能性プローブと再接続時の自動再試行
	retrier := retryloop.NewLoop(c.remote, c.queue, slog.Default())
	retrier.Interval = cfg.ProbeInterval
	go retrier.Run(ctx)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ゴミ箱の期限切れエントリーを日次で掃き出すバッチジョブを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 2. ドメインサービスのワイヤリング
	c := buildCore(ctx, cfg, db)

	// 3. ゴミ箱掃き出しジョブの初期化
	sweepJob := cleanup.NewSweepJob(c.entries, slog.Default())
	sweepJob.RetentionDays = cfg.TrashRetentionDays

	slog.Info("worker starting",
		slog.Int("trash_retention_days", cfg.TrashRetentionDays),
	)

	// 起動直後に1回実行し、以降は日次で実行する（ブロッキング）
	if err := sweepJob.Run(ctx); err != nil {
		slog.Error("trash sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			// キャッシュの最新状態を読み直してから掃き出す
			c.entries.Load(ctx)
			if err := sweepJob.Run(ctx); err != nil {
				slog.Error("trash sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
