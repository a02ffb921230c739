package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	ImportRate      rate.Limit    // アイデア取り込みのレート（req/sec）。10/60
	ImportBurst     int           // アイデア取り込みのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/actor、アイデア取り込み 10 req/min/actor。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		ImportRate:      rate.Limit(10.0 / 60.0), // ~0.167 req/sec
		ImportBurst:     10,
		CleanupInterval: 5 * time.Minute,
	}
}

// actorLimiter は操作者ごとのレートリミッターとアクセス時刻を保持する。
type actorLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter は操作者ごとのレート制限を管理する。
// API全般のレート制限とアイデア取り込みのレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*actorLimiter

	importMu       sync.RWMutex
	importLimiters map[string]*actorLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*actorLimiter),
		importLimiters:  make(map[string]*actorLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストの操作者名をキーとする（ActorMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())

			limiter := rl.getOrCreateGeneralLimiter(actor)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("actor", actor),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ImportMiddleware はアイデア取り込み専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) ImportMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())

			limiter := rl.getOrCreateImportLimiter(actor)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.ImportRate)
				slog.Warn("rate limit exceeded",
					slog.String("actor", actor),
					slog.String("limit_type", "import"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// ImportLimiterCount は現在管理されている取り込みリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) ImportLimiterCount() int {
	rl.importMu.RLock()
	defer rl.importMu.RUnlock()
	return len(rl.importLimiters)
}

// getOrCreateGeneralLimiter は操作者のAPI全般リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateGeneralLimiter(actor string) *rate.Limiter {
	rl.generalMu.RLock()
	al, exists := rl.generalLimiters[actor]
	rl.generalMu.RUnlock()

	if exists {
		rl.generalMu.Lock()
		al.lastAccess = time.Now()
		rl.generalMu.Unlock()
		return al.limiter
	}

	rl.generalMu.Lock()
	defer rl.generalMu.Unlock()

	// ダブルチェック
	if al, exists := rl.generalLimiters[actor]; exists {
		al.lastAccess = time.Now()
		return al.limiter
	}

	limiter := rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)
	rl.generalLimiters[actor] = &actorLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// getOrCreateImportLimiter は操作者の取り込みリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateImportLimiter(actor string) *rate.Limiter {
	rl.importMu.RLock()
	al, exists := rl.importLimiters[actor]
	rl.importMu.RUnlock()

	if exists {
		rl.importMu.Lock()
		al.lastAccess = time.Now()
		rl.importMu.Unlock()
		return al.limiter
	}

	rl.importMu.Lock()
	defer rl.importMu.Unlock()

	// ダブルチェック
	if al, exists := rl.importLimiters[actor]; exists {
		al.lastAccess = time.Now()
		return al.limiter
	}

	limiter := rate.NewLimiter(rl.config.ImportRate, rl.config.ImportBurst)
	rl.importLimiters[actor] = &actorLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for actor, al := range rl.generalLimiters {
		if now.Sub(al.lastAccess) > ttl {
			delete(rl.generalLimiters, actor)
		}
	}
	rl.generalMu.Unlock()

	rl.importMu.Lock()
	for actor, al := range rl.importLimiters {
		if now.Sub(al.lastAccess) > ttl {
			delete(rl.importLimiters, actor)
		}
	}
	rl.importMu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}
