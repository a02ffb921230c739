// Package retryloop はリモート到達性の監視と再接続時の自動再同期を提供する。
// 定期的に疎通確認を行い、オフラインからオンラインへの遷移を検出したら
// 同期キューの滞留タスクを一括リトライする。
package retryloop

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval は疎通確認のデフォルト間隔。
const DefaultInterval = 30 * time.Second

// Prober はリモートバックエンドへの疎通確認を抽象化するインターフェース。
// remote.HTTPClient が実装する。
type Prober interface {
	Probe(ctx context.Context) bool
}

// Retrier は同期キューの一括リトライを抽象化するインターフェース。
// syncqueue.Queue が実装する。
type Retrier interface {
	RetryAll(ctx context.Context) int
	Len() int
}

// Loop はバックグラウンドの到達性監視ループ。
type Loop struct {
	prober   Prober
	queue    Retrier
	logger   *slog.Logger
	Interval time.Duration

	wasReachable bool
}

// NewLoop は新しいLoopを生成する。
func NewLoop(prober Prober, queue Retrier, logger *slog.Logger) *Loop {
	return &Loop{
		prober:   prober,
		queue:    queue,
		logger:   logger,
		Interval: DefaultInterval,
		// 初回の疎通成功でもリトライが走るようにオフライン開始とみなす
		wasReachable: false,
	}
}

// Run はコンテキストがキャンセルされるまで疎通確認を繰り返す。
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	l.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick は1回分の疎通確認を行い、再接続を検出したら滞留タスクをリトライする。
func (l *Loop) Tick(ctx context.Context) {
	reachable := l.prober.Probe(ctx)

	if reachable && !l.wasReachable {
		pending := l.queue.Len()
		if pending > 0 {
			l.logger.Info("リモート再接続を検出しました。滞留タスクをリトライします",
				slog.Int("pending", pending),
			)
			succeeded := l.queue.RetryAll(ctx)
			l.logger.Info("一括リトライが完了しました",
				slog.Int("succeeded", succeeded),
				slog.Int("remaining", l.queue.Len()),
			)
		}
	}

	l.wasReachable = reachable
}
