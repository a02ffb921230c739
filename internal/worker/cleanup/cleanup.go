// Package cleanup はゴミ箱の自動パージジョブを提供する。
// ソフト削除から保持期間（デフォルト30日）を超過したエントリーを
// 日次バッチでローカルキャッシュから破棄する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// TrashSweeper はゴミ箱パージ処理を抽象化するインターフェース。
// entry.Service が実装する。
type TrashSweeper interface {
	SweepTrash(ctx context.Context, retention time.Duration) int
}

// SweepJob は保持期間を超過したソフト削除済みエントリーの破棄ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type SweepJob struct {
	entries       TrashSweeper
	logger        *slog.Logger
	RetentionDays int // ゴミ箱の保持日数（デフォルト: 30）
}

// NewSweepJob は新しいSweepJobを生成する。
// デフォルトの保持日数は30日。
func NewSweepJob(entries TrashSweeper, logger *slog.Logger) *SweepJob {
	return &SweepJob{
		entries:       entries,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Run はゴミ箱の保持期間を超過したエントリーを破棄する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SweepJob) Run(ctx context.Context) error {
	start := time.Now()

	retention := time.Duration(j.RetentionDays) * 24 * time.Hour
	purged := j.entries.SweepTrash(ctx, retention)

	duration := time.Since(start)
	j.logger.Info("ゴミ箱パージジョブが完了しました",
		slog.Int("purged_count", purged),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
