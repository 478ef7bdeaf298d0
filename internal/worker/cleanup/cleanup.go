// Package cleanup は期限切れゲートウェイセッションの自動削除ジョブを提供する。
// 有効期限を超過したセッション行を定期バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションの削除インターフェース。
// repository.SessionRepositoryが実装する。
type SessionPurger interface {
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PurgeRecorder は削除件数のメトリクス記録インターフェース。
type PurgeRecorder interface {
	RecordSessionsPurged(count int64)
}

// Job は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	repo    SessionPurger
	logger  *slog.Logger
	metrics PurgeRecorder
	// Interval は実行間隔（デフォルト: 1時間）。
	Interval time.Duration
}

// NewJob は新しいJobを生成する。metricsはnilでもよい。
func NewJob(repo SessionPurger, logger *slog.Logger, metrics PurgeRecorder) *Job {
	return &Job{
		repo:     repo,
		logger:   logger,
		metrics:  metrics,
		Interval: time.Hour,
	}
}

// Run は期限切れセッションを1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.repo.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsPurged(deleted)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は実行間隔ごとにRunを呼び出すループを開始する。
// コンテキストのキャンセルで停止する。呼び出し側でgoroutineとして起動する。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップループを停止します")
			return
		case <-ticker.C:
			// 1回の失敗でループは止めない
			_ = j.Run(ctx)
		}
	}
}
