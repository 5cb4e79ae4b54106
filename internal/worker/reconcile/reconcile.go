// Package reconcile はスラッグの定期照合ジョブを提供する。
// 保存時のスラッグ補正はベストエフォートのため、補正に失敗したエンティティや
// ストアを直接更新されたエンティティをこのジョブで短縮コードに揃え直す。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/shortlink/internal/model"
)

// DefaultBatchSize は1回のList呼び出しで取得する件数のデフォルト値。
const DefaultBatchSize = 500

// EntityLister はエンティティをID昇順でページングして取得するインターフェース。
// repository.EntityRepositoryの部分集合として定義する。
type EntityLister interface {
	List(ctx context.Context, afterID int64, limit int) ([]*model.Entity, error)
}

// SlugReconciler はスラッグを短縮コードに揃えるインターフェース。
// shortlink.Serviceが満たす。
type SlugReconciler interface {
	Reconcile(ctx context.Context, entity *model.Entity) (bool, error)
}

// Result は1回の照合サイクルの集計結果。
type Result struct {
	Checked   int
	Corrected int
	Failed    int
}

// Job はスラッグ照合ジョブ。
// 冪等: スラッグが揃っているエンティティには書き込みを行わない。
type Job struct {
	lister     EntityLister
	reconciler SlugReconciler
	logger     *slog.Logger
	batchSize  int
}

// NewJob は新しいJobを生成する。batchSizeが0以下の場合はDefaultBatchSizeを使用する。
func NewJob(lister EntityLister, reconciler SlugReconciler, logger *slog.Logger, batchSize int) *Job {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		lister:     lister,
		reconciler: reconciler,
		logger:     logger,
		batchSize:  batchSize,
	}
}

// Start はinterval間隔で照合を実行する。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("スラッグ照合ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("batch_size", j.batchSize),
	)

	j.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("スラッグ照合ジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil {
		j.logger.Error("スラッグ照合サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Run は全エンティティを1回走査し、スラッグがずれているものを補正する。
// 個別エンティティの補正失敗はログに残して走査を続ける。
// 一覧取得の失敗やコンテキストのキャンセルでは途中までの結果とエラーを返す。
func (j *Job) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result
	var afterID int64

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		entities, err := j.lister.List(ctx, afterID, j.batchSize)
		if err != nil {
			return res, fmt.Errorf("エンティティ一覧の取得に失敗 (after=%d): %w", afterID, err)
		}

		for _, e := range entities {
			res.Checked++
			corrected, err := j.reconciler.Reconcile(ctx, e)
			if err != nil {
				res.Failed++
				j.logger.Warn("スラッグの補正に失敗しました",
					slog.Int64("entity_id", e.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if corrected {
				res.Corrected++
			}
		}

		if len(entities) < j.batchSize {
			break
		}
		afterID = entities[len(entities)-1].ID
	}

	j.logger.Info("スラッグ照合ジョブが完了しました",
		slog.Int("checked_count", res.Checked),
		slog.Int("corrected_count", res.Corrected),
		slog.Int("failed_count", res.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return res, nil
}
