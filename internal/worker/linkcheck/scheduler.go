package linkcheck

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/shortlink/internal/model"
)

const (
	defaultMaxConcurrency = 5
	defaultBatchSize      = 200
)

// Store はリンクチェックに必要な永続化インターフェース。
// repository.EntityRepositoryの部分集合として定義する。
type Store interface {
	List(ctx context.Context, afterID int64, limit int) ([]*model.Entity, error)
	SetLinkStatus(ctx context.Context, id int64, status model.LinkStatus, checkedAt time.Time) error
}

// Recorder はチェック結果を記録するインターフェース。
type Recorder interface {
	RecordLinkCheck(status string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordLinkCheck(string, time.Duration) {}

// Scheduler はリダイレクト先URLを定期的にチェックする。
// semaphoreパターンで同時接続数を制御する。
type Scheduler struct {
	store          Store
	checker        *Checker
	recorder       Recorder
	logger         *slog.Logger
	maxConcurrency int
	batchSize      int
	now            func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewScheduler(
	store Store,
	checker *Checker,
	recorder Recorder,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:          store,
		checker:        checker,
		recorder:       recorder,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		batchSize:      defaultBatchSize,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Start はinterval間隔でリンクチェックを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リンクチェックを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リンクチェックを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("リンクチェックサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce はリダイレクト先URLを持つ全エンティティを1回チェックする。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	var afterID int64
	checked := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entities, err := s.store.List(ctx, afterID, s.batchSize)
		if err != nil {
			return fmt.Errorf("エンティティ一覧の取得に失敗 (after=%d): %w", afterID, err)
		}

		checked += s.checkBatch(ctx, entities)

		if len(entities) < s.batchSize {
			break
		}
		afterID = entities[len(entities)-1].ID
	}

	s.logger.Info("リンクチェックサイクルが完了しました",
		slog.Int("checked_count", checked),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// checkBatch はURLを持つエンティティを並列にチェックし、チェックした件数を返す。
func (s *Scheduler) checkBatch(ctx context.Context, entities []*model.Entity) int {
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	count := 0

	for _, entity := range entities {
		if entity.RedirectURL == "" {
			continue
		}
		count++

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(e *model.Entity) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			s.checkOne(ctx, e)
		}(entity)
	}

	wg.Wait()
	return count
}

func (s *Scheduler) checkOne(ctx context.Context, e *model.Entity) {
	start := time.Now()
	status := s.checker.Check(ctx, e.RedirectURL)
	if ctx.Err() != nil {
		// 停止で中断されたチェックは結果として扱わない
		return
	}
	s.recorder.RecordLinkCheck(string(status), time.Since(start))

	if status != model.LinkStatusOK {
		s.logger.Info("リダイレクト先URLに到達できません",
			slog.Int64("entity_id", e.ID),
			slog.String("redirect_url", e.RedirectURL),
			slog.String("link_status", string(status)),
		)
	}

	if err := s.store.SetLinkStatus(ctx, e.ID, status, s.now()); err != nil {
		s.logger.Error("リンクチェック結果の保存に失敗しました",
			slog.Int64("entity_id", e.ID),
			slog.String("error", err.Error()),
		)
	}
}
