// Package shortlink は短縮リンクのドメインロジックを提供する。
//
// 保存のたびにスラッグを短縮コード（IDのbase36表記）に揃え、
// 検証に通ったリダイレクト先URLだけを永続化する。
package shortlink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/shortlink/internal/model"
	"github.com/hitoshi/shortlink/internal/repository"
	"github.com/hitoshi/shortlink/internal/security"
	"github.com/hitoshi/shortlink/internal/shortcode"
)

// DefaultListLimit はList呼び出しでlimitが指定されなかった場合の件数。
const DefaultListLimit = 50

// SaveInput は保存時の入力。nilのフィールドは変更しない。
type SaveInput struct {
	Title       *string
	RedirectURL *string
}

// Recorder は保存処理の結果を記録するインターフェース。
// metrics.Collectorの部分集合として定義する。
type Recorder interface {
	RecordSlugCorrected()
	RecordSlugCorrectionFailure()
	RecordRedirectURLRejected()
}

type noopRecorder struct{}

func (noopRecorder) RecordSlugCorrected()         {}
func (noopRecorder) RecordSlugCorrectionFailure() {}
func (noopRecorder) RecordRedirectURLRejected()   {}

// Options は共有用短縮URLの組み立てに使う設定。
type Options struct {
	// BaseURL は末尾スラッシュなしの公開URL（例: https://sho.rt）。
	BaseURL string
	// Prefix は短縮リンクのパスプレフィックス（例: go）。
	Prefix string
}

// Service は短縮リンクのサービス層。
type Service struct {
	repo      repository.EntityRepository
	sanitizer security.TitleSanitizer
	recorder  Recorder
	opts      Options
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.EntityRepository,
	sanitizer security.TitleSanitizer,
	recorder Recorder,
	opts Options,
	logger *slog.Logger,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		recorder:  recorder,
		opts:      opts,
		logger:    logger,
	}
}

// Save はエンティティの保存処理を行う。
//
// 認可とCSRFトークンの検証は呼び出し前にミドルウェアで済ませておくこと。
// スラッグの補正はベストエフォートで、失敗してもエラーにはしない。
// 不正なリダイレクト先URLは保存せず、既存の値をそのまま残して保存を成功させる。
func (s *Service) Save(ctx context.Context, id int64, in SaveInput) (*model.Entity, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("エンティティの取得に失敗しました: %w", err)
	}
	if entity == nil {
		return nil, model.NewEntityNotFoundError(id)
	}

	if in.Title != nil {
		title := s.sanitizer.Sanitize(*in.Title)
		if title != entity.Title {
			if err := s.repo.UpdateTitle(ctx, id, title); err != nil {
				return nil, fmt.Errorf("タイトルの更新に失敗しました: %w", err)
			}
		}
	}

	s.enforceSlug(ctx, entity)

	if in.RedirectURL != nil && strings.TrimSpace(*in.RedirectURL) != "" {
		normalized, err := security.NormalizeRedirectURL(*in.RedirectURL)
		if err != nil {
			s.logger.InfoContext(ctx, "redirect URL rejected, keeping previous value",
				slog.Int64("entity_id", id),
				slog.String("reason", err.Error()),
			)
			s.recorder.RecordRedirectURLRejected()
		} else if normalized != entity.RedirectURL {
			if err := s.repo.SetRedirectURL(ctx, id, normalized); err != nil {
				return nil, fmt.Errorf("リダイレクト先URLの保存に失敗しました: %w", err)
			}
		}
	}

	saved, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("保存後のエンティティ取得に失敗しました: %w", err)
	}
	if saved == nil {
		return nil, model.NewEntityNotFoundError(id)
	}
	return saved, nil
}

// enforceSlug はスラッグが短縮コードと異なる場合に書き換える。
// 失敗はログとメトリクスに残すのみで、次回の保存か照合ジョブで再試行される。
func (s *Service) enforceSlug(ctx context.Context, entity *model.Entity) {
	want := shortcode.Encode(entity.ID)
	if entity.Slug == want {
		return
	}

	if err := s.repo.UpdateSlug(ctx, entity.ID, want); err != nil {
		s.logger.WarnContext(ctx, "slug correction failed",
			slog.Int64("entity_id", entity.ID),
			slog.String("slug", entity.Slug),
			slog.String("want", want),
			slog.String("error", err.Error()),
		)
		s.recorder.RecordSlugCorrectionFailure()
		return
	}
	s.recorder.RecordSlugCorrected()
}

// Create はエンティティを作成し、作成直後に保存処理を通す。
// 作成時は保持すべき既存値がないため、不正なURLはINVALID_URLエラーとして拒否する。
// 保存処理が失敗した場合は作成したエンティティを削除する。
func (s *Service) Create(ctx context.Context, title, redirectURL string) (*model.Entity, error) {
	var normalized string
	if strings.TrimSpace(redirectURL) != "" {
		u, err := security.NormalizeRedirectURL(redirectURL)
		if err != nil {
			return nil, model.NewInvalidURLError(err.Error())
		}
		normalized = u
	}

	entity := &model.Entity{Title: s.sanitizer.Sanitize(title)}
	if err := s.repo.Create(ctx, entity); err != nil {
		return nil, fmt.Errorf("エンティティの作成に失敗しました: %w", err)
	}

	s.logger.InfoContext(ctx, "short link created",
		slog.Int64("entity_id", entity.ID),
		slog.String("code", shortcode.Encode(entity.ID)),
	)

	saved, err := s.Save(ctx, entity.ID, SaveInput{RedirectURL: &normalized})
	if err != nil {
		// 作成途中のエンティティを残さない
		if delErr := s.repo.Delete(ctx, entity.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back short link",
				slog.Int64("entity_id", entity.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, err
	}
	return saved, nil
}

// Get は指定IDのエンティティを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Entity, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("エンティティの取得に失敗しました: %w", err)
	}
	if entity == nil {
		return nil, model.NewEntityNotFoundError(id)
	}
	return entity, nil
}

// GetByCode は短縮コードからエンティティを返す。
func (s *Service) GetByCode(ctx context.Context, code string) (*model.Entity, error) {
	id := shortcode.Decode(code)
	if id == 0 {
		return nil, model.NewInvalidIDError(code)
	}
	return s.Get(ctx, id)
}

// List はIDがafterIDより大きいエンティティをID昇順で返す。
// limitが0以下の場合はDefaultListLimitを用いる。
func (s *Service) List(ctx context.Context, afterID int64, limit int) ([]*model.Entity, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	entities, err := s.repo.List(ctx, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("エンティティ一覧の取得に失敗しました: %w", err)
	}
	return entities, nil
}

// Delete は指定IDのエンティティを削除する。リダイレクト先URLも合わせて削除される。
func (s *Service) Delete(ctx context.Context, id int64) error {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("エンティティの取得に失敗しました: %w", err)
	}
	if entity == nil {
		return model.NewEntityNotFoundError(id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("エンティティの削除に失敗しました: %w", err)
	}
	return nil
}

// ShortURL は共有用の短縮URLを返す。
func (s *Service) ShortURL(id int64) string {
	return s.opts.BaseURL + "/" + s.opts.Prefix + "/" + shortcode.Encode(id)
}

// Reconcile はスラッグのみを短縮コードに揃える。照合ジョブから呼ばれる。
// 書き換えた場合にtrueを返す。
func (s *Service) Reconcile(ctx context.Context, entity *model.Entity) (bool, error) {
	want := shortcode.Encode(entity.ID)
	if entity.Slug == want {
		return false, nil
	}

	if err := s.repo.UpdateSlug(ctx, entity.ID, want); err != nil {
		s.recorder.RecordSlugCorrectionFailure()
		return false, fmt.Errorf("スラッグの更新に失敗しました (id=%d): %w", entity.ID, err)
	}
	s.recorder.RecordSlugCorrected()
	return true, nil
}
