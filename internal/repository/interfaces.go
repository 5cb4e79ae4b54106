// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/shortlink/internal/model"
)

// RedirectLookup はリダイレクト解決に必要な読み取り専用インターフェース。
type RedirectLookup interface {
	// LookupRedirectURL は指定IDに紐づくリダイレクト先URLを返す。
	// エンティティまたはURLが存在しない場合は空文字列を返す。
	LookupRedirectURL(ctx context.Context, id int64) (string, error)
}

// EntityRepository は短縮リンクを保持するエンティティの永続化インターフェース。
type EntityRepository interface {
	RedirectLookup

	// FindByID は指定IDのエンティティをメタデータ付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Entity, error)

	// Create はエンティティを作成し、採番されたIDとタイムスタンプをentityに設定する。
	Create(ctx context.Context, entity *model.Entity) error

	// UpdateTitle はエンティティのタイトルを更新する。
	UpdateTitle(ctx context.Context, id int64, title string) error

	// UpdateSlug はエンティティのスラッグを更新する。
	UpdateSlug(ctx context.Context, id int64, slug string) error

	// GetRedirectURL は保存されているリダイレクト先URLを返す。未設定の場合は空文字列を返す。
	GetRedirectURL(ctx context.Context, id int64) (string, error)

	// SetRedirectURL はリダイレクト先URLを保存する。既存の値は上書きされる。
	SetRedirectURL(ctx context.Context, id int64, url string) error

	// SetLinkStatus はリダイレクト先URLの到達性チェック結果を保存する。
	SetLinkStatus(ctx context.Context, id int64, status model.LinkStatus, checkedAt time.Time) error

	// List はIDがafterIDより大きいエンティティをID昇順で最大limit件返す。
	List(ctx context.Context, afterID int64, limit int) ([]*model.Entity, error)

	// Delete は指定IDのエンティティを削除する。メタデータはCASCADE削除される。
	Delete(ctx context.Context, id int64) error
}
