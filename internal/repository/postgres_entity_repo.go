package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/shortlink/internal/model"
)

// selectEntityColumns はエンティティとメタデータをまとめて取得するSELECT句。
// $1〜$3 にはメタキー（redirect_url, link_status, link_checked_at）を渡す。
const selectEntityColumns = `
	SELECT e.id, e.title, e.slug, e.created_at, e.updated_at,
	       ru.meta_value, ls.meta_value, lc.meta_value
	FROM entities e
	LEFT JOIN entity_meta ru ON ru.entity_id = e.id AND ru.meta_key = $1
	LEFT JOIN entity_meta ls ON ls.entity_id = e.id AND ls.meta_key = $2
	LEFT JOIN entity_meta lc ON lc.entity_id = e.id AND lc.meta_key = $3`

// upsertMetaSQL はentity_metaの1キーを冪等に書き込む。
const upsertMetaSQL = `
	INSERT INTO entity_meta (entity_id, meta_key, meta_value, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (entity_id, meta_key)
	DO UPDATE SET meta_value = EXCLUDED.meta_value, updated_at = EXCLUDED.updated_at`

// PostgresEntityRepo はPostgreSQLを使用したエンティティリポジトリ。
type PostgresEntityRepo struct {
	db *sql.DB
}

// NewPostgresEntityRepo はPostgresEntityRepoを生成する。
func NewPostgresEntityRepo(db *sql.DB) *PostgresEntityRepo {
	return &PostgresEntityRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntity はselectEntityColumnsの1行をmodel.Entityに変換する。
func scanEntity(row rowScanner) (*model.Entity, error) {
	e := &model.Entity{}
	var redirectURL, linkStatus, linkCheckedAt sql.NullString

	if err := row.Scan(
		&e.ID, &e.Title, &e.Slug, &e.CreatedAt, &e.UpdatedAt,
		&redirectURL, &linkStatus, &linkCheckedAt,
	); err != nil {
		return nil, err
	}

	e.RedirectURL = nullStringValue(redirectURL)
	e.LinkStatus = model.LinkStatus(nullStringValue(linkStatus))
	if linkCheckedAt.Valid {
		if ts, err := time.Parse(time.RFC3339, linkCheckedAt.String); err == nil {
			e.LinkCheckedAt = &ts
		}
	}

	return e, nil
}

// FindByID は指定IDのエンティティをメタデータ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresEntityRepo) FindByID(ctx context.Context, id int64) (*model.Entity, error) {
	row := r.db.QueryRowContext(ctx,
		selectEntityColumns+` WHERE e.id = $4`,
		model.MetaKeyRedirectURL, model.MetaKeyLinkStatus, model.MetaKeyLinkCheckedAt, id,
	)

	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エンティティの取得に失敗しました: %w", err)
	}
	return e, nil
}

// LookupRedirectURL は指定IDに紐づくリダイレクト先URLを返す。
// リダイレクトのたびに呼ばれるため、entity_metaの主キーのみを参照する。
func (r *PostgresEntityRepo) LookupRedirectURL(ctx context.Context, id int64) (string, error) {
	var url string
	err := r.db.QueryRowContext(ctx,
		`SELECT meta_value FROM entity_meta WHERE entity_id = $1 AND meta_key = $2`,
		id, model.MetaKeyRedirectURL,
	).Scan(&url)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("リダイレクト先URLの取得に失敗しました: %w", err)
	}
	return url, nil
}

// GetRedirectURL は保存されているリダイレクト先URLを返す。未設定の場合は空文字列を返す。
func (r *PostgresEntityRepo) GetRedirectURL(ctx context.Context, id int64) (string, error) {
	return r.LookupRedirectURL(ctx, id)
}

// Create はエンティティを作成し、採番されたIDとタイムスタンプをentityに設定する。
func (r *PostgresEntityRepo) Create(ctx context.Context, entity *model.Entity) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO entities (title, slug) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		entity.Title, entity.Slug,
	).Scan(&entity.ID, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("エンティティの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateTitle はエンティティのタイトルを更新する。
func (r *PostgresEntityRepo) UpdateTitle(ctx context.Context, id int64, title string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entities SET title = $2, updated_at = now() WHERE id = $1`,
		id, title,
	)
	if err != nil {
		return fmt.Errorf("タイトルの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateSlug はエンティティのスラッグを更新する。
func (r *PostgresEntityRepo) UpdateSlug(ctx context.Context, id int64, slug string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entities SET slug = $2, updated_at = now() WHERE id = $1`,
		id, slug,
	)
	if err != nil {
		return fmt.Errorf("スラッグの更新に失敗しました: %w", err)
	}
	return nil
}

// SetRedirectURL はリダイレクト先URLを保存する。既存の値は上書きされる。
func (r *PostgresEntityRepo) SetRedirectURL(ctx context.Context, id int64, url string) error {
	if _, err := r.db.ExecContext(ctx, upsertMetaSQL, id, model.MetaKeyRedirectURL, url); err != nil {
		return fmt.Errorf("リダイレクト先URLの保存に失敗しました: %w", err)
	}
	return nil
}

// SetLinkStatus はリダイレクト先URLの到達性チェック結果を同一トランザクションで保存する。
func (r *PostgresEntityRepo) SetLinkStatus(ctx context.Context, id int64, status model.LinkStatus, checkedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertMetaSQL, id, model.MetaKeyLinkStatus, string(status)); err != nil {
		return fmt.Errorf("リンク状態の保存に失敗しました: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertMetaSQL, id, model.MetaKeyLinkCheckedAt, checkedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("リンクチェック日時の保存に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// List はIDがafterIDより大きいエンティティをID昇順で最大limit件返す。
func (r *PostgresEntityRepo) List(ctx context.Context, afterID int64, limit int) ([]*model.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		selectEntityColumns+` WHERE e.id > $4 ORDER BY e.id ASC LIMIT $5`,
		model.MetaKeyRedirectURL, model.MetaKeyLinkStatus, model.MetaKeyLinkCheckedAt, afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("エンティティ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("エンティティのスキャンに失敗しました: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エンティティ一覧の読み取りに失敗しました: %w", err)
	}

	return entities, nil
}

// Delete は指定IDのエンティティを削除する。メタデータはCASCADE削除される。
func (r *PostgresEntityRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("エンティティの削除に失敗しました: %w", err)
	}
	return nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
