// Package model はドメインモデルを定義する。
package model

import "time"

// Entity は短縮リンクを保持するホスト側のレコードを表す。
// IDはストアが採番し、以後変更されない。
type Entity struct {
	ID            int64
	Title         string
	Slug          string
	RedirectURL   string
	LinkStatus    LinkStatus
	LinkCheckedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LinkStatus はリダイレクト先URLの到達性チェック結果を表す。
type LinkStatus string

const (
	// LinkStatusUnknown は未チェック状態。
	LinkStatusUnknown LinkStatus = ""
	// LinkStatusOK は2xx/3xxが返った状態。
	LinkStatusOK LinkStatus = "ok"
	// LinkStatusBroken は4xx/5xxが返った状態。
	LinkStatusBroken LinkStatus = "broken"
	// LinkStatusUnreachable は接続できなかった、またはSSRFガードでブロックされた状態。
	LinkStatusUnreachable LinkStatus = "unreachable"
)

// Meta keys stored in entity_meta.
const (
	MetaKeyRedirectURL   = "redirect_url"
	MetaKeyLinkStatus    = "link_status"
	MetaKeyLinkCheckedAt = "link_checked_at"
)
