package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/shortlink/internal/model"
	"github.com/hitoshi/shortlink/internal/shortcode"
	"github.com/hitoshi/shortlink/internal/shortlink"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ShortlinkServiceInterface は短縮リンクハンドラーが必要とするサービスインターフェース。
type ShortlinkServiceInterface interface {
	// Create はエンティティを作成する。
	Create(ctx context.Context, title, redirectURL string) (*model.Entity, error)
	// Get は指定IDのエンティティを返す。
	Get(ctx context.Context, id int64) (*model.Entity, error)
	// GetByCode は短縮コードからエンティティを返す。
	GetByCode(ctx context.Context, code string) (*model.Entity, error)
	// List はIDがafterIDより大きいエンティティを返す。
	List(ctx context.Context, afterID int64, limit int) ([]*model.Entity, error)
	// Save はスラッグ補正とリダイレクト先URLの保存を行う。
	Save(ctx context.Context, id int64, in shortlink.SaveInput) (*model.Entity, error)
	// Delete は指定IDのエンティティを削除する。
	Delete(ctx context.Context, id int64) error
	// ShortURL は共有用の短縮URLを返す。
	ShortURL(id int64) string
}

// ShortlinkHandler は短縮リンク管理APIのHTTPハンドラー。
type ShortlinkHandler struct {
	service ShortlinkServiceInterface
}

// NewShortlinkHandler はShortlinkHandlerを生成する。
func NewShortlinkHandler(service ShortlinkServiceInterface) *ShortlinkHandler {
	return &ShortlinkHandler{service: service}
}

// createShortlinkRequest は作成リクエストのボディ。
type createShortlinkRequest struct {
	Title       string `json:"title"`
	RedirectURL string `json:"redirect_url"`
}

// updateShortlinkRequest は更新リクエストのボディ。省略したフィールドは変更しない。
type updateShortlinkRequest struct {
	Title       *string `json:"title"`
	RedirectURL *string `json:"redirect_url"`
}

// shortlinkResponse は短縮リンクのAPIレスポンス。
type shortlinkResponse struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	ShortURL      string     `json:"short_url"`
	RedirectURL   string     `json:"redirect_url"`
	LinkStatus    string     `json:"link_status"`
	LinkCheckedAt *time.Time `json:"link_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// shortlinkListResponse は一覧APIのレスポンス。
type shortlinkListResponse struct {
	Shortlinks []shortlinkResponse `json:"shortlinks"`
	NextAfter  int64               `json:"next_after,omitempty"`
	HasMore    bool                `json:"has_more"`
}

// List は短縮リンク一覧を返す。
// GET /admin/shortlinks?after=&limit=
func (h *ShortlinkHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var afterID int64
	if raw := q.Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(raw))
			return
		}
		afterID = v
	}

	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return
		}
		limit = min(v, maxListLimit)
	}

	// 1件多く取得して次ページの有無を判定する
	entities, err := h.service.List(r.Context(), afterID, limit+1)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := shortlinkListResponse{Shortlinks: make([]shortlinkResponse, 0, min(len(entities), limit))}
	if len(entities) > limit {
		entities = entities[:limit]
		resp.HasMore = true
	}
	for _, e := range entities {
		resp.Shortlinks = append(resp.Shortlinks, h.toResponse(e))
	}
	if resp.HasMore {
		resp.NextAfter = entities[len(entities)-1].ID
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create は短縮リンクを作成する。
// POST /admin/shortlinks
func (h *ShortlinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createShortlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	entity, err := h.service.Create(r.Context(), req.Title, req.RedirectURL)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/admin/shortlinks/"+strconv.FormatInt(entity.ID, 10))
	writeJSON(w, http.StatusCreated, h.toResponse(entity))
}

// Get は短縮リンクを返す。
// GET /admin/shortlinks/{id}
func (h *ShortlinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseIDParam(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	entity, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(entity))
}

// GetByCode は短縮コードから短縮リンクを返す。
// GET /admin/shortlinks/by-code/{code}
func (h *ShortlinkHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	entity, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(entity))
}

// Update はタイトルとリダイレクト先URLを保存する。
// 不正なURLは保存されず、既存の値のままレスポンスを返す。
// PUT /admin/shortlinks/{id}
func (h *ShortlinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseIDParam(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	var req updateShortlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	entity, err := h.service.Save(r.Context(), id, shortlink.SaveInput{
		Title:       req.Title,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(entity))
}

// Delete は短縮リンクを削除する。
// DELETE /admin/shortlinks/{id}
func (h *ShortlinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseIDParam(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ShortlinkHandler) toResponse(e *model.Entity) shortlinkResponse {
	return shortlinkResponse{
		ID:            e.ID,
		Code:          shortcode.Encode(e.ID),
		Title:         e.Title,
		Slug:          e.Slug,
		ShortURL:      h.service.ShortURL(e.ID),
		RedirectURL:   e.RedirectURL,
		LinkStatus:    string(e.LinkStatus),
		LinkCheckedAt: e.LinkCheckedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
