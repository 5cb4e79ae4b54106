package handler

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/shortlink/internal/middleware"
	"github.com/hitoshi/shortlink/internal/model"
	"github.com/hitoshi/shortlink/internal/shortlink"
)

// redirectURLField は編集フォームのリダイレクト先URL入力欄の名前。
const redirectURLField = "_redirect_url"

// FormServiceInterface は編集フォームが必要とするサービスインターフェース。
type FormServiceInterface interface {
	Get(ctx context.Context, id int64) (*model.Entity, error)
	Save(ctx context.Context, id int64, in shortlink.SaveInput) (*model.Entity, error)
	ShortURL(id int64) string
}

var editFormTemplate = template.Must(template.New("edit").Parse(`<form class="shortlink-edit" method="post" action="{{.Action}}">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<label for="title">Title</label>
<input type="text" id="title" name="title" value="{{.Title}}">
<label for="_redirect_url">URL to redirect to</label>
<input type="url" id="_redirect_url" class="widefat" name="_redirect_url" value="{{.RedirectURL}}" placeholder="https://example.com/2015/04/15/17-top-example-urls-you-gotta-try-number-8">
<p class="shortlink">Short Link: <a href="{{.ShortURL}}">{{.ShortURL}}</a></p>
<button type="submit">Save</button>
</form>
`))

// editFormData はテンプレートに渡す値。
type editFormData struct {
	Action      string
	CSRFToken   string
	Title       string
	RedirectURL string
	ShortURL    string
}

// FormHandler は短縮リンクの編集フォームのHTTPハンドラー。
type FormHandler struct {
	service FormServiceInterface
}

// NewFormHandler はFormHandlerを生成する。
func NewFormHandler(service FormServiceInterface) *FormHandler {
	return &FormHandler{service: service}
}

// EditForm は保存済みの値を埋めた編集フォームのHTML断片を返す。
// GET /admin/shortlinks/{id}/edit
func (h *FormHandler) EditForm(w http.ResponseWriter, r *http.Request) {
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

	data := editFormData{
		Action:      editFormPath(id),
		CSRFToken:   middleware.CSRFTokenFromContext(r.Context()),
		Title:       entity.Title,
		RedirectURL: entity.RedirectURL,
		ShortURL:    h.service.ShortURL(id),
	}

	var buf bytes.Buffer
	if err := editFormTemplate.Execute(&buf, data); err != nil {
		slog.ErrorContext(r.Context(), "failed to render edit form",
			slog.Int64("entity_id", id),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// SubmitForm はフォーム送信を保存し、編集フォームへ303でリダイレクトする。
// CSRFトークンの検証はミドルウェアで済んでいる。
// POST /admin/shortlinks/{id}/edit
func (h *FormHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseIDParam(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := r.ParseForm(); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	var in shortlink.SaveInput
	if values, ok := r.PostForm[redirectURLField]; ok && len(values) > 0 {
		in.RedirectURL = &values[0]
	}
	// 空のタイトルは未入力として扱い、保存済みの値を残す
	if title := r.PostForm.Get("title"); strings.TrimSpace(title) != "" {
		in.Title = &title
	}

	if _, err := h.service.Save(r.Context(), id, in); err != nil {
		handleServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, editFormPath(id), http.StatusSeeOther)
}

func editFormPath(id int64) string {
	return "/admin/shortlinks/" + strconv.FormatInt(id, 10) + "/edit"
}
