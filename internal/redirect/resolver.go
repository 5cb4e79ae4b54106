// Package redirect は短縮リンクのトークンからリダイレクト先を解決する。
//
// 解決結果はリダイレクトかパススルーのいずれかで、パススルーの場合は
// ホストの通常のルーティング（結果として404など）に処理を委ねる。
package redirect

import (
	"context"
	"log/slog"

	"github.com/hitoshi/shortlink/internal/metrics"
	"github.com/hitoshi/shortlink/internal/repository"
	"github.com/hitoshi/shortlink/internal/shortcode"
)

// Outcome は解決結果の種別。
type Outcome int

const (
	// PassThrough は何もせず通常の処理に委ねることを表す。
	PassThrough Outcome = iota
	// Redirect はURLへのリダイレクトを表す。
	Redirect
)

func (o Outcome) String() string {
	if o == Redirect {
		return "redirect"
	}
	return "pass_through"
}

// Result はトークン解決の結果。URLはOutcomeがRedirectの場合のみ設定される。
type Result struct {
	Outcome Outcome
	URL     string
}

// Recorder は解決結果を記録するインターフェース。
// metrics.Collectorの部分集合として定義する。
type Recorder interface {
	RecordRedirect()
	RecordPassThrough(reason string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRedirect()          {}
func (noopRecorder) RecordPassThrough(string) {}

// Resolver はトークンをリダイレクト先URLに解決する。
// 状態を持たないため、複数のリクエストから同時に利用できる。
type Resolver struct {
	lookup   repository.RedirectLookup
	recorder Recorder
	logger   *slog.Logger
}

// NewResolver は新しいResolverを生成する。recorderがnilの場合は記録しない。
func NewResolver(lookup repository.RedirectLookup, recorder Recorder, logger *slog.Logger) *Resolver {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		lookup:   lookup,
		recorder: recorder,
		logger:   logger,
	}
}

// Resolve はトークンを解決する。
//
// トークンが空、デコード結果が0、URL未設定のいずれかであればPassThroughを返す。
// ストアの参照に失敗した場合もWARNログを出力してPassThroughとする。
func (r *Resolver) Resolve(ctx context.Context, token string) Result {
	if token == "" {
		r.recorder.RecordPassThrough(metrics.ReasonNoToken)
		return Result{Outcome: PassThrough}
	}

	id := shortcode.Decode(token)
	if id == 0 {
		r.recorder.RecordPassThrough(metrics.ReasonNoID)
		return Result{Outcome: PassThrough}
	}

	url, err := r.lookup.LookupRedirectURL(ctx, id)
	if err != nil {
		r.logger.WarnContext(ctx, "redirect lookup failed",
			slog.String("token", shortcode.Sanitize(token)),
			slog.Int64("entity_id", id),
			slog.String("error", err.Error()),
		)
		r.recorder.RecordPassThrough(metrics.ReasonLookupError)
		return Result{Outcome: PassThrough}
	}
	if url == "" {
		r.recorder.RecordPassThrough(metrics.ReasonNoURL)
		return Result{Outcome: PassThrough}
	}

	r.recorder.RecordRedirect()
	return Result{Outcome: Redirect, URL: url}
}
