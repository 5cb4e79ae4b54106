package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shortlink/internal/metrics"
	"github.com/hitoshi/shortlink/internal/middleware"
	"github.com/hitoshi/shortlink/internal/redirect"
)

// ShortlinkService は管理APIと編集フォームの両方が必要とするサービスインターフェース。
type ShortlinkService interface {
	ShortlinkServiceInterface
	FormServiceInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// 短縮リンクのリダイレクト
	Resolver        *redirect.Resolver
	ShortlinkPrefix string
	RedirectStatus  int

	// 管理API
	AdminToken         string
	CORSAllowedOrigins []string
	CSRFConfig         middleware.CSRFConfig
	ShortlinkService   ShortlinkService

	// 運用
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → 短縮リンク → SecurityHeaders
//
// 短縮リンクのミドルウェアは他のルーティングより先に /<prefix>/<token> を処理し、
// 解決できなかったリクエストだけを通常のルーティング（404）に流す。
// 管理ルート（/admin/*）にはさらに CORS → AdminAuth → CSRF を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Resolver != nil {
		r.Use(deps.Resolver.Middleware(deps.ShortlinkPrefix, deps.RedirectStatus))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{
		HSTS: deps.CSRFConfig.CookieSecure,
	}))

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 管理ルート ---
	// ミドルウェアスタック: CORS → AdminAuth → CSRF
	if deps.ShortlinkService != nil {
		shortlinkHandler := NewShortlinkHandler(deps.ShortlinkService)
		formHandler := NewFormHandler(deps.ShortlinkService)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
			r.Use(middleware.NewAdminAuthMiddleware(deps.AdminToken))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

			r.Route("/shortlinks", func(r chi.Router) {
				r.Get("/", shortlinkHandler.List)
				r.Post("/", shortlinkHandler.Create)
				r.Get("/by-code/{code}", shortlinkHandler.GetByCode)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", shortlinkHandler.Get)
					r.Put("/", shortlinkHandler.Update)
					r.Delete("/", shortlinkHandler.Delete)

					r.Get("/edit", formHandler.EditForm)
					r.Post("/edit", formHandler.SubmitForm)
				})
			})
		})
	}

	return r
}
