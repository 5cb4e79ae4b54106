package redirect

import (
	"log/slog"
	"net/http"
	"regexp"
)

// Middleware は /<prefix>/<token> 形式のGET/HEADリクエストを横取りするミドルウェアを返す。
// ルーターの先頭に登録する。
//
// 解決結果がRedirectの場合はstatusとLocationヘッダーを返して処理を終える。
// PassThroughの場合や形式に一致しないリクエストはnextに委ねる。
func (r *Resolver) Middleware(prefix string, status int) func(next http.Handler) http.Handler {
	pattern := regexp.MustCompile(`^/` + regexp.QuoteMeta(prefix) + `/([0-9a-zA-Z]+)/?$`)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				next.ServeHTTP(w, req)
				return
			}

			m := pattern.FindStringSubmatch(req.URL.Path)
			if m == nil {
				next.ServeHTTP(w, req)
				return
			}

			result := r.Resolve(req.Context(), m[1])
			if result.Outcome != Redirect {
				next.ServeHTTP(w, req)
				return
			}

			r.logger.DebugContext(req.Context(), "short link redirect",
				slog.String("token", m[1]),
				slog.String("location", result.URL),
			)
			w.Header().Set("Location", result.URL)
			w.WriteHeader(status)
		})
	}
}
