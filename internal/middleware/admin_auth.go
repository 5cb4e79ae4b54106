// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/shortlink/internal/model"
)

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// adminContextKey はリクエストが管理者として認証済みであることを示すキー。
var adminContextKey = contextKey("admin")

// NewAdminAuthMiddleware はAuthorizationヘッダーのBearerトークンを
// 設定済みの管理トークンと照合するミドルウェアを返す。
// 不一致・未指定のリクエストには401 Unauthorizedを返し、後続の処理は一切行わない。
func NewAdminAuthMiddleware(adminToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || adminToken == "" ||
				subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
				slog.Warn("admin authentication failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsAdmin はリクエストコンテキストが管理者認証済みかどうかを返す。
func IsAdmin(ctx context.Context) bool {
	v, ok := ctx.Value(adminContextKey).(bool)
	return ok && v
}

// ContextWithAdmin はコンテキストに管理者認証済みの印を付ける。
// テストで使用する。
func ContextWithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminContextKey, true)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(bearerPrefix):])
	return token, token != ""
}
