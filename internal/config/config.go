package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string

	// Shortlink
	ShortlinkPrefix string
	RedirectStatus  int

	// Admin
	AdminToken string

	// Logging
	LogLevel slog.Level

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigins []string

	// Reconcile
	ReconcileInterval  time.Duration
	ReconcileBatchSize int

	// Link check
	LinkCheckInterval      time.Duration
	LinkCheckTimeout       time.Duration
	LinkCheckMaxConcurrent int
}

// allowedRedirectStatuses はREDIRECT_STATUSに指定できるステータスコード。
var allowedRedirectStatuses = []int{
	http.StatusMovedPermanently,
	http.StatusFound,
	http.StatusTemporaryRedirect,
	http.StatusPermanentRedirect,
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if cfg.AdminToken == "" {
		missing = append(missing, "ADMIN_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BASE_URL must be an absolute URL: %q", cfg.BaseURL)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ShortlinkPrefix = strings.Trim(getEnvString("SHORTLINK_PREFIX", "go"), "/")
	cfg.RedirectStatus = getEnvInt("REDIRECT_STATUS", http.StatusFound)
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS")
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", time.Hour)
	cfg.ReconcileBatchSize = getEnvInt("RECONCILE_BATCH_SIZE", 500)
	cfg.LinkCheckInterval = getEnvDuration("LINKCHECK_INTERVAL", 6*time.Hour)
	cfg.LinkCheckTimeout = getEnvDuration("LINKCHECK_TIMEOUT", 10*time.Second)
	cfg.LinkCheckMaxConcurrent = getEnvInt("LINKCHECK_MAX_CONCURRENT", 5)

	if !isAllowedRedirectStatus(cfg.RedirectStatus) {
		return nil, fmt.Errorf("REDIRECT_STATUS must be one of %v, got %d", allowedRedirectStatuses, cfg.RedirectStatus)
	}
	if cfg.ShortlinkPrefix == "" {
		return nil, fmt.Errorf("SHORTLINK_PREFIX must not be empty")
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"RECONCILE_INTERVAL", cfg.ReconcileInterval},
		{"LINKCHECK_INTERVAL", cfg.LinkCheckInterval},
		{"LINKCHECK_TIMEOUT", cfg.LinkCheckTimeout},
	} {
		if d.val <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %v", d.key, d.val)
		}
	}

	return cfg, nil
}

func isAllowedRedirectStatus(code int) bool {
	for _, allowed := range allowedRedirectStatuses {
		if code == allowed {
			return true
		}
	}
	return false
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvLevel はdebug/info/warn/errorをslog.Levelに変換する。
// 解釈できない値はデフォルトにフォールバックする。
func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}

// getEnvList はカンマ区切りの値を空要素を除いたスライスとして返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
