package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/shortlink/internal/config"
	"github.com/hitoshi/shortlink/internal/database"
	"github.com/hitoshi/shortlink/internal/handler"
	"github.com/hitoshi/shortlink/internal/logger"
	"github.com/hitoshi/shortlink/internal/metrics"
	"github.com/hitoshi/shortlink/internal/middleware"
	"github.com/hitoshi/shortlink/internal/redirect"
	"github.com/hitoshi/shortlink/internal/repository"
	"github.com/hitoshi/shortlink/internal/security"
	"github.com/hitoshi/shortlink/internal/shortlink"
	"github.com/hitoshi/shortlink/internal/worker/linkcheck"
	"github.com/hitoshi/shortlink/internal/worker/reconcile"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("shortlink_prefix", cfg.ShortlinkPrefix),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandReconcile:
		return runReconcile(cfg)
	default:
		return runServe(cfg)
	}
}

// newRegistry はアプリケーションのメトリクスとランタイムメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリとメトリクスの初期化
	entityRepo := repository.NewPostgresEntityRepo(db)
	registry, collector := newRegistry()

	// 3. ドメインサービスの初期化
	resolver := redirect.NewResolver(entityRepo, collector, slog.Default())
	shortlinkService := shortlink.NewService(
		entityRepo,
		security.NewTitleSanitizer(),
		collector,
		shortlink.Options{BaseURL: cfg.BaseURL, Prefix: cfg.ShortlinkPrefix},
		slog.Default(),
	)

	// 4. ルーターの構築
	deps := &handler.RouterDeps{
		Logger: slog.Default(),

		Resolver:        resolver,
		ShortlinkPrefix: cfg.ShortlinkPrefix,
		RedirectStatus:  cfg.RedirectStatus,

		AdminToken:         cfg.AdminToken,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		ShortlinkService: shortlinkService,

		HealthChecker:   db,
		MetricsGatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := newHTTPServer(cfg.ServerPort, router)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// スラッグ整合ジョブとリンクチェックスケジューラを起動し、
// 運用用に /health と /metrics だけを公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリとメトリクスの初期化
	entityRepo := repository.NewPostgresEntityRepo(db)
	registry, collector := newRegistry()

	// 3. スラッグ整合ジョブの初期化
	shortlinkService := shortlink.NewService(
		entityRepo,
		security.NewTitleSanitizer(),
		collector,
		shortlink.Options{BaseURL: cfg.BaseURL, Prefix: cfg.ShortlinkPrefix},
		slog.Default(),
	)
	reconcileJob := reconcile.NewJob(entityRepo, shortlinkService, slog.Default(), cfg.ReconcileBatchSize)

	// 4. リンクチェックの初期化（SSRF対策済みクライアントを使用）
	ssrfGuard := security.NewSSRFGuard()
	checker := linkcheck.NewChecker(ssrfGuard.NewLinkCheckClient(cfg.LinkCheckTimeout), ssrfGuard)
	scheduler := linkcheck.NewScheduler(
		entityRepo, checker, collector, slog.Default(), cfg.LinkCheckMaxConcurrent,
	)

	// 5. 運用エンドポイントの起動
	opsRouter := chi.NewRouter()
	opsRouter.Get("/health", handler.NewHealthHandler(db))
	opsRouter.Handle("/metrics", metrics.Handler(registry))
	opsServer := newHTTPServer(cfg.ServerPort, opsRouter)

	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker ops server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
		slog.Duration("linkcheck_interval", cfg.LinkCheckInterval),
		slog.Int("linkcheck_max_concurrent", cfg.LinkCheckMaxConcurrent),
	)

	// スラッグ整合ジョブをバックグラウンドで起動
	done := make(chan struct{})
	go func() {
		defer close(done)
		reconcileJob.Start(ctx, cfg.ReconcileInterval)
	}()

	// リンクチェックをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.LinkCheckInterval)
	<-done

	slog.Info("shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker ops server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runReconcile はスラッグ整合ジョブを1回だけ実行して終了する。
// タイトル変更後の一括修復やcronからの起動を想定している。
func runReconcile(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	entityRepo := repository.NewPostgresEntityRepo(db)
	service := shortlink.NewService(
		entityRepo,
		security.NewTitleSanitizer(),
		nil,
		shortlink.Options{BaseURL: cfg.BaseURL, Prefix: cfg.ShortlinkPrefix},
		slog.Default(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := reconcile.NewJob(entityRepo, service, slog.Default(), cfg.ReconcileBatchSize).Run(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("reconcile finished with %d failures", result.Failed)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func newHTTPServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
