// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/moriyama/contestgate/internal/backend"
	"github.com/moriyama/contestgate/internal/config"
	"github.com/moriyama/contestgate/internal/database"
	"github.com/moriyama/contestgate/internal/export"
	"github.com/moriyama/contestgate/internal/guard"
	"github.com/moriyama/contestgate/internal/handler"
	"github.com/moriyama/contestgate/internal/logger"
	"github.com/moriyama/contestgate/internal/metrics"
	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/notify"
	"github.com/moriyama/contestgate/internal/repository"
	"github.com/moriyama/contestgate/internal/resource"
	"github.com/moriyama/contestgate/internal/security"
	"github.com/moriyama/contestgate/internal/session"
	"github.com/moriyama/contestgate/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
		slog.String("backend_base_url", cfg.BackendBaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はゲートウェイサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. 送信側の検証とHTTPクライアント構築
	outboundGuard := security.NewOutboundGuard(cfg.AllowPrivateBackend)
	if err := outboundGuard.ValidateBaseURL(cfg.BackendBaseURL); err != nil {
		return fmt.Errorf("invalid backend base URL: %w", err)
	}
	httpClient, err := outboundGuard.NewBackendClient(cfg.BackendTimeout)
	if err != nil {
		return fmt.Errorf("failed to build backend client: %w", err)
	}

	// 2. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 3. セッションリポジトリと通知ハブ
	sessionRepo := repository.NewPostgresSessionRepo(db)
	hub := notify.NewHub(slog.Default())

	// 4. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. セッションマネージャとバックエンドクライアント
	// 両者は実行時に相互参照するため、セッター注入で解決する。
	sessionManager := session.NewManager(
		sessionRepo, hub, slog.Default(),
		time.Duration(cfg.SessionMaxAge)*time.Second,
	)
	backendClient := backend.NewClient(
		httpClient, slog.Default(),
		sessionManager, sessionManager, hub, collector,
		backend.ClientConfig{
			BaseURL:          cfg.BackendBaseURL,
			RefreshThreshold: cfg.RefreshThreshold,
		},
	)
	sessionManager.SetClient(backendClient)
	sessionManager.SetMetrics(collector)

	// 6. リソースラッパーとエクスポート
	competitionService := resource.NewCompetitionService(backendClient)
	teamService := resource.NewTeamService(backendClient)
	registrationService := resource.NewRegistrationService(backendClient)
	scoreService := resource.NewScoreService(backendClient)
	adminUserService := resource.NewAdminUserService(backendClient)
	categoryService := resource.NewCategoryService(backendClient)
	exportService := export.NewService(backendClient)

	// 7. ルートガードとレート制限
	routeGuard := guard.New(nil, sessionManager, hub, slog.Default())
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	// 8. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:       slog.Default(),
		SessionStore: sessionManager,
		SessionCookie: middleware.SessionCookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Recovery:          middleware.NewRecoveryMiddleware(hub),

		Guard: routeGuard,
		Pages: newPagesHandler(cfg.StaticDir),

		Metrics: metrics.Handler(registry),

		AuthService:         sessionManager,
		CompetitionService:  competitionService,
		TeamService:         teamService,
		RegistrationService: registrationService,
		ScoreService:        scoreService,
		AdminUserService:    adminUserService,
		CategoryService:     categoryService,
		ExportService:       exportService,
		Notices:             hub,
	}

	router := handler.NewRouter(deps)

	// 9. バックグラウンドのセッションクリーンアップ
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewJob(sessionRepo, slog.Default(), collector)
	cleanupJob.Interval = cfg.SessionCleanupInterval
	go cleanupJob.Start(ctx)

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("gateway server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down gateway server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("gateway server stopped gracefully")
	return nil
}

// rateLimiterConfig はConfigの req/min 単位の設定を rate.Limit に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitLogin > 0 {
		rlCfg.LoginRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
		rlCfg.LoginBurst = cfg.RateLimitLogin
	}
	return rlCfg
}

// newPagesHandler はSPAの静的ファイル配信ハンドラーを返す。
// 存在しないパスはindex.htmlにフォールバックする（履歴APIルーティング対応）。
// staticDirが空の場合はプレースホルダー応答を返す。
func newPagesHandler(staticDir string) http.Handler {
	if staticDir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<!DOCTYPE html><html><body>contestgate</body></html>")
		})
	}

	fileServer := http.FileServer(http.Dir(staticDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
	})
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
