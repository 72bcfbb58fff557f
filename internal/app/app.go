package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/liuyao-cms/internal/accounts"
	"github.com/hitoshi/liuyao-cms/internal/config"
	"github.com/hitoshi/liuyao-cms/internal/console"
	"github.com/hitoshi/liuyao-cms/internal/database"
	"github.com/hitoshi/liuyao-cms/internal/guard"
	"github.com/hitoshi/liuyao-cms/internal/handler"
	"github.com/hitoshi/liuyao-cms/internal/identity"
	"github.com/hitoshi/liuyao-cms/internal/logger"
	"github.com/hitoshi/liuyao-cms/internal/metrics"
	"github.com/hitoshi/liuyao-cms/internal/middleware"
	"github.com/hitoshi/liuyao-cms/internal/repository"
	"github.com/hitoshi/liuyao-cms/internal/screen"
	"github.com/hitoshi/liuyao-cms/internal/security"
	"github.com/hitoshi/liuyao-cms/internal/view"
)

// guardIdleTTL はアクセスのないガードを破棄するまでの時間。
// セッション自体はストレージに残るため、次のアクセスで復元される。
const guardIdleTTL = 30 * time.Minute

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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe は管理コンソールのサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.Connect(connectCtx, cfg.DatabaseURL)
	cancelConnect()
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. セッションストレージ
	storage, closeStorage, err := openSessionStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 認証とロール解決
	profiles := repository.NewPostgresProfileRepo(db)
	idp := identity.NewGoTrue(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.HTTPClientTimeout)
	resolver := guard.NewRoleResolver(profiles, collector)

	factory := console.NewGuardFactory(idp, storage, resolver, guard.Options{
		RefreshInterval: cfg.GuardRefreshInterval,
		ResolveTimeout:  cfg.HTTPClientTimeout,
	})
	guards := console.NewRegistry(cfg.GuardRegistrySize, guardIdleTTL, factory, collector)
	defer guards.Close()

	// 5. 画面サービス
	catalog := screen.DefaultCatalog()
	screenService := screen.NewService(
		repository.NewPostgresRowStore(db),
		security.NewContentSanitizer(),
		collector,
	)
	accountService := accounts.NewService(
		accounts.NewFunctionsClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.HTTPClientTimeout),
		profiles,
	)

	// 6. 描画
	renderer, err := view.New()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	// 7. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger: slog.Default(),
		Guards: func(sid string) middleware.Guard { return guards.Get(sid) },
		Session: middleware.SessionConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.SessionTTL(),
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		GuardWait:   cfg.GuardResolveWait,

		Renderer: renderer,
		Catalog:  catalog,

		ScreenService:  screenService,
		AccountService: accountService,
		SignIns:        collector,

		Health:  db,
		Metrics: metrics.Handler(registry),
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("console server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down console server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("console server stopped gracefully")
	return nil
}

// openSessionStorage はIdPセッションの保存先を開く。
// REDIS_URLが未設定の場合はプロセス内メモリに保存する（再起動でセッションは失われる）。
func openSessionStorage(cfg *config.Config) (identity.SessionStorage, func(), error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL is not set, sessions are kept in memory")
		return identity.NewMemoryStorage(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", opts.Addr))
	return identity.NewRedisStorage(client, cfg.SessionTTL()), func() { client.Close() }, nil
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
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
