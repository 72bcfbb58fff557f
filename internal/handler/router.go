package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/liuyao-cms/internal/middleware"
	"github.com/hitoshi/liuyao-cms/internal/screen"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	Guards      middleware.GuardLookup
	Session     middleware.SessionConfig
	CSRF        middleware.CSRFConfig
	RateLimiter *middleware.RateLimiter
	GuardWait   time.Duration

	// 描画
	Renderer Renderer
	Catalog  *screen.Catalog

	// サービス
	ScreenService  ScreenServiceInterface
	AccountService AccountServiceInterface
	SignIns        SignInRecorder

	// 運用
	Health  HealthChecker
	Metrics http.Handler
}

// NewRouter は全ページのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → ConsoleSession → CSRF
//	  保護ルート: → RequireAdmin → RateLimit(General)
//
// /health と /metrics はセッション・CSRFの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	pages := NewPages(deps.Renderer, deps.Catalog, deps.Session.CookieSecure)
	authHandler := NewAuthHandler(pages, deps.GuardWait, deps.SignIns)
	screenHandler := NewScreenHandler(pages, deps.Catalog, deps.ScreenService)
	userHandler := NewUserHandler(pages, deps.AccountService)
	healthHandler := NewHealthHandler(deps.Health)

	// --- 運用ルート ---
	r.Get("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewConsoleSessionMiddleware(deps.Guards, deps.Session))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// --- 認証不要のルート ---
		r.Get("/", authHandler.Root)
		r.Get(middleware.LoginPath, authHandler.LoginPage)
		r.With(deps.RateLimiter.LoginMiddleware()).Post(middleware.LoginPath, authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		// --- 管理者のみのルート ---
		// ミドルウェアスタック: RequireAdmin → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireAdminMiddleware(pages, deps.GuardWait))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// ユーザー管理
			r.Get("/users", userHandler.List)
			r.Post("/users/{id}/role", userHandler.UpdateRole)

			// 汎用CRUD画面
			r.Route("/{screen}", func(r chi.Router) {
				r.Get("/", screenHandler.List)
				r.Post("/", screenHandler.Create)
				r.Post("/{id}", screenHandler.Update)
				r.Post("/{id}/delete", screenHandler.Delete)
			})
		})
	})

	return r
}
