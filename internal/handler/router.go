package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/artizone/internal/auth"
	"github.com/hitoshi/artizone/internal/metrics"
	"github.com/hitoshi/artizone/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder

	// ミドルウェア依存
	CORSAllowedOrigin string
	Cookies           middleware.CookieConfig
	ClientIDMaxAge    int
	RateLimiter       *middleware.RateLimiter

	// 公開エンドポイント
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
	StaticDir      string       // /data/ で配信するディレクトリ。空の場合は配信しない

	// 認証
	Sessions     SessionService
	Google       *auth.GoogleOAuthProvider
	AuthConfig   AuthHandlerConfig
	URLValidator URLValidator

	// カタログ・お気に入り
	Storefront StorefrontFactory
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → ClientID → [Session] → Logging → RateLimit(General) → CSRF
//
// CORSはプリフライトに応答するためルーティング前に適用する。
// Sessionは /auth と /api/users/me のみに適用する。
// /health、/metrics、/data/* はClientID以降のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.StaticDir != "" {
		r.Handle("/data/*", http.StripPrefix("/data/", http.FileServer(http.Dir(deps.StaticDir))))
	}

	authHandler := NewAuthHandler(deps.Sessions, deps.Google, deps.AuthConfig)
	userHandler := NewUserHandler(deps.Sessions, deps.URLValidator)
	productHandler := NewProductHandler(deps.Storefront)
	favoritesHandler := NewFavoritesHandler(deps.Storefront)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientIDMiddleware(deps.ClientIDMaxAge, deps.Cookies))

		// カタログとお気に入りはclient_idのみで動作し、ログインセッションを解決しない
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewLoggingMiddleware(logger, deps.Recorder))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.Cookies).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NewCSRFMiddleware(deps.Cookies))

				r.Route("/api/products", func(r chi.Router) {
					r.Get("/", productHandler.ListProducts)
					r.Get("/{id}", productHandler.GetProduct)
				})

				r.Route("/api/favorites", func(r chi.Router) {
					r.Get("/", favoritesHandler.ListFavorites)
					r.Get("/{id}", favoritesHandler.GetFavorite)
					r.Post("/{id}/toggle", favoritesHandler.ToggleFavorite)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Sessions, deps.Cookies))
			r.Use(middleware.NewLoggingMiddleware(logger, deps.Recorder))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewCSRFMiddleware(deps.Cookies))

			r.Route("/auth", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(deps.RateLimiter.AuthAttemptMiddleware())
					r.Post("/signup", authHandler.SignUp)
					r.Post("/signin", authHandler.SignIn)
					r.Post("/password-reset", authHandler.PasswordReset)
				})

				r.Get("/google/login", authHandler.GoogleLogin)
				r.Get("/google/callback", authHandler.GoogleCallback)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})

			r.Route("/api/users/me", func(r chi.Router) {
				r.Get("/profile", userHandler.GetProfile)
				r.Patch("/profile", userHandler.UpdateProfile)
				r.Post("/verification", userHandler.ResendVerification)
			})
		})
	})

	return r
}

// Health はヘルスチェックに応答する。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
