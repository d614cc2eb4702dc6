package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/artizone/internal/auth"
	"github.com/hitoshi/artizone/internal/catalog"
	"github.com/hitoshi/artizone/internal/config"
	"github.com/hitoshi/artizone/internal/database"
	"github.com/hitoshi/artizone/internal/handler"
	"github.com/hitoshi/artizone/internal/identity"
	"github.com/hitoshi/artizone/internal/logger"
	"github.com/hitoshi/artizone/internal/metrics"
	"github.com/hitoshi/artizone/internal/middleware"
	"github.com/hitoshi/artizone/internal/repository"
	"github.com/hitoshi/artizone/internal/security"
	"github.com/hitoshi/artizone/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
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
			port = "5000"
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
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("firebase_project_id", cfg.FirebaseProjectID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// stores はストレージバックエンドごとのリポジトリ群。
type stores struct {
	clients  repository.ClientStorage
	sessions repository.SessionRepository
	// purger はプロセス内で期限切れセッションを削除する必要がある場合のみ設定する。
	purger cleanup.SessionPurger
	db     *sql.DB
	close  func() error
}

// openStores はSTORAGE_BACKENDに応じてリポジトリを初期化する。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(ctx, db, 5*time.Second); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return &stores{
			clients:  repository.NewPostgresClientStorage(db),
			sessions: repository.NewPostgresSessionRepo(db),
			db:       db,
			close:    db.Close,
		}, nil

	case config.BackendRedis:
		client, err := repository.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		ttl := time.Duration(cfg.ClientIDMaxAge) * time.Second
		return &stores{
			clients:  repository.NewRedisClientStorage(client, ttl),
			sessions: repository.NewRedisSessionRepo(client),
			close:    client.Close,
		}, nil

	default:
		sessions := repository.NewMemorySessionRepo()
		slog.Warn("using in-memory storage; favorites and sessions are lost on restart")
		return &stores{
			clients:  repository.NewMemoryClientStorage(),
			sessions: sessions,
			purger:   sessions,
			close:    func() error { return nil },
		}, nil
	}
}

// newRouter は設定とリポジトリから全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 戻り値のstop関数でバックグラウンド処理を停止する。
func newRouter(cfg *config.Config, st *stores) (http.Handler, func(), error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. セキュリティサービスの初期化
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewDescriptionSanitizer()

	// 3. IDプラットフォーム
	idClient, err := identity.NewClient(identity.Config{
		APIKey: cfg.FirebaseAPIKey,
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize identity platform: %w", err)
	}

	var google *auth.GoogleOAuthProvider
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		})
	} else {
		slog.Info("google sign-in is disabled")
	}

	authService := auth.NewService(
		idClient, st.sessions, collector, slog.Default(),
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 4. カタログ
	catalogClient := &http.Client{Timeout: cfg.CatalogTimeout}
	if cfg.CatalogRestrictNetwork {
		catalogClient = urlGuard.NewSafeClient(cfg.CatalogTimeout)
	}
	httpSource := catalog.NewHTTPSource(catalogClient, sanitizer, slog.Default(), catalog.HTTPSourceConfig{
		BaseURL: cfg.CatalogBaseURL,
		MaxSize: cfg.CatalogMaxSize,
	})
	source := catalog.NewBackoffSource(httpSource, cfg.CatalogBackoffInitial, cfg.CatalogBackoffMax, slog.Default())

	// 5. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	cookies := middleware.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	}

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Recorder:          collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Cookies:           cookies,
		ClientIDMaxAge:    cfg.ClientIDMaxAge,
		RateLimiter:       rateLimiter,

		MetricsHandler: metrics.Handler(registry),
		StaticDir:      cfg.StaticDir,

		Sessions: authService,
		Google:   google,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			Cookies:       cookies,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		URLValidator: urlGuard,

		Storefront: handler.NewStorefront(source, st.clients, collector, slog.Default()),
	}

	return handler.NewRouter(deps), rateLimiter.Stop, nil
}

// runServe はAPIサーバーモードで起動する。
// ストレージを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	router, stopRouter, err := newRouter(cfg, st)
	if err != nil {
		return err
	}
	defer stopRouter()

	// memoryバックエンドはworkerと共有できないため、プロセス内で削除ジョブを実行する
	if st.purger != nil {
		job := cleanup.NewPurgeJob(st.purger, nil, slog.Default(), 0)
		go job.Start(ctx, cfg.SessionCleanupInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションと古いクライアントストレージを定期的に削除する。
// redisはTTLで失効し、memoryはプロセス間で共有できないため、postgresバックエンドのみ対応する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.StorageBackend != config.BackendPostgres {
		return fmt.Errorf("worker requires STORAGE_BACKEND=%s, got %q", config.BackendPostgres, cfg.StorageBackend)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	purger, ok := st.sessions.(cleanup.SessionPurger)
	if !ok {
		return fmt.Errorf("session repository does not support purging")
	}

	job := cleanup.NewPurgeJob(
		purger, st.db, slog.Default(),
		time.Duration(cfg.ClientIDMaxAge)*time.Second,
	)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// ctxがキャンセルされるまでブロックする
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
