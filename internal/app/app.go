// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/newshub/internal/activity"
	"github.com/hitoshi/newshub/internal/aggregator"
	"github.com/hitoshi/newshub/internal/analytics"
	"github.com/hitoshi/newshub/internal/auth"
	"github.com/hitoshi/newshub/internal/cache"
	"github.com/hitoshi/newshub/internal/config"
	"github.com/hitoshi/newshub/internal/database"
	"github.com/hitoshi/newshub/internal/handler"
	"github.com/hitoshi/newshub/internal/logger"
	"github.com/hitoshi/newshub/internal/metrics"
	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/news"
	"github.com/hitoshi/newshub/internal/personalize"
	"github.com/hitoshi/newshub/internal/repository"
	"github.com/hitoshi/newshub/internal/subscription"
	"github.com/hitoshi/newshub/internal/task"
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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	activityRepo := repository.NewPostgresActivityRepo(db)
	subRepo := repository.NewPostgresSubscriptionRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. バックグラウンドタスクランナーの初期化
	runner := task.NewRunner(slog.Default(), 0, 0, 0)
	defer runner.Shutdown()

	// 5. ニュースパイプラインの組み立て
	fetcher := aggregator.NewService(
		cfg.NewsSources, cfg.SourceFetchTimeout,
		cfg.FetchMaxConcurrent, cfg.FetchMaxSize, slog.Default(),
	)
	scorer := personalize.NewScorer()
	pipeline := news.NewPipeline(
		fetcher, scorer, collector, slog.Default(),
		cfg.FetchDeadline, cfg.ScoreDeadline,
	)

	// 6. ドメインサービスの初期化
	activityService := activity.NewService(activityRepo, profileRepo, runner, slog.Default())
	analyticsService := analytics.NewService(activityRepo, slog.Default())
	subscriptionService := subscription.NewService(subRepo, cfg.SubscriptionEnabled, slog.Default())

	// 7. OAuth認証の初期化
	tokenIssuer := auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionMaxAge)
	orchestrator := auth.NewOrchestrator(
		[]auth.Provider{
			auth.NewGoogleProvider(auth.GoogleConfig{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
			}),
			auth.NewGitHubProvider(auth.GitHubConfig{
				ClientID:     cfg.GitHub.ClientID,
				ClientSecret: cfg.GitHub.ClientSecret,
			}),
			auth.NewTwitterProvider(auth.TwitterConfig{
				ClientID:     cfg.Twitter.ClientID,
				ClientSecret: cfg.Twitter.ClientSecret,
			}),
			auth.NewDiscordProvider(auth.DiscordConfig{
				ClientID:     cfg.Discord.ClientID,
				ClientSecret: cfg.Discord.ClientSecret,
			}),
		},
		userRepo, tokenIssuer, slog.Default(),
	)

	// 8. レスポンスキャッシュとレート制限の初期化
	responseCache := cache.NewTTLCache(cfg.CacheTTL)

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configの値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
	rateLimiterCfg.AuthBurst = cfg.RateLimitAuth
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 9. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger: slog.Default(),
		DB:     db,

		TokenParser:       tokenIssuer,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		Registry:          registry,

		Pipeline:            pipeline,
		Profiles:            activityService,
		ActivityService:     activityService,
		AnalyticsService:    analyticsService,
		AuthOrchestrator:    orchestrator,
		SubscriptionService: subscriptionService,

		ResponseCache: responseCache,
		TaskRunner:    runner,
	})

	// 10. HTTPサーバーの起動
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

	// 期限切れキャッシュの定期掃除
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweepLoop(sweepCtx, responseCache, cfg.CacheTTL)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// sweepLoop は期限切れキャッシュエントリを定期的に削除する。
func sweepLoop(ctx context.Context, c *cache.TTLCache, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				slog.Debug("expired cache entries removed", slog.Int("count", removed))
			}
		}
	}
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
