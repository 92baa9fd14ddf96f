package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newshub/internal/cache"
	"github.com/hitoshi/newshub/internal/metrics"
	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/task"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger
	DB     *sql.DB

	// ミドルウェア依存
	TokenParser       middleware.TokenParser
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Collector
	Registry          prometheus.Gatherer

	// サービス
	Pipeline            NewsPipelineInterface
	Profiles            ProfileProviderInterface
	ActivityService     ActivityServiceInterface
	AnalyticsService    AnalyticsServiceInterface
	AuthOrchestrator    AuthOrchestratorInterface
	SubscriptionService SubscriptionServiceInterface

	ResponseCache *cache.TTLCache
	TaskRunner    *task.Runner
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → SecurityHeaders → Logging → Auth(トークン注入) → RateLimit
//
// ニュース系エンドポイントは未認証でも利用可能なため、認証ミドルウェアは
// トークンの注入のみを行い、401は返さない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewAuthMiddleware(deps.TokenParser, deps.Logger))

	newsHandler := NewNewsHandler(deps.Pipeline, deps.Profiles, deps.ResponseCache, deps.TaskRunner, deps.Logger)
	activityHandler := NewActivityHandler(deps.ActivityService, deps.Metrics)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService, deps.Pipeline)
	authHandler := NewAuthHandler(deps.AuthOrchestrator, deps.Metrics)
	subHandler := NewSubscriptionHandler(deps.SubscriptionService)

	// 運用エンドポイント（レート制限の外）
	r.Get("/healthz", healthzHandler(deps.DB))
	r.Handle("/metrics", metrics.Handler(deps.Registry))

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ニュース取得（未認証でも利用可能）
		r.Route("/news", func(r chi.Router) {
			r.Post("/trending", newsHandler.Trending)
			r.Post("/personalized", newsHandler.Personalized)
			r.Post("/search", newsHandler.Search)
		})

		// 行動記録・参照
		r.Route("/user", func(r chi.Router) {
			r.Post("/activity", activityHandler.Record)
			r.Get("/likes", activityHandler.Likes)
			r.Get("/saved", activityHandler.Saved)
		})

		// 閲覧分析
		r.Get("/analytics/summary", analyticsHandler.Summary)
		r.Route("/ai", func(r chi.Router) {
			r.Get("/insights", analyticsHandler.Insights)
			r.Get("/daily-digest", analyticsHandler.DailyDigest)
			r.Post("/ask", analyticsHandler.Ask)
		})

		// OAuth認証（専用レート制限を追加）
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/auth/callback", authHandler.Callback)

		// 課金プラン
		r.Route("/subscription", func(r chi.Router) {
			r.Get("/", subHandler.Get)
			r.Post("/", subHandler.ChangePlan)
		})
	})

	return r
}

// healthzHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func healthzHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}
