package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newshub/internal/auth"
	"github.com/hitoshi/newshub/internal/cache"
	"github.com/hitoshi/newshub/internal/metrics"
	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/task"
)

func testRouter(t *testing.T, pipeline *mockPipeline) http.Handler {
	t.Helper()

	logger := testLogger()
	registry := prometheus.NewRegistry()
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)
	runner := task.NewRunner(logger, 1, 16, time.Second)
	t.Cleanup(runner.Shutdown)

	return NewRouter(&RouterDeps{
		Logger:              logger,
		TokenParser:         auth.NewTokenIssuer("test-secret", time.Minute),
		CORSAllowedOrigin:   "*",
		RateLimiter:         limiter,
		Metrics:             metrics.NewCollector(registry),
		Registry:            registry,
		Pipeline:            pipeline,
		Profiles:            &mockProfiles{},
		ActivityService:     &mockActivityService{},
		AnalyticsService:    &mockAnalyticsService{},
		AuthOrchestrator:    &mockOrchestrator{result: &auth.AuthResult{User: &model.User{ID: "google:1"}}},
		SubscriptionService: &mockSubscriptionService{sub: model.DefaultSubscription("google:1")},
		ResponseCache:       cache.NewTTLCache(time.Minute),
		TaskRunner:          runner,
	})
}

// 全ルートが配線されていることを検証
func TestRouter_Routes(t *testing.T) {
	pipeline := &mockPipeline{articles: []model.Article{realArticle("a1")}}
	router := testRouter(t, pipeline)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/api/news/trending", `{"limit":10}`, http.StatusOK},
		{http.MethodPost, "/api/news/personalized", `{"limit":10}`, http.StatusOK},
		{http.MethodPost, "/api/news/search", `{"query":"golang"}`, http.StatusOK},
		{http.MethodPost, "/api/user/activity", `{"user_id":"u","type":"read"}`, http.StatusOK},
		{http.MethodGet, "/api/user/likes?userId=u", "", http.StatusOK},
		{http.MethodGet, "/api/user/saved?userId=u", "", http.StatusOK},
		{http.MethodGet, "/api/analytics/summary?userId=u", "", http.StatusOK},
		{http.MethodGet, "/api/ai/insights?userId=u", "", http.StatusOK},
		{http.MethodGet, "/api/ai/daily-digest", "", http.StatusOK},
		{http.MethodPost, "/api/ai/ask", `{"userId":"u","question":"q"}`, http.StatusOK},
		{http.MethodPost, "/api/auth/callback", `{"code":"c","provider":"google"}`, http.StatusOK},
		{http.MethodGet, "/api/subscription?userId=u", "", http.StatusOK},
		{http.MethodPost, "/api/subscription", `{"user_id":"u","plan":"free"}`, http.StatusOK},
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var body *strings.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			} else {
				body = strings.NewReader("")
			}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, body)
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

// 未定義ルートが404になることを検証
func TestRouter_NotFound(t *testing.T) {
	router := testRouter(t, &mockPipeline{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// CORSプリフライトがミドルウェアで処理されることを検証
func TestRouter_Preflight(t *testing.T) {
	router := testRouter(t, &mockPipeline{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/news/trending", nil)
	req.Header.Set("Origin", "https://app.example.com")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Originが設定されていません")
	}
}

// 認証トークンなしでもニュース取得できることを検証
func TestRouter_NewsWithoutToken(t *testing.T) {
	pipeline := &mockPipeline{articles: []model.Article{realArticle("a1")}}
	router := testRouter(t, pipeline)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/news/trending", strings.NewReader(`{"limit":5}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
