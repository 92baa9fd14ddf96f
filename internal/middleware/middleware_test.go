package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/newshub/internal/auth"
	"github.com/hitoshi/newshub/internal/model"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- 認証ミドルウェア ---

// 有効なトークンでユーザーIDがコンテキストに注入されることを検証
func TestAuthMiddleware_InjectsUserID(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", 30*time.Minute)
	token, err := issuer.Issue(&model.User{ID: "google:1", Provider: model.ProviderGoogle})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	var gotUserID string
	handler := NewAuthMiddleware(issuer, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/news/trending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotUserID != "google:1" {
		t.Errorf("userID = %q, want google:1", gotUserID)
	}
}

// トークンなしのリクエストが未認証のまま通過することを検証
func TestAuthMiddleware_NoToken_PassesThrough(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", 30*time.Minute)

	called := false
	handler := NewAuthMiddleware(issuer, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, err := UserIDFromContext(r.Context()); err == nil {
			t.Error("未認証リクエストにユーザーIDが注入されました")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("ハンドラーが呼ばれていません")
	}
}

// 不正なトークンが未認証として扱われることを検証
func TestAuthMiddleware_InvalidToken_TreatedAsAnonymous(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", 30*time.Minute)

	called := false
	handler := NewAuthMiddleware(issuer, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("ハンドラーが呼ばれていません")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// RequireAuthが未認証リクエストに401を返すことを検証
func TestRequireAuth(t *testing.T) {
	handler := RequireAuth()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "google:1"))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("認証済み: status = %d, want 200", rec.Code)
	}
}

// --- エラーレスポンス ---

// エラーエンベロープの形式を検証
func TestWriteError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, model.NewValidationError("user_idは必須です"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Success {
		t.Error("success = true, want false")
	}
	if body.Error != model.ErrCodeValidation {
		t.Errorf("error = %q", body.Error)
	}
	if body.Message == "" {
		t.Error("messageが空です")
	}
}

// カテゴリからのステータスコード導出を検証
func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewValidationError("x"), http.StatusBadRequest},
		{model.NewInvalidPlanError("gold"), http.StatusBadRequest},
		{model.NewAuthProviderError("google", "x"), http.StatusInternalServerError},
		{model.NewPersistenceError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFromError(tt.err); got != tt.want {
			t.Errorf("StatusFromError(%s) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

// --- CORS ---

// ワイルドカードオリジンとプリフライト応答を検証
func TestCORSMiddleware(t *testing.T) {
	handler := NewCORSMiddleware("*")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	// ワイルドカード時はcredentialsを許可しない
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q, want empty", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

// --- レート制限 ---

// バースト超過で429が返ることを検証
func TestRateLimiter_General(t *testing.T) {
	config := RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    2,
		AuthRate:        rate.Limit(1),
		AuthBurst:       1,
		CleanupInterval: time.Minute,
	}
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーがありません")
	}
}

// クライアントごとに独立したリミッターが使われることを検証
func TestRateLimiter_PerClient(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralBurst = 1
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req1)

	// 別クライアントは制限されない
	rec := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(rec, req2)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.GeneralLimiterCount())
	}
}

// 認証済みリクエストがユーザーIDをキーにすることを検証
func TestRateLimiter_AuthenticatedKey(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralBurst = 1
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// 同一ユーザーが異なるIPからアクセス
	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		req = req.WithContext(ContextWithUserID(req.Context(), "google:1"))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("limiter count = %d, want 1（ユーザーIDで集約されるべき）", rl.GeneralLimiterCount())
	}
}

// --- リカバリー ---

// panicが500の統一エンベロープに変換されることを検証
func TestRecoveryMiddleware(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Success {
		t.Error("success = true, want false")
	}
}

// --- ロギング ---

// ステータスコードがオブザーバーに通知されることを検証
type stubObserver struct {
	status int
	path   string
}

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	s.status = status
	s.path = path
}

func TestLoggingMiddleware_NotifiesObserver(t *testing.T) {
	observer := &stubObserver{}
	handler := NewLoggingMiddleware(testLogger(), observer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if observer.status != http.StatusNotFound {
		t.Errorf("observed status = %d, want 404", observer.status)
	}
	if observer.path != "/missing" {
		t.Errorf("observed path = %q", observer.path)
	}
}
