package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/newshub/internal/cache"
	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/task"
)

// NewsPipelineInterface はニュースハンドラーが必要とするパイプラインインターフェース。
type NewsPipelineInterface interface {
	// FetchNews は1件以上limit件以下の記事を必ず返す。
	FetchNews(ctx context.Context, limit int, opts model.NewsOptions) []model.Article
	// FetchPersonalized は記事集合と集約関連度スコアを返す。
	FetchPersonalized(ctx context.Context, limit int, opts model.NewsOptions) ([]model.Article, float64)
	// Search は部分一致検索を行う。空クエリは空結果に短絡する。
	Search(ctx context.Context, query string, limit int, timeFilter string) []model.Article
}

// ProfileProviderInterface はパーソナライズ用プロファイルの取得インターフェース。
type ProfileProviderInterface interface {
	Profile(ctx context.Context, userID string) (*model.UserProfile, error)
}

// NewsHandler はニュース取得のHTTPハンドラー。
// ニュース系エンドポイントはパイプライン全滅時もエラーステータスを返さず、
// 200とwarningフィールドで縮退を通知する。
type NewsHandler struct {
	pipeline NewsPipelineInterface
	profiles ProfileProviderInterface
	cache    *cache.TTLCache
	runner   *task.Runner
	logger   *slog.Logger
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(
	pipeline NewsPipelineInterface,
	profiles ProfileProviderInterface,
	responseCache *cache.TTLCache,
	runner *task.Runner,
	logger *slog.Logger,
) *NewsHandler {
	return &NewsHandler{
		pipeline: pipeline,
		profiles: profiles,
		cache:    responseCache,
		runner:   runner,
		logger:   logger,
	}
}

// --- リクエスト・レスポンス型 ---

// newsRequest はニュース取得リクエストのボディ。
type newsRequest struct {
	Limit          int              `json:"limit"`
	TimeFilter     string           `json:"timeFilter"`
	CategoryFilter string           `json:"categoryFilter"`
	SortBy         string           `json:"sortBy"`
	Query          string           `json:"query"`
	UserID         string           `json:"userId"`
	UserProfile    *newsUserProfile `json:"user_profile"`
}

// newsUserProfile はリクエストにインラインで渡されるプロファイル。
type newsUserProfile struct {
	Interests      []string `json:"interests"`
	ReadingHistory []string `json:"reading_history"`
}

// newsResponse はニュース取得レスポンス。
type newsResponse struct {
	Articles           []model.Article `json:"articles"`
	TotalCount         int             `json:"total_count"`
	LastUpdated        time.Time       `json:"last_updated"`
	Type               string          `json:"type"`
	Warning            string          `json:"warning,omitempty"`
	UserRelevanceScore *float64        `json:"user_relevance_score,omitempty"`
}

const fallbackWarning = "上流ソースから記事を取得できなかったため、代替記事を表示しています。"

// Trending はトレンドニュースを取得する。
// POST /api/news/trending
func (h *NewsHandler) Trending(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNewsRequest(w, r)
	if !ok {
		return
	}

	key := fmt.Sprintf("trending:%d:%s:%s:%s", req.Limit, req.TimeFilter, req.CategoryFilter, req.SortBy)
	if cached, hit := h.cache.Get(key); hit {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	}

	articles := h.pipeline.FetchNews(r.Context(), req.Limit, model.NewsOptions{
		Category:   req.CategoryFilter,
		TimeFilter: req.TimeFilter,
		SortBy:     req.SortBy,
	})

	resp := newsResponse{
		Articles:    articles,
		TotalCount:  len(articles),
		LastUpdated: time.Now(),
		Type:        "trending",
		Warning:     warningFor(articles),
	}

	h.writeAndCache(w, key, resp)
}

// Personalized はパーソナライズされたニュースを取得する。
// POST /api/news/personalized
func (h *NewsHandler) Personalized(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNewsRequest(w, r)
	if !ok {
		return
	}

	profile := h.resolveProfile(r.Context(), req)

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "relevance"
	}

	articles, score := h.pipeline.FetchPersonalized(r.Context(), req.Limit, model.NewsOptions{
		Category:   req.CategoryFilter,
		TimeFilter: req.TimeFilter,
		SortBy:     sortBy,
		Profile:    profile,
	})

	resp := newsResponse{
		Articles:           articles,
		TotalCount:         len(articles),
		LastUpdated:        time.Now(),
		Type:               "personalized",
		Warning:            warningFor(articles),
		UserRelevanceScore: &score,
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Search はニュース検索を行う。
// POST /api/news/search
func (h *NewsHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNewsRequest(w, r)
	if !ok {
		return
	}

	articles := h.pipeline.Search(r.Context(), req.Query, req.Limit, req.TimeFilter)

	middleware.WriteJSON(w, http.StatusOK, newsResponse{
		Articles:    articles,
		TotalCount:  len(articles),
		LastUpdated: time.Now(),
		Type:        "search",
	})
}

// resolveProfile はリクエストからプロファイルを解決する。
// インラインのuser_profileを優先し、なければuserIdでストアから取得する。
// 取得失敗はパーソナライズなしに縮退する（エラーにはしない）。
func (h *NewsHandler) resolveProfile(ctx context.Context, req *newsRequest) *model.UserProfile {
	if req.UserProfile != nil {
		return &model.UserProfile{
			UserID:         req.UserID,
			Interests:      req.UserProfile.Interests,
			ReadingHistory: req.UserProfile.ReadingHistory,
		}
	}
	if req.UserID == "" {
		return nil
	}

	profile, err := h.profiles.Profile(ctx, req.UserID)
	if err != nil {
		h.logger.Warn("プロファイルの取得に失敗したためパーソナライズなしで続行します",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return profile
}

// writeAndCache はレスポンスを書き込み、キャッシュ投入をバックグラウンドに委ねる。
// キャッシュ投入の失敗は送信済みレスポンスに影響しない。
func (h *NewsHandler) writeAndCache(w http.ResponseWriter, key string, resp newsResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("レスポンスのシリアライズに失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)

	h.runner.Enqueue(task.Task{
		Name: "cache_populate",
		Run: func(ctx context.Context) error {
			h.cache.Set(key, body)
			return nil
		},
	})
}

// decodeNewsRequest はニュース系リクエストのボディを解析する。
// ボディなしはデフォルト値で続行する。
func decodeNewsRequest(w http.ResponseWriter, r *http.Request) (*newsRequest, bool) {
	var req newsRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			middleware.WriteError(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return nil, false
		}
	}
	return &req, true
}

// warningFor は結果が全件フォールバックの場合にwarning文を返す。
func warningFor(articles []model.Article) string {
	if len(articles) == 0 {
		return ""
	}
	for _, a := range articles {
		if !a.IsFallback {
			return ""
		}
	}
	return fallbackWarning
}
