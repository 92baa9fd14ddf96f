package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/newshub/internal/analytics"
	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
)

// AnalyticsServiceInterface は分析ハンドラーが必要とするサービスインターフェース。
type AnalyticsServiceInterface interface {
	// Summarize は閲覧サマリーを集計する。
	Summarize(ctx context.Context, userID string) (*analytics.Summary, error)
	// Insights はサマリーから最大5文の示唆を導出する。
	Insights(ctx context.Context, userID string) ([]string, error)
	// Ask は質問に集計値から回答する。
	Ask(ctx context.Context, userID, question string) (*analytics.Answer, error)
}

// AnalyticsHandler は閲覧分析のHTTPハンドラー。
type AnalyticsHandler struct {
	service  AnalyticsServiceInterface
	pipeline NewsPipelineInterface
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsServiceInterface, pipeline NewsPipelineInterface) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:  service,
		pipeline: pipeline,
	}
}

// Summary は閲覧サマリーを返す。
// GET /api/analytics/summary?userId=
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.NewValidationError("userIdは必須です"))
		return
	}

	summary, err := h.service.Summarize(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// insightsResponse は示唆レスポンス。
type insightsResponse struct {
	Success  bool     `json:"success"`
	Insights []string `json:"insights"`
}

// Insights は閲覧傾向からの示唆を返す。
// GET /api/ai/insights?userId=
func (h *AnalyticsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.NewValidationError("userIdは必須です"))
		return
	}

	insights, err := h.service.Insights(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, insightsResponse{
		Success:  true,
		Insights: insights,
	})
}

// DailyDigest は当日のトレンド記事からダイジェストを返す。
// GET /api/ai/daily-digest
func (h *AnalyticsHandler) DailyDigest(w http.ResponseWriter, r *http.Request) {
	articles := h.pipeline.FetchNews(r.Context(), 5, model.NewsOptions{TimeFilter: "24h"})

	digest := analytics.BuildDigest(time.Now().Format("2006-01-02"), articles)
	middleware.WriteJSON(w, http.StatusOK, digest)
}

// askRequest は質問リクエストのボディ。
type askRequest struct {
	UserID   string `json:"userId"`
	Question string `json:"question"`
}

// Ask は閲覧履歴に関する質問に回答する。
// POST /api/ai/ask
func (h *AnalyticsHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.NewValidationError("userIdは必須です"))
		return
	}
	if req.Question == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.NewValidationError("questionは必須です"))
		return
	}

	answer, err := h.service.Ask(r.Context(), req.UserID, req.Question)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, answer)
}
