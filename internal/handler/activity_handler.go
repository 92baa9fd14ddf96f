package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
)

// ActivityServiceInterface は行動記録ハンドラーが必要とするサービスインターフェース。
type ActivityServiceInterface interface {
	// Record は行動イベントを検証して台帳に追記する。
	Record(ctx context.Context, event *model.ActivityEvent) error
	// Likes はlikeイベントの最新200件を返す。
	Likes(ctx context.Context, userID string) ([]*model.ActivityEvent, error)
	// Saved はbookmarkイベントの最新200件を返す。
	Saved(ctx context.Context, userID string) ([]*model.ActivityEvent, error)
}

// ActivityMetricsInterface は行動イベントのメトリクス記録インターフェース。
type ActivityMetricsInterface interface {
	RecordActivity(eventType string)
}

// ActivityHandler は行動記録のHTTPハンドラー。
type ActivityHandler struct {
	service ActivityServiceInterface
	metrics ActivityMetricsInterface
}

// NewActivityHandler はActivityHandlerを生成する。
func NewActivityHandler(service ActivityServiceInterface, metrics ActivityMetricsInterface) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		metrics: metrics,
	}
}

// activityRequest は行動記録リクエストのボディ。
type activityRequest struct {
	UserID        string                 `json:"user_id"`
	Type          string                 `json:"type"`
	ArticleID     string                 `json:"article_id"`
	ArticleTitle  string                 `json:"article_title"`
	ArticleSource string                 `json:"article_source"`
	DurationMs    int64                  `json:"duration_ms"`
	Metadata      model.ActivityMetadata `json:"metadata"`
}

// Record は行動イベントを記録する。
// POST /api/user/activity
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	event := &model.ActivityEvent{
		UserID:        req.UserID,
		Type:          model.ActivityType(req.Type),
		ArticleID:     req.ArticleID,
		ArticleTitle:  req.ArticleTitle,
		ArticleSource: req.ArticleSource,
		DurationMs:    req.DurationMs,
		Metadata:      req.Metadata,
	}

	if err := h.service.Record(r.Context(), event); err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordActivity(req.Type)

	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// activityListResponse は行動一覧のレスポンス。
type activityListResponse struct {
	Success    bool                   `json:"success"`
	Items      []*model.ActivityEvent `json:"items"`
	TotalCount int                    `json:"total_count"`
}

// Likes はlikeした記事の一覧を返す。
// GET /api/user/likes?userId=
func (h *ActivityHandler) Likes(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Likes(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeActivityList(w, events)
}

// Saved は保存した記事の一覧を返す。
// GET /api/user/saved?userId=
func (h *ActivityHandler) Saved(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Saved(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeActivityList(w, events)
}

func writeActivityList(w http.ResponseWriter, events []*model.ActivityEvent) {
	if events == nil {
		events = []*model.ActivityEvent{}
	}
	middleware.WriteJSON(w, http.StatusOK, activityListResponse{
		Success:    true,
		Items:      events,
		TotalCount: len(events),
	})
}
