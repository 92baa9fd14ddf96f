package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
)

// SubscriptionServiceInterface は購読ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	// Enabled は購読機能が有効かを返す。
	Enabled() bool
	// Get は購読状態を返す。未登録はfree/activeのデフォルト値。
	Get(ctx context.Context, userID string) (*model.Subscription, error)
	// ChangePlan はプランを変更する。
	ChangePlan(ctx context.Context, userID string, plan string) (*model.Subscription, error)
}

// SubscriptionHandler は課金プランのHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// subscriptionResponse は購読状態のレスポンス。
type subscriptionResponse struct {
	Success      bool                `json:"success"`
	Enabled      bool                `json:"enabled"`
	Subscription *model.Subscription `json:"subscription"`
}

// Get は購読状態を返す。
// GET /api/subscription?userId=
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, subscriptionResponse{
		Success:      true,
		Enabled:      h.service.Enabled(),
		Subscription: sub,
	})
}

// changePlanRequest はプラン変更リクエストのボディ。
type changePlanRequest struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}

// ChangePlan はプランを変更する。
// POST /api/subscription
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req changePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	sub, err := h.service.ChangePlan(r.Context(), req.UserID, req.Plan)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, subscriptionResponse{
		Success:      true,
		Enabled:      h.service.Enabled(),
		Subscription: sub,
	})
}
