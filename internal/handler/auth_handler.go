package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/newshub/internal/auth"
	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
)

// AuthOrchestratorInterface は認証ハンドラーが必要とするインターフェース。
type AuthOrchestratorInterface interface {
	// Authenticate はOAuthコールバックを処理しセッショントークンを発行する。
	Authenticate(ctx context.Context, req auth.CallbackRequest) (*auth.AuthResult, error)
}

// AuthMetricsInterface は認証試行のメトリクス記録インターフェース。
type AuthMetricsInterface interface {
	RecordAuthAttempt(provider, result string)
}

// AuthHandler はOAuth認証のHTTPハンドラー。
type AuthHandler struct {
	orchestrator AuthOrchestratorInterface
	metrics      AuthMetricsInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(orchestrator AuthOrchestratorInterface, metrics AuthMetricsInterface) *AuthHandler {
	return &AuthHandler{
		orchestrator: orchestrator,
		metrics:      metrics,
	}
}

// callbackRequest はOAuthコールバックリクエストのボディ。
type callbackRequest struct {
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	Provider     string `json:"provider"`
	CodeVerifier string `json:"code_verifier"`
}

// callbackResponse はOAuthコールバックの成功レスポンス。
type callbackResponse struct {
	Success          bool        `json:"success"`
	AccessToken      string      `json:"access_token"`
	User             *model.User `json:"user"`
	IsNewUser        bool        `json:"isNewUser"`
	ProfileCompleted bool        `json:"profileCompleted"`
}

// Callback はOAuthコールバックを処理する。
// POST /api/auth/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	result, err := h.orchestrator.Authenticate(r.Context(), auth.CallbackRequest{
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		Provider:     req.Provider,
		CodeVerifier: req.CodeVerifier,
	})
	if err != nil {
		h.metrics.RecordAuthAttempt(req.Provider, "failure")
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthAttempt(req.Provider, "success")

	middleware.WriteJSON(w, http.StatusOK, callbackResponse{
		Success:          true,
		AccessToken:      result.AccessToken,
		User:             result.User,
		IsNewUser:        result.IsNewUser,
		ProfileCompleted: result.ProfileCompleted,
	})
}
