package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/newshub/internal/model"
)

// ErrorEnvelope はAPIエラーレスポンスの統一フォーマット。
// successは常にfalseで、errorにはエラーコードが入る。
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Action  string `json:"action,omitempty"`
}

// WriteJSON はJSONレスポンスを書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// WriteError は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteError(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, ErrorEnvelope{
		Success: false,
		Message: apiErr.Message,
		Error:   apiErr.Code,
		Action:  apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// StatusFromError はAPIErrorのカテゴリから適切なHTTPステータスコードを導出する。
func StatusFromError(apiErr *model.APIError) int {
	switch apiErr.Category {
	case "validation":
		return http.StatusBadRequest
	case "auth":
		return http.StatusInternalServerError
	case "persistence":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
