// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"errors"
	"net/http"

	"github.com/hitoshi/newshub/internal/middleware"
	"github.com/hitoshi/newshub/internal/model"
)

// handleServiceError はサービス層のエラーを統一エラーフォーマットで書き込む。
// APIError以外のエラーは詳細を隠した500として扱う。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteError(w, middleware.StatusFromError(apiErr), apiErr)
		return
	}
	middleware.WriteInternalServerError(w)
}
