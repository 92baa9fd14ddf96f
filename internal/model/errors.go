// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, persistence, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeAuthProvider   = "AUTH_PROVIDER_ERROR"
	ErrCodeUnsupportedIdP = "UNSUPPORTED_PROVIDER"
	ErrCodePersistence    = "PERSISTENCE_ERROR"
	ErrCodeInvalidPlan    = "INVALID_PLAN"
)

// NewValidationError は必須フィールド欠落などの入力検証エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("リクエストが不正です: %s", detail),
		Category: "validation",
		Action:   "必須フィールドを指定して再度リクエストしてください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewAuthProviderError はトークン交換またはユーザー情報取得の失敗エラーを生成する。
// プロバイダー名と上流ステータスを含め、認証試行全体を中断させる。
func NewAuthProviderError(provider string, detail string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthProvider,
		Message:  fmt.Sprintf("%s認証に失敗しました: %s", provider, detail),
		Category: "auth",
		Action:   "再度ログインをお試しください。",
	}
}

// NewUnsupportedProviderError は未対応プロバイダー指定のエラーを生成する。
func NewUnsupportedProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedIdP,
		Message:  fmt.Sprintf("未対応の認証プロバイダーです: %s", provider),
		Category: "validation",
		Action:   "google、github、twitter、discordのいずれかを指定してください。",
	}
}

// NewPersistenceError はストアの読み書き失敗エラーを生成する。
// 内部詳細はログのみに記録し、ルート境界を越えて伝播させない。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "データの保存または取得に失敗しました。",
		Category: "persistence",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidPlanError は許可リスト外のプラン指定エラーを生成する。
func NewInvalidPlanError(plan string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlan,
		Message:  fmt.Sprintf("無効なプランです: %s", plan),
		Category: "validation",
		Action:   "プランにはfreeまたはproを指定してください。",
	}
}
