// Package model はドメインモデルを定義する。
package model

import "time"

// Plan は課金プランの種別を表す。
type Plan string

const (
	// PlanFree は無料プラン。
	PlanFree Plan = "free"
	// PlanPro は有料プラン。
	PlanPro Plan = "pro"
)

// IsValid はプラン種別が許可リストに含まれるかを返す。
func (p Plan) IsValid() bool {
	return p == PlanFree || p == PlanPro
}

// Subscription はユーザーの課金プラン状態を表す。
// user_idが主キーで、書き込み経路はUPSERTのみ。
// 外部課金システムが発行する識別子はnull許容で、
// UPSERT時に新しい非null値が与えられない限り既存値を保持する。
type Subscription struct {
	UserID               string     `json:"user_id"`
	Plan                 Plan       `json:"plan"`
	Status               string     `json:"status"`
	StripeCustomerID     *string    `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// DefaultSubscription はレコード未作成ユーザーのデフォルト購読状態を返す。
// レコードの不在はエラーではなく、free/activeとして扱う。
func DefaultSubscription(userID string) *Subscription {
	return &Subscription{
		UserID: userID,
		Plan:   PlanFree,
		Status: "active",
	}
}
