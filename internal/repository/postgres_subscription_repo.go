package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// Get は指定ユーザーの購読状態を返す。
// レコードが存在しない場合はfree/activeのデフォルト値を返す（エラーではない）。
func (r *PostgresSubscriptionRepo) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, plan, status, stripe_customer_id, stripe_subscription_id,
		        current_period_end, updated_at
		 FROM subscriptions WHERE user_id = $1`,
		userID,
	).Scan(
		&sub.UserID, &sub.Plan, &sub.Status, &sub.StripeCustomerID,
		&sub.StripeSubscriptionID, &sub.CurrentPeriodEnd, &sub.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return model.DefaultSubscription(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	return sub, nil
}

// Upsert は購読状態をUPSERTする。
// 競合時はplan/statusを無条件に上書きし、課金識別子とcurrent_period_endは
// COALESCEで新しい非null値が与えられない限り既存値を保持する。
// プランのみの更新が外部課金システムの発行した識別子を消さないための規律。
func (r *PostgresSubscriptionRepo) Upsert(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, plan, status, stripe_customer_id, stripe_subscription_id, current_period_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		     plan = EXCLUDED.plan,
		     status = EXCLUDED.status,
		     stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscriptions.stripe_customer_id),
		     stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
		     current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
		     updated_at = EXCLUDED.updated_at`,
		sub.UserID, sub.Plan, sub.Status, sub.StripeCustomerID,
		sub.StripeSubscriptionID, sub.CurrentPeriodEnd, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
