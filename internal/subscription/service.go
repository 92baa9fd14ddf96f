// Package subscription は課金プランの参照・変更ロジックを提供する。
// 機能全体が単一のフラグで制御され、無効時は常にfree/activeの
// 固定レスポンスに短絡する。
package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/repository"
)

// Service は課金プランのサービス層。
type Service struct {
	subRepo repository.SubscriptionRepository
	enabled bool
	logger  *slog.Logger
}

// NewService はServiceを生成する。
// enabledがfalseの場合、全操作がデフォルトの無効レスポンスに短絡する。
func NewService(subRepo repository.SubscriptionRepository, enabled bool, logger *slog.Logger) *Service {
	return &Service{
		subRepo: subRepo,
		enabled: enabled,
		logger:  logger,
	}
}

// Enabled は購読機能が有効かを返す。
func (s *Service) Enabled() bool {
	return s.enabled
}

// Get は指定ユーザーの購読状態を返す。
// 機能無効時およびレコード未登録時はfree/activeのデフォルト値を返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	if userID == "" {
		return nil, model.NewValidationError("userIdは必須です")
	}
	if !s.enabled {
		return model.DefaultSubscription(userID), nil
	}

	sub, err := s.subRepo.Get(ctx, userID)
	if err != nil {
		s.logger.Error("購読状態の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError()
	}
	return sub, nil
}

// ChangePlan はユーザーのプランを変更する。
// プランは許可リスト（free/pro）に限定され、課金識別子は
// 非null値が与えられない限り既存値が保持される。
func (s *Service) ChangePlan(ctx context.Context, userID string, plan string) (*model.Subscription, error) {
	if userID == "" {
		return nil, model.NewValidationError("user_idは必須です")
	}
	if !s.enabled {
		return model.DefaultSubscription(userID), nil
	}

	p := model.Plan(plan)
	if !p.IsValid() {
		return nil, model.NewInvalidPlanError(plan)
	}

	sub := &model.Subscription{
		UserID:    userID,
		Plan:      p,
		Status:    "active",
		UpdatedAt: time.Now(),
	}

	if err := s.subRepo.Upsert(ctx, sub); err != nil {
		s.logger.Error("購読状態の更新に失敗しました",
			slog.String("user_id", userID),
			slog.String("plan", plan),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError()
	}

	s.logger.Info("プランを変更しました",
		slog.String("user_id", userID),
		slog.String("plan", plan),
	)

	return s.Get(ctx, userID)
}
