// Package activity は行動イベントの記録と台帳からの参照を提供する。
// 台帳は追記専用で、プロファイル更新はレスポンス送信後の
// バックグラウンドタスクとして非同期に行われる。
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/repository"
	"github.com/hitoshi/newshub/internal/task"
)

const (
	materializedListLimit = 200
	readingHistoryLimit   = 50
	interestsLimit        = 30
)

// Service は行動イベントの記録・参照サービス。
type Service struct {
	activityRepo repository.ActivityRepository
	profileRepo  repository.ProfileRepository
	runner       *task.Runner
	logger       *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	activityRepo repository.ActivityRepository,
	profileRepo repository.ProfileRepository,
	runner *task.Runner,
	logger *slog.Logger,
) *Service {
	return &Service{
		activityRepo: activityRepo,
		profileRepo:  profileRepo,
		runner:       runner,
		logger:       logger,
	}
}

// Record は行動イベントを検証して台帳に追記する。
// 記録成功後、プロファイル更新をfire-and-forgetで投入する。
// プロファイル更新の失敗はログ記録のみで、このメソッドの結果には影響しない。
func (s *Service) Record(ctx context.Context, event *model.ActivityEvent) error {
	if event.UserID == "" {
		return model.NewValidationError("user_idは必須です")
	}
	if event.Type == "" {
		return model.NewValidationError("typeは必須です")
	}
	if !event.Type.IsValid() {
		return model.NewValidationError(fmt.Sprintf("不正なアクティビティ種別です: %s", event.Type))
	}
	if event.DurationMs < 0 {
		return model.NewValidationError("duration_msは0以上である必要があります")
	}

	if err := s.activityRepo.Insert(ctx, event); err != nil {
		return model.NewPersistenceError()
	}

	if s.qualifiesForProfiling(event.Type) {
		snapshot := *event
		s.runner.Enqueue(task.Task{
			Name: "profile_update",
			Run: func(ctx context.Context) error {
				return s.updateProfile(ctx, &snapshot)
			},
		})
	}

	return nil
}

// qualifiesForProfiling はプロファイル更新の対象となる種別かを判定する。
func (s *Service) qualifiesForProfiling(t model.ActivityType) bool {
	switch t {
	case model.ActivityRead, model.ActivityLike, model.ActivityBookmark:
		return true
	}
	return false
}

// updateProfile はイベントからユーザープロファイルを更新する。
// 閲覧履歴（記事タイトル）、興味（カテゴリ・タグ）、ソース頻度を反映する。
func (s *Service) updateProfile(ctx context.Context, event *model.ActivityEvent) error {
	profile, err := s.profileRepo.Get(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		profile = &model.UserProfile{
			UserID:       event.UserID,
			SourceCounts: make(map[string]int),
		}
	}
	if profile.SourceCounts == nil {
		profile.SourceCounts = make(map[string]int)
	}

	if event.ArticleTitle != "" {
		profile.ReadingHistory = appendBounded(profile.ReadingHistory, event.ArticleTitle, readingHistoryLimit)
	}
	if event.ArticleSource != "" {
		profile.SourceCounts[event.ArticleSource]++
	}

	// like/bookmarkはユーザーの明示的な関心表明として興味に反映する
	if event.Type == model.ActivityLike || event.Type == model.ActivityBookmark {
		if event.Metadata.Category != "" {
			profile.Interests = appendBounded(profile.Interests, event.Metadata.Category, interestsLimit)
		}
		for _, tag := range event.Metadata.Tags {
			profile.Interests = appendBounded(profile.Interests, tag, interestsLimit)
		}
	}

	profile.UpdatedAt = time.Now()

	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Debug("プロファイルを更新しました",
		slog.String("user_id", event.UserID),
		slog.String("trigger", string(event.Type)),
	)
	return nil
}

// appendBounded は重複を避けつつ末尾に追記し、上限を超えた分を先頭から捨てる。
func appendBounded(list []string, val string, limit int) []string {
	for _, v := range list {
		if v == val {
			return list
		}
	}
	list = append(list, val)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

// Likes はlikeイベントの最新200件を返す。
func (s *Service) Likes(ctx context.Context, userID string) ([]*model.ActivityEvent, error) {
	if userID == "" {
		return nil, model.NewValidationError("userIdは必須です")
	}
	events, err := s.activityRepo.ListRecentByType(ctx, userID, model.ActivityLike, materializedListLimit)
	if err != nil {
		return nil, model.NewPersistenceError()
	}
	return events, nil
}

// Saved はbookmarkイベントの最新200件を返す。
func (s *Service) Saved(ctx context.Context, userID string) ([]*model.ActivityEvent, error) {
	if userID == "" {
		return nil, model.NewValidationError("userIdは必須です")
	}
	events, err := s.activityRepo.ListRecentByType(ctx, userID, model.ActivityBookmark, materializedListLimit)
	if err != nil {
		return nil, model.NewPersistenceError()
	}
	return events, nil
}

// Profile は指定ユーザーのパーソナライズ用プロファイルを返す。
// 未登録の場合はnilを返す（エラーではない）。
func (s *Service) Profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if userID == "" {
		return nil, model.NewValidationError("userIdは必須です")
	}
	profile, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		return nil, model.NewPersistenceError()
	}
	return profile, nil
}
