// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Upsert はユーザーを1回の論理操作でUPSERTする。
	// 既存の場合はlast_login_atのみを更新しIsNewUser=falseを返す。
	// 未登録の場合は全カラムを挿入しIsNewUser=trueを返す。
	// 同一IDへの同時初回ログインは単一行に収束する（INSERT ... ON CONFLICT）。
	Upsert(ctx context.Context, candidate *model.User) (*model.UpsertResult, error)
}

// ActivityRepository は行動台帳の永続化インターフェース。
// 台帳は追記専用であり、更新・削除メソッドは提供しない。
type ActivityRepository interface {
	// Insert は行動イベントを台帳に追記する。
	Insert(ctx context.Context, event *model.ActivityEvent) error

	// ListRecentByType は指定種別のイベントを新しい順に最大limit件返す。
	ListRecentByType(ctx context.Context, userID string, eventType model.ActivityType, limit int) ([]*model.ActivityEvent, error)

	// CountReads は全期間のreadイベント件数を返す。
	CountReads(ctx context.Context, userID string) (int, error)

	// SumDurationMs は全種別のduration_ms合計を返す。
	SumDurationMs(ctx context.Context, userID string) (int64, error)

	// ReadTrendsByDay はreadイベント件数を日単位で集計して返す。
	// 直近7日間（当日含む）に限定し、日付昇順で返す。
	ReadTrendsByDay(ctx context.Context, userID string) ([]DayCount, error)

	// TopSources はreadイベントをarticle_sourceごとに集計し、
	// 件数降順で上位limit件を返す。NULLソースは "Unknown" に分類する。
	TopSources(ctx context.Context, userID string, limit int) ([]SourceCount, error)

	// PeakReadingHour は全履歴の中で、日付+時間帯の単一バケットの
	// read件数が最大となる時間帯（0〜23）を返す。
	// 同数の場合は小さい時間帯を優先する（決定的なタイブレーク）。
	// イベントが1件もない場合はfound=falseを返す。
	PeakReadingHour(ctx context.Context, userID string) (hour int, found bool, err error)

	// AvgReadSeconds はduration_msが非ゼロのreadイベントの平均秒数を返す。
	// 対象イベントがない場合は0を返す。
	AvgReadSeconds(ctx context.Context, userID string) (int, error)
}

// SubscriptionRepository は課金プラン状態の永続化インターフェース。
type SubscriptionRepository interface {
	// Get は指定ユーザーの購読状態を返す。
	// レコードが存在しない場合はfree/activeのデフォルト値を返す（エラーではない）。
	Get(ctx context.Context, userID string) (*model.Subscription, error)

	// Upsert は購読状態をUPSERTする。
	// 競合時はplan/statusを無条件に上書きし、課金識別子と
	// current_period_endは新しい非null値が与えられない限り既存値を保持する。
	Upsert(ctx context.Context, sub *model.Subscription) error
}

// ProfileRepository はパーソナライズ用プロファイルの永続化インターフェース。
type ProfileRepository interface {
	// Get は指定ユーザーのプロファイルを取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, userID string) (*model.UserProfile, error)

	// Upsert はプロファイルblob全体をUPSERTする。
	Upsert(ctx context.Context, profile *model.UserProfile) error
}

// DayCount は日単位の集計結果を表す。
type DayCount struct {
	Day   time.Time `json:"date"`
	Count int       `json:"count"`
}

// SourceCount はソース単位の集計結果を表す。
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}
