// Package model はドメインモデルを定義する。
package model

import "time"

// ActivityType はユーザー行動の種別を表す。
type ActivityType string

const (
	// ActivityRead は記事の読了を表す。
	ActivityRead ActivityType = "read"
	// ActivityLike は記事のいいねを表す。
	ActivityLike ActivityType = "like"
	// ActivityUnlike はいいねの取り消しを表す。
	ActivityUnlike ActivityType = "unlike"
	// ActivityBookmark は記事の保存を表す。
	ActivityBookmark ActivityType = "bookmark"
	// ActivityUnbookmark は保存の取り消しを表す。
	ActivityUnbookmark ActivityType = "unbookmark"
	// ActivityShare は記事の共有を表す。
	ActivityShare ActivityType = "share"
	// ActivityView は記事の表示を表す。
	ActivityView ActivityType = "view"
)

// IsValid は行動種別がサポート対象かを返す。
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityRead, ActivityLike, ActivityUnlike, ActivityBookmark,
		ActivityUnbookmark, ActivityShare, ActivityView:
		return true
	}
	return false
}

// ActivityMetadata はActivityEventに付随する構造化メタデータを表す。
// スキーマレスなblobとして保存するが、実際に参照するフィールドだけを
// バージョン付きの狭い形で定義し、形の暗黙的な変化を防ぐ。
type ActivityMetadata struct {
	Version        int      `json:"version,omitempty"`
	URL            string   `json:"url,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	Category       string   `json:"category,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	RelevanceScore float64  `json:"relevanceScore,omitempty"`
}

// ActivityEvent はユーザー行動台帳の1レコードを表す。
// 追記専用であり、通常運用では更新も削除もされない。
// 全アナリティクスはこの台帳への集計クエリから導出される。
type ActivityEvent struct {
	ID            int64
	UserID        string
	Type          ActivityType
	ArticleID     string
	ArticleTitle  string
	ArticleSource string
	DurationMs    int64
	Metadata      ActivityMetadata
	CreatedAt     time.Time
}
