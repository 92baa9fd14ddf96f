// Package model はドメインモデルを定義する。
package model

import "time"

// Article は集約パイプラインが生成する記事を表す。
// 永続化されない一時的なモデルで、ライフタイムは1レスポンス。
// IDはレスポンス内での一意性のみを保証し、リクエストをまたいだ安定性はない。
type Article struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Source         string     `json:"source"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	Summary        string     `json:"summary"`
	Content        string     `json:"content,omitempty"`
	Excerpt        string     `json:"excerpt,omitempty"`
	Categories     []string   `json:"categories"`
	Tags           []string   `json:"tags,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`
	IsFallback     bool       `json:"is_fallback,omitempty"`
	ProcessedAt    time.Time  `json:"processed_at"`
}

// UserProfile はパーソナライズに使用するユーザープロファイルを表す。
// usersと1:1で、行動記録のたびにバックグラウンドで更新される。
type UserProfile struct {
	UserID         string         `json:"user_id"`
	Interests      []string       `json:"interests"`
	ReadingHistory []string       `json:"reading_history"`
	SourceCounts   map[string]int `json:"source_counts,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewsOptions は記事取得のオプションを表す。
type NewsOptions struct {
	Category   string
	TimeFilter string
	SortBy     string
	Profile    *UserProfile
}
