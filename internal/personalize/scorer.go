// Package personalize はユーザープロファイルに基づく記事の関連度スコアリングを提供する。
package personalize

import (
	"strings"

	"github.com/hitoshi/newshub/internal/model"
)

const (
	baseScore         = 0.5
	interestWeight    = 0.2
	readingWeight     = 0.1
	maxRelevanceScore = 1.0
)

// Scorer は興味キーワードと閲覧履歴から記事の関連度を算出する。
// 計算は決定的であり、同一入力に対して常に同一のスコアを返す。
type Scorer struct{}

// NewScorer はScorerを生成する。
func NewScorer() *Scorer {
	return &Scorer{}
}

// ScoreArticles は各記事に関連度スコアを付与し、集合全体の平均スコアを返す。
// 空の集合に対する平均は0.0とする。
func (s *Scorer) ScoreArticles(articles []model.Article, profile *model.UserProfile) ([]model.Article, float64) {
	if len(articles) == 0 {
		return articles, 0.0
	}

	var sum float64
	for i := range articles {
		score := s.scoreArticle(articles[i], profile)
		articles[i].RelevanceScore = score
		sum += score
	}

	return articles, sum / float64(len(articles))
}

// scoreArticle は単一記事のスコアを算出する。
// 記事が既に持つ基礎スコア（未設定の場合は0.5）に対し、
// 興味キーワード一致ごとに+0.2、閲覧履歴語の一致ごとに+0.1を加算し、1.0で飽和する。
func (s *Scorer) scoreArticle(a model.Article, profile *model.UserProfile) float64 {
	score := a.RelevanceScore
	if score == 0 {
		score = baseScore
	}
	if profile == nil {
		return score
	}

	haystack := strings.ToLower(a.Title + " " + a.Summary)

	for _, interest := range profile.Interests {
		term := strings.ToLower(strings.TrimSpace(interest))
		if term == "" {
			continue
		}
		if strings.Contains(haystack, term) {
			score += interestWeight
		}
	}

	for _, past := range profile.ReadingHistory {
		term := strings.ToLower(strings.TrimSpace(past))
		if term == "" {
			continue
		}
		if strings.Contains(haystack, term) {
			score += readingWeight
		}
	}

	if score > maxRelevanceScore {
		score = maxRelevanceScore
	}
	return score
}
