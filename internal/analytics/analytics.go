// Package analytics はアクティビティ台帳に対する読み取り専用の集計を提供する。
// すべての値は集計クエリから導出され、台帳以外のデータソースを持たない。
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/hitoshi/newshub/internal/model"
	"github.com/hitoshi/newshub/internal/repository"
)

const topSourcesLimit = 6

// Summary はユーザーの閲覧アクティビティの集計結果。
type Summary struct {
	ArticlesRead       int                      `json:"articlesRead"`
	TimeSpentMinutes   int                      `json:"timeSpentMinutes"`
	ReadingTrendsByDay []repository.DayCount    `json:"readingTrendsByDay"`
	TopSources         []repository.SourceCount `json:"topSources"`
	PeakReadingHour    int                      `json:"peakReadingHour"`
	AvgReadSeconds     int                      `json:"avgReadSeconds"`
}

// Service はアクティビティ台帳への集計クエリをまとめる。
type Service struct {
	activityRepo repository.ActivityRepository
	logger       *slog.Logger
}

// NewService はServiceを生成する。
func NewService(activityRepo repository.ActivityRepository, logger *slog.Logger) *Service {
	return &Service{
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// Summarize はユーザーの閲覧サマリーを集計する。
func (s *Service) Summarize(ctx context.Context, userID string) (*Summary, error) {
	articlesRead, err := s.activityRepo.CountReads(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count read events: %w", err)
	}

	totalMs, err := s.activityRepo.SumDurationMs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum durations: %w", err)
	}

	trends, err := s.activityRepo.ReadTrendsByDay(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reading trends: %w", err)
	}

	topSources, err := s.activityRepo.TopSources(ctx, userID, topSourcesLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top sources: %w", err)
	}

	peakHour, _, err := s.activityRepo.PeakReadingHour(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find peak reading hour: %w", err)
	}

	avgReadSeconds, err := s.activityRepo.AvgReadSeconds(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to average read durations: %w", err)
	}

	return &Summary{
		ArticlesRead:       articlesRead,
		TimeSpentMinutes:   int(math.Round(float64(totalMs) / 60000.0)),
		ReadingTrendsByDay: trends,
		TopSources:         topSources,
		PeakReadingHour:    peakHour,
		AvgReadSeconds:     avgReadSeconds,
	}, nil
}

// Insights はサマリーから最大5文の示唆を導出する。
// 集計の上に載る表示ロジックであり、独立したデータソースではない。
func (s *Service) Insights(ctx context.Context, userID string) ([]string, error) {
	summary, err := s.Summarize(ctx, userID)
	if err != nil {
		return nil, err
	}
	return deriveInsights(summary), nil
}

// deriveInsights はサマリーを人間可読の文に変換する。
func deriveInsights(summary *Summary) []string {
	var insights []string

	if summary.ArticlesRead == 0 {
		return []string{"まだ閲覧履歴がありません。気になる記事を読むとここに傾向が表示されます。"}
	}

	if len(summary.TopSources) > 0 {
		top := summary.TopSources[0]
		insights = append(insights, fmt.Sprintf(
			"最もよく読んでいるソースは「%s」です（%d件）。", top.Source, top.Count))
	}

	insights = append(insights, fmt.Sprintf(
		"閲覧が最も活発な時間帯は%d時台です。", summary.PeakReadingHour))

	var weekly int
	for _, d := range summary.ReadingTrendsByDay {
		weekly += d.Count
	}
	insights = append(insights, fmt.Sprintf(
		"直近7日間で%d件の記事を読みました。", weekly))

	if len(summary.TopSources) > 1 {
		second := summary.TopSources[1]
		insights = append(insights, fmt.Sprintf(
			"2番目によく読むソースは「%s」です（%d件）。", second.Source, second.Count))
	}

	// 単一ソースに偏っている場合のみ多様化を提案する
	if len(summary.TopSources) == 1 && summary.TopSources[0].Count >= 3 {
		insights = append(insights, fmt.Sprintf(
			"閲覧が「%s」に集中しています。他のソースも読むと視野が広がります。",
			summary.TopSources[0].Source))
	}

	if len(insights) > 5 {
		insights = insights[:5]
	}
	return insights
}

// Digest はデイリーダイジェストのレスポンス。
type Digest struct {
	Date     string          `json:"date"`
	Headline string          `json:"headline"`
	Articles []model.Article `json:"articles"`
}

// BuildDigest はトレンド記事からデイリーダイジェストを組み立てる。
// 記事は先頭5件に絞り込む。
func BuildDigest(date string, articles []model.Article) *Digest {
	if len(articles) > 5 {
		articles = articles[:5]
	}
	headline := "本日の注目記事はありません。"
	if len(articles) > 0 {
		headline = fmt.Sprintf("本日の注目記事%d件をお届けします。", len(articles))
	}
	return &Digest{
		Date:     date,
		Headline: headline,
		Articles: articles,
	}
}

// Answer は質問への回答。集計値に基づく決定的な応答で、外部呼び出しは行わない。
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Ask はユーザーの質問に集計サマリーから回答する。
func (s *Service) Ask(ctx context.Context, userID, question string) (*Answer, error) {
	summary, err := s.Summarize(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Question: question,
		Answer: fmt.Sprintf(
			"これまでに%d件の記事を読み、合計%d分を費やしています。最も活発な時間帯は%d時台です。",
			summary.ArticlesRead, summary.TimeSpentMinutes, summary.PeakReadingHour),
	}, nil
}
