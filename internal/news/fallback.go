package news

import (
	"fmt"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

// fallbackSeeds は合成フォールバック記事の元ネタ。
// 上流が全滅してもレスポンス契約（非空・limit以内）を守るために使用する。
var fallbackSeeds = []struct {
	title   string
	summary string
}{
	{"本日の主要ニュースを収集中です", "ニュースソースへの接続を再試行しています。最新の記事は数分後に表示されます。"},
	{"テクノロジー業界の最新動向", "主要なテクノロジーニュースソースから記事を取得しています。"},
	{"世界のヘッドラインをまもなくお届けします", "国際ニュースの取得を準備しています。"},
	{"サイエンスとイノベーションの話題", "科学技術分野の注目記事を収集しています。"},
	{"ビジネスと経済の注目記事", "経済ニュースソースとの同期を行っています。"},
}

// syntheticArticles はcount件の合成フォールバック記事を生成する。
// IDは順序位置と現在時刻から合成し、レスポンス内での一意性のみを保証する。
// 公開時刻は生成時刻から1分ずつ過去にずらし、ソート順を安定させる。
func syntheticArticles(count int) []model.Article {
	now := time.Now()
	articles := make([]model.Article, 0, count)
	for i := 0; i < count; i++ {
		seed := fallbackSeeds[i%len(fallbackSeeds)]
		published := now.Add(-time.Duration(i) * time.Minute)
		articles = append(articles, model.Article{
			ID:             fmt.Sprintf("fallback-%d-%d", i, now.UnixNano()),
			Title:          seed.title,
			URL:            "",
			Source:         "Newshub",
			PublishedAt:    &published,
			Summary:        seed.summary,
			Excerpt:        seed.summary,
			Categories:     []string{"general"},
			RelevanceScore: defaultRelevanceScore,
			IsFallback:     true,
			ProcessedAt:    now,
		})
	}
	return articles
}
