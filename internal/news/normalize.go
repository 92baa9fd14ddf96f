package news

import (
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hitoshi/newshub/internal/model"
)

// excerptLength は抜粋として切り出す文字数。
const excerptLength = 200

// defaultRelevanceScore は正規化時に付与するベースの関連度スコア。
const defaultRelevanceScore = 0.5

// contentPolicy は記事本文に適用する許可リストベースのサニタイズポリシー。
// script/iframe/styleタグとon*イベント属性を除去する。
var contentPolicy = bluemonday.UGCPolicy()

// stripCDATA はフィード由来のCDATAラッパーを除去する。
func stripCDATA(s string) string {
	s = strings.ReplaceAll(s, "<![CDATA[", "")
	s = strings.ReplaceAll(s, "]]>", "")
	return strings.TrimSpace(s)
}

// extractText はHTML断片からタグを除去した平文を抽出する。
// トークナイザベースでエンティティも展開されるため、
// 抜粋の切り出しに正確な文字数を使える。
func extractText(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.WriteString(tokenizer.Token().Data)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// deriveExcerpt はサマリーの先頭200文字の抜粋を導出する。
// マルチバイト文字の途中で切らないようルーン単位で数える。
func deriveExcerpt(summary string) string {
	plain := extractText(summary)
	runes := []rune(plain)
	if len(runes) <= excerptLength {
		return plain
	}
	return string(runes[:excerptLength])
}

// normalizeArticle は候補記事を正規化する。
// CDATAラッパーの除去、本文のサニタイズ、抜粋の導出、
// カテゴリと関連度スコアのデフォルト付与、処理タイムスタンプの刻印を行う。
func normalizeArticle(a model.Article, now time.Time) model.Article {
	a.URL = stripCDATA(a.URL)
	a.Summary = stripCDATA(a.Summary)
	a.Content = contentPolicy.Sanitize(stripCDATA(a.Content))
	a.Excerpt = deriveExcerpt(a.Summary)
	if len(a.Categories) == 0 {
		a.Categories = []string{"general"}
	}
	if a.RelevanceScore == 0 {
		a.RelevanceScore = defaultRelevanceScore
	}
	a.ProcessedAt = now
	return a
}

// publishedOrEpoch は記事の公開時刻を返す。欠けている場合はepoch 0を返す。
func publishedOrEpoch(a model.Article) time.Time {
	if a.PublishedAt == nil {
		return time.Unix(0, 0)
	}
	return *a.PublishedAt
}

// sortByRelevance は記事を関連度スコアの降順でソートする。
// スコアが等しい場合は元の並び（鮮度順）を維持する。
func sortByRelevance(articles []model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].RelevanceScore > articles[j].RelevanceScore
	})
}

// sortByFreshness は記事を公開時刻の降順でソートする。
// 公開時刻が欠けている記事はepoch 0（最古）として扱う。
// 時刻が等しい（または両方欠けている）場合は関連度スコアの高い方を先にする。
func sortByFreshness(articles []model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		ti := publishedOrEpoch(articles[i])
		tj := publishedOrEpoch(articles[j])
		if ti.Equal(tj) {
			return articles[i].RelevanceScore > articles[j].RelevanceScore
		}
		return ti.After(tj)
	})
}
