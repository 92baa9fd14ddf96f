// Package news は候補記事の集約・補填・正規化・整列を行うパイプラインを提供する。
// パイプラインは呼び出し元に対してエラーを投げず、
// 上流が全滅しても非空かつlimit以内の結果を必ず返す。
package news

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/newshub/internal/guard"
	"github.com/hitoshi/newshub/internal/model"
)

const (
	// defaultLimit はlimit未指定時の記事件数。
	defaultLimit = 20
	// maxLimit は1リクエストで返す記事件数の上限。
	// 過大なlimit指定による合成フォールバックの大量割り当てを防ぐ。
	maxLimit = 100
	// degradedThreshold はこの件数未満の候補を上流の大部分が
	// 失敗したシグナルとみなす閾値。
	degradedThreshold = 8
	// recentWindow は縮退時に候補を絞り込む公開時刻の窓。
	recentWindow = 48 * time.Hour
	// overFetchFactor は後段のフィルタを生き残るための過剰取得係数。
	overFetchFactor = 2
	// searchOverFetchFactor は検索時の過剰取得係数。
	searchOverFetchFactor = 5
)

// CandidateFetcher は外部の集約機能から生の候補記事を取得するインターフェース。
type CandidateFetcher interface {
	// FetchCandidates は最大limit件の未正規化の候補記事を返す。
	FetchCandidates(ctx context.Context, limit int, opts model.NewsOptions) ([]model.Article, error)
}

// RelevanceScorer は記事集合にユーザープロファイルとの関連度を付与するインターフェース。
type RelevanceScorer interface {
	// ScoreArticles は各記事のRelevanceScoreを更新した集合と、
	// 集合全体の集約スコア（[0,1]）を返す。
	ScoreArticles(articles []model.Article, profile *model.UserProfile) ([]model.Article, float64)
}

// MetricsRecorder はパイプラインのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordUpstreamLatency(d time.Duration)
	RecordCandidates(count int)
	RecordPipelineFallback(reason string)
}

// Pipeline はニュース取得のオーケストレーションを行う。
// 上流フェッチとスコアリングはいずれもデッドライン付きで実行され、
// 全失敗経路は合成フォールバック記事の集合に縮退する。
type Pipeline struct {
	fetcher       CandidateFetcher
	scorer        RelevanceScorer
	metrics       MetricsRecorder
	logger        *slog.Logger
	fetchDeadline time.Duration
	scoreDeadline time.Duration
}

// NewPipeline はPipelineを生成する。
func NewPipeline(
	fetcher CandidateFetcher,
	scorer RelevanceScorer,
	metrics MetricsRecorder,
	logger *slog.Logger,
	fetchDeadline time.Duration,
	scoreDeadline time.Duration,
) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		scorer:        scorer,
		metrics:       metrics,
		logger:        logger,
		fetchDeadline: fetchDeadline,
		scoreDeadline: scoreDeadline,
	}
}

// FetchNews は1件以上limit件以下の、IDで重複除去済みの記事を必ず返す。
// 候補ゼロまたは上流エラーは合成フォールバック集合に、
// 候補不足（degradedThreshold未満）は48時間以内の記事＋合成補填に縮退する。
// パイプライン内のpanicも回復し、フォールバック集合を返す。
func (p *Pipeline) FetchNews(ctx context.Context, limit int, opts model.NewsOptions) (result []model.Article) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("パイプライン処理中にpanicが発生しました",
				slog.Any("panic", rec),
			)
			p.metrics.RecordPipelineFallback("panic")
			result = syntheticArticles(limit)
		}
	}()

	start := time.Now()
	candidates, err := guard.RunWithDeadline(ctx, "news_fetch", p.fetchDeadline,
		func(ctx context.Context) ([]model.Article, error) {
			return p.fetcher.FetchCandidates(ctx, limit*overFetchFactor, opts)
		},
		func() []model.Article { return nil },
	)
	p.metrics.RecordUpstreamLatency(time.Since(start))

	if err != nil {
		p.logger.Warn("候補記事の取得に失敗しました、フォールバックに縮退します",
			slog.String("error", err.Error()),
		)
		p.metrics.RecordPipelineFallback("upstream_error")
		return syntheticArticles(limit)
	}

	// 複数ソースが同一GUIDの記事を配信した場合の重複を先に除去する。
	// 縮退判定もレスポンスも重複除去後の件数に基づく。
	candidates = dedupByID(candidates)
	p.metrics.RecordCandidates(len(candidates))

	if len(candidates) == 0 {
		p.metrics.RecordPipelineFallback("no_candidates")
		return syntheticArticles(limit)
	}

	if len(candidates) < degradedThreshold {
		p.metrics.RecordPipelineFallback("degraded_backfill")
		return p.backfillMerge(candidates, limit)
	}

	// 健全系: 先頭limit件を正規化して鮮度順に整列する
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	now := time.Now()
	for i := range candidates {
		candidates[i] = normalizeArticle(candidates[i], now)
	}
	sortByFreshness(candidates)
	assignIDs(candidates)

	return candidates
}

// backfillMerge は48時間以内の実記事と合成フォールバックをマージして
// ちょうどlimit件にし、公開時刻降順で整列する。
func (p *Pipeline) backfillMerge(candidates []model.Article, limit int) []model.Article {
	cutoff := time.Now().Add(-recentWindow)

	var recent []model.Article
	for _, a := range candidates {
		if a.PublishedAt != nil && a.PublishedAt.After(cutoff) {
			recent = append(recent, a)
		}
	}
	if len(recent) > limit {
		recent = recent[:limit]
	}

	now := time.Now()
	for i := range recent {
		recent[i] = normalizeArticle(recent[i], now)
	}

	merged := append(recent, syntheticArticles(limit-len(recent))...)
	sortByFreshness(merged)
	assignIDs(merged)

	return merged
}

// FetchPersonalized は記事集合とユーザーへの集約関連度スコアを返す。
// スコアリングはデッドライン付きで実行され、超過時は0.5に縮退する。
// スコアリング後、sortBy=relevanceの場合は関連度順に並べ替える。
func (p *Pipeline) FetchPersonalized(ctx context.Context, limit int, opts model.NewsOptions) ([]model.Article, float64) {
	articles := p.FetchNews(ctx, limit, opts)

	if opts.Profile == nil {
		return articles, defaultRelevanceScore
	}

	type scored struct {
		articles []model.Article
		score    float64
	}

	res, err := guard.RunWithDeadline(ctx, "relevance_scoring", p.scoreDeadline,
		func(ctx context.Context) (scored, error) {
			// デッドライン超過後も走り続けるスコアラーが
			// フォールバックで返却済みのスライスを書き換えないよう、コピーを渡す
			working := make([]model.Article, len(articles))
			copy(working, articles)
			scoredArticles, aggregate := p.scorer.ScoreArticles(working, opts.Profile)
			return scored{articles: scoredArticles, score: aggregate}, nil
		},
		func() scored { return scored{articles: articles, score: defaultRelevanceScore} },
	)
	if err != nil {
		return articles, defaultRelevanceScore
	}

	if opts.SortBy == "relevance" {
		sortByRelevance(res.articles)
	}

	return res.articles, res.score
}

// Search はtitle/summary/contentに対する部分一致検索を行う。
// 5倍に過剰取得した候補集合から照合し、空クエリは
// 上流を呼び出さずに空結果へ短絡する。
func (p *Pipeline) Search(ctx context.Context, query string, limit int, timeFilter string) (result []model.Article) {
	if strings.TrimSpace(query) == "" {
		return []model.Article{}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("検索処理中にpanicが発生しました", slog.Any("panic", rec))
			result = []model.Article{}
		}
	}()

	candidates, err := guard.RunWithDeadline(ctx, "news_search", p.fetchDeadline,
		func(ctx context.Context) ([]model.Article, error) {
			return p.fetcher.FetchCandidates(ctx, limit*searchOverFetchFactor, model.NewsOptions{TimeFilter: timeFilter})
		},
		func() []model.Article { return nil },
	)
	if err != nil {
		p.logger.Warn("検索用候補の取得に失敗しました", slog.String("error", err.Error()))
		return []model.Article{}
	}

	needle := strings.ToLower(query)
	var matched []model.Article
	for _, a := range dedupByID(candidates) {
		haystack := strings.ToLower(a.Title + " " + a.Summary + " " + a.Content)
		if strings.Contains(haystack, needle) {
			matched = append(matched, a)
		}
	}

	if len(matched) > limit {
		matched = matched[:limit]
	}
	now := time.Now()
	for i := range matched {
		matched[i] = normalizeArticle(matched[i], now)
	}
	sortByFreshness(matched)
	assignIDs(matched)

	if matched == nil {
		return []model.Article{}
	}
	return matched
}

// dedupByID は同一IDの記事を最初の1件だけ残して除去する。
// IDを持たない記事は重複判定の対象外としてすべて残す
// （後段のassignIDsが一意なIDを割り当てる）。
func dedupByID(articles []model.Article) []model.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if a.ID != "" {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
		}
		out = append(out, a)
	}
	return out
}

// assignIDs はIDを持たない記事に順序位置と現在時刻から合成したIDを割り当てる。
// レスポンス内の一意性のみを保証し、リクエストをまたいだ安定性はない。
func assignIDs(articles []model.Article) {
	now := time.Now().UnixNano()
	for i := range articles {
		if articles[i].ID == "" {
			articles[i].ID = fmt.Sprintf("article-%d-%d", i, now)
		}
	}
}
