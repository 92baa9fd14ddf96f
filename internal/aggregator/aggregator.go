package aggregator

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newshub/internal/model"
)

// Service は設定された複数のRSS/Atomソースから候補記事を並列取得する。
// semaphoreパターンで最大並列数を制御し、個別ソースの失敗は
// ログに記録してスキップする（部分的な上流障害を許容する）。
type Service struct {
	sources        []string
	client         *http.Client
	logger         *slog.Logger
	maxConcurrency int
	maxBodySize    int64
}

// NewService はServiceを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を、
// maxBodySizeが0以下の場合はデフォルト値5MiBを使用する。
func NewService(sources []string, timeout time.Duration, maxConcurrency int, maxBodySize int64, logger *slog.Logger) *Service {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if maxBodySize <= 0 {
		maxBodySize = 5 * 1024 * 1024
	}
	return &Service{
		sources:        sources,
		client:         NewSafeClient(timeout),
		logger:         logger,
		maxConcurrency: maxConcurrency,
		maxBodySize:    maxBodySize,
	}
}

// FetchCandidates は全ソースから候補記事を取得し、オプションでフィルタして返す。
// 戻り値は未正規化の生の候補で、最大limit件。
// 全ソースが失敗した場合は空スライスを返す（エラーではない）。
// 部分障害時に何件返るかは上流次第で、呼び出し側のパイプラインが補填する。
func (s *Service) FetchCandidates(ctx context.Context, limit int, opts model.NewsOptions) ([]model.Article, error) {
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var candidates []model.Article

	for _, source := range s.sources {
		wg.Add(1)
		sem <- struct{}{}

		go func(sourceURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			articles, err := s.fetchSource(ctx, sourceURL)
			if err != nil {
				s.logger.Warn("ソースの取得に失敗しました",
					slog.String("source_url", sourceURL),
					slog.String("error", err.Error()),
				)
				return
			}

			mu.Lock()
			candidates = append(candidates, articles...)
			mu.Unlock()
		}(source)
	}

	wg.Wait()

	filtered := filterCandidates(candidates, opts)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return filtered, nil
}

// fetchSource は単一ソースをフェッチしてパースする。
func (s *Service) fetchSource(ctx context.Context, sourceURL string) ([]model.Article, error) {
	if err := ValidateSourceURL(sourceURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Newshub/1.0 News Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 巨大なフィードによるメモリ枯渇を防ぐ
	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, err
	}

	sourceName := feed.Title
	if sourceName == "" {
		sourceName = hostOf(sourceURL)
	}

	articles := make([]model.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		articles = append(articles, model.Article{
			ID:          item.GUID,
			Title:       item.Title,
			URL:         item.Link,
			Source:      sourceName,
			PublishedAt: item.PublishedParsed,
			Summary:     item.Description,
			Content:     item.Content,
			Categories:  item.Categories,
		})
	}

	return articles, nil
}

// filterCandidates はオプションに基づいて候補をフィルタする。
func filterCandidates(candidates []model.Article, opts model.NewsOptions) []model.Article {
	cutoff := timeFilterCutoff(opts.TimeFilter)

	result := make([]model.Article, 0, len(candidates))
	for _, a := range candidates {
		if !cutoff.IsZero() {
			if a.PublishedAt == nil || a.PublishedAt.Before(cutoff) {
				continue
			}
		}
		if opts.Category != "" && !hasCategory(a, opts.Category) {
			continue
		}
		result = append(result, a)
	}
	return result
}

// timeFilterCutoff はタイムフィルタ文字列をカットオフ時刻に変換する。
// 未知の値はフィルタなし（ゼロ値）として扱う。
func timeFilterCutoff(timeFilter string) time.Time {
	now := time.Now()
	switch timeFilter {
	case "1h":
		return now.Add(-1 * time.Hour)
	case "24h", "day":
		return now.Add(-24 * time.Hour)
	case "48h":
		return now.Add(-48 * time.Hour)
	case "week":
		return now.Add(-7 * 24 * time.Hour)
	case "month":
		return now.Add(-30 * 24 * time.Hour)
	}
	return time.Time{}
}

// hasCategory は記事が指定カテゴリを持つかを大文字小文字を無視して判定する。
func hasCategory(a model.Article, category string) bool {
	for _, c := range a.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// hostOf はURLのホスト名を返す。パースできない場合はURL全体を返す。
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
