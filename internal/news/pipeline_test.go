package news

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/newshub/internal/model"
)

// --- テスト用モック ---

// mockFetcher はテスト用のCandidateFetcherモック。
type mockFetcher struct {
	articles   []model.Article
	err        error
	calls      int
	lastLimit  int
	shouldHang bool
}

func (m *mockFetcher) FetchCandidates(ctx context.Context, limit int, opts model.NewsOptions) ([]model.Article, error) {
	m.calls++
	m.lastLimit = limit
	if m.shouldHang {
		select {} // 永久にブロック
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.articles, nil
}

// mockScorer はテスト用のRelevanceScorerモック。
type mockScorer struct {
	score float64
	calls int
}

func (m *mockScorer) ScoreArticles(articles []model.Article, profile *model.UserProfile) ([]model.Article, float64) {
	m.calls++
	return articles, m.score
}

// slowScorer はデッドライン超過後に受け取ったスライスを書き換えるスコアラー。
type slowScorer struct {
	delay time.Duration
	done  chan struct{}
}

func (m *slowScorer) ScoreArticles(articles []model.Article, profile *model.UserProfile) ([]model.Article, float64) {
	time.Sleep(m.delay)
	for i := range articles {
		articles[i].RelevanceScore = 0.99
	}
	close(m.done)
	return articles, 0.99
}

// mockMetrics はテスト用のMetricsRecorderモック。
type mockMetrics struct {
	fallbacks []string
}

func (m *mockMetrics) RecordUpstreamLatency(d time.Duration) {}
func (m *mockMetrics) RecordCandidates(count int)            {}
func (m *mockMetrics) RecordPipelineFallback(reason string)  { m.fallbacks = append(m.fallbacks, reason) }

func testPipeline(fetcher CandidateFetcher, scorer RelevanceScorer) (*Pipeline, *mockMetrics) {
	metrics := &mockMetrics{}
	logger := slog.New(slog.NewTextHandler(testWriter{}, nil))
	return NewPipeline(fetcher, scorer, metrics, logger, 200*time.Millisecond, 100*time.Millisecond), metrics
}

// testWriter はテストログを破棄するio.Writer。
type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func articleAt(id string, published time.Time) model.Article {
	return model.Article{
		ID:          id,
		Title:       "記事 " + id,
		URL:         "https://example.com/" + id,
		Summary:     "サマリー " + id,
		PublishedAt: &published,
	}
}

// --- FetchNews ---

// 上流エラー時もlimit件の合成フォールバックを返すことを検証
func TestFetchNews_UpstreamError_ReturnsSyntheticSet(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("all sources down")}
	p, metrics := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 10, model.NewsOptions{})

	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for _, a := range got {
		if !a.IsFallback {
			t.Errorf("記事 %s はフォールバックであるべき", a.ID)
		}
	}
	if len(metrics.fallbacks) == 0 || metrics.fallbacks[0] != "upstream_error" {
		t.Errorf("fallbacks = %v", metrics.fallbacks)
	}
}

// 候補ゼロ件時もlimit件の合成フォールバックを返すことを検証
func TestFetchNews_ZeroCandidates_ReturnsSyntheticSet(t *testing.T) {
	fetcher := &mockFetcher{articles: nil}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 5, model.NewsOptions{})

	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
}

// 過剰取得: limitの2倍を上流に要求することを検証
func TestFetchNews_OverFetchesDouble(t *testing.T) {
	fetcher := &mockFetcher{}
	p, _ := testPipeline(fetcher, &mockScorer{})

	p.FetchNews(context.Background(), 15, model.NewsOptions{})

	if fetcher.lastLimit != 30 {
		t.Errorf("上流へのlimit = %d, want 30", fetcher.lastLimit)
	}
}

// 縮退経路: 候補5件中2件が48時間以内 → 実記事2件＋合成18件の計20件、
// 公開時刻降順であることを検証（仕様シナリオ）
func TestFetchNews_DegradedBackfill_MergesRecentWithSynthetic(t *testing.T) {
	now := time.Now()
	fetcher := &mockFetcher{articles: []model.Article{
		articleAt("recent-1", now.Add(-1*time.Hour)),
		articleAt("recent-2", now.Add(-30*time.Hour)),
		articleAt("stale-1", now.Add(-80*time.Hour)),
		articleAt("stale-2", now.Add(-100*time.Hour)),
		articleAt("stale-3", now.Add(-200*time.Hour)),
	}}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 20, model.NewsOptions{})

	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}

	var real, synthetic int
	for _, a := range got {
		if a.IsFallback {
			synthetic++
		} else {
			real++
		}
	}
	if real != 2 {
		t.Errorf("実記事 = %d, want 2", real)
	}
	if synthetic != 18 {
		t.Errorf("合成記事 = %d, want 18", synthetic)
	}

	// 公開時刻降順であること
	for i := 1; i < len(got); i++ {
		if publishedOrEpoch(got[i-1]).Before(publishedOrEpoch(got[i])) {
			t.Errorf("位置 %d でソート順が乱れています", i)
		}
	}
}

// 縮退経路: 48時間以内の記事がゼロでもlimit件の合成集合を返すことを検証
func TestFetchNews_DegradedAllStale_ReturnsFullSynthetic(t *testing.T) {
	now := time.Now()
	fetcher := &mockFetcher{articles: []model.Article{
		articleAt("stale-1", now.Add(-90*time.Hour)),
		articleAt("stale-2", now.Add(-100*time.Hour)),
	}}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 10, model.NewsOptions{})

	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	for _, a := range got {
		if !a.IsFallback {
			t.Errorf("全件フォールバックであるべき: %s", a.ID)
		}
	}
}

// 健全経路: limit件に切り詰め、正規化・鮮度順整列されることを検証
func TestFetchNews_Healthy_TruncatesAndNormalizes(t *testing.T) {
	now := time.Now()
	var articles []model.Article
	for i := 0; i < 16; i++ {
		a := articleAt(string(rune('a'+i)), now.Add(-time.Duration(i)*time.Hour))
		a.Summary = "<![CDATA[<p>本文サマリー</p>]]>"
		a.Categories = nil
		articles = append(articles, a)
	}
	fetcher := &mockFetcher{articles: articles}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 8, model.NewsOptions{})

	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	for _, a := range got {
		if strings.Contains(a.Summary, "CDATA") {
			t.Errorf("CDATAラッパーが除去されていません: %q", a.Summary)
		}
		if len(a.Categories) != 1 || a.Categories[0] != "general" {
			t.Errorf("カテゴリのデフォルトが適用されていません: %v", a.Categories)
		}
		if a.RelevanceScore != 0.5 {
			t.Errorf("relevanceScore = %v, want 0.5", a.RelevanceScore)
		}
		if a.ProcessedAt.IsZero() {
			t.Error("処理タイムスタンプが刻印されていません")
		}
	}

	// 鮮度降順であること
	for i := 1; i < len(got); i++ {
		if publishedOrEpoch(got[i-1]).Before(publishedOrEpoch(got[i])) {
			t.Errorf("位置 %d でソート順が乱れています", i)
		}
	}
}

// IDを持たない候補にレスポンス内で一意なIDが合成されることを検証
func TestFetchNews_SynthesizesMissingIDs(t *testing.T) {
	now := time.Now()
	var articles []model.Article
	for i := 0; i < 10; i++ {
		a := articleAt("", now.Add(-time.Duration(i)*time.Minute))
		articles = append(articles, a)
	}
	fetcher := &mockFetcher{articles: articles}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 10, model.NewsOptions{})

	seen := make(map[string]bool)
	for _, a := range got {
		if a.ID == "" {
			t.Error("IDが合成されていません")
		}
		if seen[a.ID] {
			t.Errorf("ID %q が重複しています", a.ID)
		}
		seen[a.ID] = true
	}
}

// フェッチが完了しない場合もデッドライン後にフォールバックが返ることを検証
func TestFetchNews_HangingFetch_FallsBackAfterDeadline(t *testing.T) {
	fetcher := &mockFetcher{shouldHang: true}
	p, _ := testPipeline(fetcher, &mockScorer{})

	start := time.Now()
	got := p.FetchNews(context.Background(), 5, model.NewsOptions{})
	elapsed := time.Since(start)

	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if elapsed > 2*time.Second {
		t.Errorf("フォールバックまでの時間が長すぎます: %v", elapsed)
	}
}

// 複数ソースが同一IDの記事を配信しても重複除去されることを検証
func TestFetchNews_DuplicateIDs_Deduplicated(t *testing.T) {
	now := time.Now()
	var articles []model.Article
	// 12件中5件が同一ID → 重複除去後8件で健全経路に乗る
	for i := 0; i < 5; i++ {
		articles = append(articles, articleAt("dup", now.Add(-time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 7; i++ {
		articles = append(articles, articleAt(string(rune('a'+i)), now.Add(-time.Duration(i)*time.Hour)))
	}
	fetcher := &mockFetcher{articles: articles}
	p, metrics := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 10, model.NewsOptions{})

	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	seen := make(map[string]bool)
	for _, a := range got {
		if seen[a.ID] {
			t.Errorf("ID %q が重複しています", a.ID)
		}
		seen[a.ID] = true
	}
	if len(metrics.fallbacks) != 0 {
		t.Errorf("重複除去後8件なら健全経路のはず: fallbacks = %v", metrics.fallbacks)
	}
}

// 全候補が同一IDの場合、縮退経路でも重複が返らないことを検証
func TestFetchNews_AllDuplicateIDs_DegradedWithoutRepeats(t *testing.T) {
	now := time.Now()
	var articles []model.Article
	for i := 0; i < 12; i++ {
		articles = append(articles, articleAt("dup-article", now.Add(-time.Duration(i)*time.Minute)))
	}
	fetcher := &mockFetcher{articles: articles}
	p, metrics := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 10, model.NewsOptions{})

	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	var dups int
	for _, a := range got {
		if a.ID == "dup-article" {
			dups++
		}
	}
	if dups != 1 {
		t.Errorf("ID dup-article の件数 = %d, want 1", dups)
	}
	// 縮退判定は重複除去後の件数（1件）に基づく
	if len(metrics.fallbacks) == 0 || metrics.fallbacks[0] != "degraded_backfill" {
		t.Errorf("fallbacks = %v", metrics.fallbacks)
	}
}

// 過大なlimitは上限に丸められることを検証
func TestFetchNews_ExcessiveLimit_Capped(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("down")}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 10_000_000, model.NewsOptions{})

	if len(got) != 100 {
		t.Errorf("len = %d, want 100", len(got))
	}
	if fetcher.lastLimit != 200 {
		t.Errorf("上流へのlimit = %d, want 200", fetcher.lastLimit)
	}
}

// limit 0以下はデフォルトのlimitに丸められることを検証
func TestFetchNews_NonPositiveLimit_UsesDefault(t *testing.T) {
	fetcher := &mockFetcher{}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.FetchNews(context.Background(), 0, model.NewsOptions{})

	if len(got) != defaultLimit {
		t.Errorf("len = %d, want %d", len(got), defaultLimit)
	}
}

// --- FetchPersonalized ---

// プロファイルなしの場合は集約スコア0.5を返すことを検証
func TestFetchPersonalized_NoProfile_DefaultScore(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("down")}
	scorer := &mockScorer{score: 0.9}
	p, _ := testPipeline(fetcher, scorer)

	_, score := p.FetchPersonalized(context.Background(), 5, model.NewsOptions{})

	if score != 0.5 {
		t.Errorf("score = %v, want 0.5", score)
	}
	if scorer.calls != 0 {
		t.Error("プロファイルなしではスコアラーを呼ばない")
	}
}

// プロファイルありの場合はスコアラーの集約スコアを返すことを検証
func TestFetchPersonalized_WithProfile_UsesScorer(t *testing.T) {
	now := time.Now()
	var articles []model.Article
	for i := 0; i < 10; i++ {
		articles = append(articles, articleAt(string(rune('a'+i)), now))
	}
	fetcher := &mockFetcher{articles: articles}
	scorer := &mockScorer{score: 0.8}
	p, _ := testPipeline(fetcher, scorer)

	profile := &model.UserProfile{Interests: []string{"golang"}}
	_, score := p.FetchPersonalized(context.Background(), 5, model.NewsOptions{Profile: profile})

	if score != 0.8 {
		t.Errorf("score = %v, want 0.8", score)
	}
	if scorer.calls != 1 {
		t.Errorf("scorer.calls = %d, want 1", scorer.calls)
	}
}

// スコアリングがデッドラインに間に合わない場合、フォールバックとして返した
// スライスが走り続けるスコアラーに書き換えられないことを検証
func TestFetchPersonalized_ScoringTimeout_ResultNotMutated(t *testing.T) {
	now := time.Now()
	var articles []model.Article
	for i := 0; i < 10; i++ {
		articles = append(articles, articleAt(string(rune('a'+i)), now))
	}
	fetcher := &mockFetcher{articles: articles}
	scorer := &slowScorer{delay: 300 * time.Millisecond, done: make(chan struct{})}
	p, _ := testPipeline(fetcher, scorer)

	profile := &model.UserProfile{Interests: []string{"golang"}}
	got, score := p.FetchPersonalized(context.Background(), 5, model.NewsOptions{Profile: profile})

	if score != 0.5 {
		t.Fatalf("score = %v, want 0.5", score)
	}

	// 取り残されたスコアラーの完了を待ってから返却済みスライスを検査する
	<-scorer.done
	for _, a := range got {
		if a.RelevanceScore != 0.5 {
			t.Errorf("記事 %s のスコアが書き換えられています: %v", a.ID, a.RelevanceScore)
		}
	}
}

// --- Search ---

// 空クエリは上流を呼ばずに空結果へ短絡することを検証
func TestSearch_EmptyQuery_ShortCircuits(t *testing.T) {
	fetcher := &mockFetcher{}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.Search(context.Background(), "   ", 10, "")

	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
	if got == nil {
		t.Error("nilではなく空スライスを返すべき")
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher.calls = %d, want 0（短絡すべき）", fetcher.calls)
	}
}

// 部分一致検索がtitle/summary/contentを対象にすることを検証
func TestSearch_MatchesSubstring(t *testing.T) {
	now := time.Now()
	a1 := articleAt("1", now)
	a1.Title = "Kubernetes 1.30 released"
	a2 := articleAt("2", now)
	a2.Summary = "A deep dive into kubernetes networking"
	a3 := articleAt("3", now)
	a3.Content = "nothing relevant here"

	fetcher := &mockFetcher{articles: []model.Article{a1, a2, a3}}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.Search(context.Background(), "KUBERNETES", 10, "")

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// 検索は5倍に過剰取得する
	if fetcher.lastLimit != 50 {
		t.Errorf("上流へのlimit = %d, want 50", fetcher.lastLimit)
	}
}

// 検索上流エラー時は空結果を返すことを検証
func TestSearch_UpstreamError_ReturnsEmpty(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("down")}
	p, _ := testPipeline(fetcher, &mockScorer{})

	got := p.Search(context.Background(), "golang", 10, "")

	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
