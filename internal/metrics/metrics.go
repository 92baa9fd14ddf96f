// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はニュースパイプラインとHTTP層のメトリクスを収集する。
// news.MetricsRecorderとmiddleware.StatusObserverの両方を実装する。
type Collector struct {
	upstreamLatency    prometheus.Histogram
	candidates         prometheus.Histogram
	pipelineFallbacks  *prometheus.CounterVec
	activitiesRecorded *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	httpDuration       prometheus.Histogram
	authAttempts       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newshub_upstream_fetch_latency_seconds",
			Help:    "上流ニュースソースのフェッチレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newshub_pipeline_candidates",
			Help:    "パイプラインが上流から受け取った候補記事数",
			Buckets: []float64{0, 1, 5, 8, 20, 50, 100},
		}),
		pipelineFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newshub_pipeline_fallback_total",
			Help: "合成フォールバックへの縮退回数（理由別）",
		}, []string{"reason"}),
		activitiesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newshub_activities_recorded_total",
			Help: "台帳に記録された行動イベント数（種別別）",
		}, []string{"type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newshub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newshub_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newshub_auth_attempts_total",
			Help: "OAuth認証試行数（プロバイダー・結果別）",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(
		c.upstreamLatency,
		c.candidates,
		c.pipelineFallbacks,
		c.activitiesRecorded,
		c.httpStatus,
		c.httpDuration,
		c.authAttempts,
	)

	return c
}

// RecordUpstreamLatency は上流フェッチのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordCandidates は上流から受け取った候補数を記録する。
func (c *Collector) RecordCandidates(count int) {
	c.candidates.Observe(float64(count))
}

// RecordPipelineFallback は合成フォールバックへの縮退を理由別に記録する。
func (c *Collector) RecordPipelineFallback(reason string) {
	c.pipelineFallbacks.WithLabelValues(reason).Inc()
}

// RecordActivity は記録された行動イベントを種別別にカウントする。
func (c *Collector) RecordActivity(eventType string) {
	c.activitiesRecorded.WithLabelValues(eventType).Inc()
}

// RecordAuthAttempt はOAuth認証試行を記録する。resultは"success"または"failure"。
func (c *Collector) RecordAuthAttempt(provider, result string) {
	c.authAttempts.WithLabelValues(provider, result).Inc()
}

// ObserveHTTPRequest はHTTPリクエストのステータスと処理時間を記録する。
func (c *Collector) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(status)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
