// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// トランスポート層とセッション層から利用する。
type MetricsCollector interface {
	RecordBackendStatus(statusCode int)
	RecordBackendLatency(duration time.Duration)
	RecordTokenRefresh(success bool)
	RecordReauthPrompt()
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	backendStatus  *prometheus.CounterVec
	backendLatency prometheus.Histogram
	refreshTotal   *prometheus.CounterVec
	reauthPrompts  prometheus.Counter
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contestgate_backend_status_total",
			Help: "バックエンドレスポンスのHTTPステータスコード別の合計数",
		}, []string{"status_code"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contestgate_backend_latency_seconds",
			Help:    "バックエンドリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contestgate_token_refresh_total",
			Help: "トークンリフレッシュの結果別の合計数",
		}, []string{"result"}),
		reauthPrompts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contestgate_reauth_prompt_total",
			Help: "再ログイン確認の発行回数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contestgate_sessions_purged_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.backendStatus,
		c.backendLatency,
		c.refreshTotal,
		c.reauthPrompts,
		c.sessionsPurged,
	)

	return c
}

// RecordBackendStatus はバックエンドレスポンスのステータスコードを記録する。
func (c *Collector) RecordBackendStatus(statusCode int) {
	c.backendStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBackendLatency はバックエンドリクエストのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(duration time.Duration) {
	c.backendLatency.Observe(duration.Seconds())
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.refreshTotal.WithLabelValues(result).Inc()
}

// RecordReauthPrompt は再ログイン確認の発行を記録する。
func (c *Collector) RecordReauthPrompt() {
	c.reauthPrompts.Inc()
}

// RecordSessionsPurged は期限切れセッションの削除件数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
