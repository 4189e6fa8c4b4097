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
// 変換ゲートウェイとHTTP層から利用する。
type MetricsCollector interface {
	RecordStageAttempt(stage string, outcome string)
	RecordFallback(from, to string)
	RecordConversion(outcome string, duration time.Duration)
	RecordIntervals(count int)
	RecordInvariantViolation()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	stageAttempts       *prometheus.CounterVec
	fallbacks           *prometheus.CounterVec
	conversions         *prometheus.CounterVec
	conversionLatency   prometheus.Histogram
	intervals           prometheus.Histogram
	invariantViolations prometheus.Counter
	httpStatus          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		stageAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aixmconv_stage_attempts_total",
			Help: "変換段階（backend/primary/secondary）ごとの試行数",
		}, []string{"stage", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aixmconv_fallbacks_total",
			Help: "フォールバック遷移の合計数",
		}, []string{"from", "to"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aixmconv_conversions_total",
			Help: "変換リクエストの結果別合計数",
		}, []string{"outcome"}),
		conversionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aixmconv_conversion_latency_seconds",
			Help:    "変換1件あたりのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		intervals: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aixmconv_intervals_per_conversion",
			Help:    "変換結果に含まれる timeInterval の件数",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		invariantViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aixmconv_invariant_violations_total",
			Help: "不変条件に違反した変換結果の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aixmconv_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.stageAttempts,
		c.fallbacks,
		c.conversions,
		c.conversionLatency,
		c.intervals,
		c.invariantViolations,
		c.httpStatus,
	)

	return c
}

// RecordStageAttempt は各段階の試行結果を記録する。
func (c *Collector) RecordStageAttempt(stage string, outcome string) {
	c.stageAttempts.WithLabelValues(stage, outcome).Inc()
}

// RecordFallback はフォールバック遷移を記録する。
func (c *Collector) RecordFallback(from, to string) {
	c.fallbacks.WithLabelValues(from, to).Inc()
}

// RecordConversion は変換の最終結果とレイテンシを記録する。
func (c *Collector) RecordConversion(outcome string, duration time.Duration) {
	c.conversions.WithLabelValues(outcome).Inc()
	c.conversionLatency.Observe(duration.Seconds())
}

// RecordIntervals は変換結果のレコード数を記録する。
func (c *Collector) RecordIntervals(count int) {
	c.intervals.Observe(float64(count))
}

// RecordInvariantViolation は不変条件違反を記録する。
func (c *Collector) RecordInvariantViolation() {
	c.invariantViolations.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しない MetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordStageAttempt(string, string) {}
func (Nop) RecordFallback(string, string) {}
func (Nop) RecordConversion(string, time.Duration) {}
func (Nop) RecordIntervals(int) {}
func (Nop) RecordInvariantViolation() {}
func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
