// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リダイレクト解決、保存処理、ワーカーから利用する。
// リンク単位のラベルは付けない（クリック解析は行わない）。
type MetricsCollector interface {
	RecordRedirect()
	RecordPassThrough(reason string)
	RecordSlugCorrected()
	RecordSlugCorrectionFailure()
	RecordRedirectURLRejected()
	RecordLinkCheck(status string, duration time.Duration)
}

// パススルー理由のラベル値。
const (
	ReasonNoToken     = "no_token"
	ReasonNoID        = "no_id"
	ReasonNoURL       = "no_url"
	ReasonLookupError = "lookup_error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	redirects         prometheus.Counter
	passThroughs      *prometheus.CounterVec
	slugCorrected     prometheus.Counter
	slugCorrectFail   prometheus.Counter
	urlRejected       prometheus.Counter
	linkChecks        *prometheus.CounterVec
	linkCheckDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_redirects_total",
			Help: "リダイレクトを返した短縮リンクリクエストの合計数",
		}),
		passThroughs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shortlink_pass_through_total",
			Help: "リダイレクトせず通常のルーティングに委ねた短縮リンクリクエストの合計数",
		}, []string{"reason"}),
		slugCorrected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_slug_corrected_total",
			Help: "短縮コードに合わせて書き換えたスラッグの合計数",
		}),
		slugCorrectFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_slug_correction_failures_total",
			Help: "スラッグの書き換えに失敗した合計数",
		}),
		urlRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_redirect_url_rejected_total",
			Help: "検証に失敗して保存されなかったリダイレクト先URLの合計数",
		}),
		linkChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shortlink_link_checks_total",
			Help: "リダイレクト先URLの到達性チェック結果別の合計数",
		}, []string{"status"}),
		linkCheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shortlink_link_check_duration_seconds",
			Help:    "リダイレクト先URLの到達性チェックのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.redirects,
		c.passThroughs,
		c.slugCorrected,
		c.slugCorrectFail,
		c.urlRejected,
		c.linkChecks,
		c.linkCheckDuration,
	)

	return c
}

// RecordRedirect はリダイレクト応答を記録する。
func (c *Collector) RecordRedirect() {
	c.redirects.Inc()
}

// RecordPassThrough はパススルーを理由別に記録する。
func (c *Collector) RecordPassThrough(reason string) {
	c.passThroughs.WithLabelValues(reason).Inc()
}

// RecordSlugCorrected はスラッグの書き換えを記録する。
func (c *Collector) RecordSlugCorrected() {
	c.slugCorrected.Inc()
}

// RecordSlugCorrectionFailure はスラッグ書き換えの失敗を記録する。
func (c *Collector) RecordSlugCorrectionFailure() {
	c.slugCorrectFail.Inc()
}

// RecordRedirectURLRejected は不正なリダイレクト先URLの破棄を記録する。
func (c *Collector) RecordRedirectURLRejected() {
	c.urlRejected.Inc()
}

// RecordLinkCheck はリンクチェック結果とレイテンシを記録する。
func (c *Collector) RecordLinkCheck(status string, duration time.Duration) {
	c.linkChecks.WithLabelValues(status).Inc()
	c.linkCheckDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
