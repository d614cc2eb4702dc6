// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス記録のインターフェース。
// カタログ、お気に入り、認証の各サービスとHTTPミドルウェアから利用する。
type Recorder interface {
	RecordCatalogFetch(success bool, duration time.Duration)
	RecordFavoriteToggle(success bool)
	RecordAuthError(code string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	catalogFetch   *prometheus.CounterVec
	catalogLatency prometheus.Histogram
	favoriteToggle *prometheus.CounterVec
	authErrors     *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		catalogFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artizone_catalog_fetch_total",
			Help: "商品カタログ取得の合計数（結果別）",
		}, []string{"result"}),
		catalogLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "artizone_catalog_fetch_latency_seconds",
			Help:    "商品カタログ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		favoriteToggle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artizone_favorite_toggle_total",
			Help: "お気に入り切り替えの合計数（結果別）",
		}, []string{"result"}),
		authErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artizone_auth_errors_total",
			Help: "正規化済み認証エラーの合計数（コード別）",
		}, []string{"code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artizone_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.catalogFetch,
		c.catalogLatency,
		c.favoriteToggle,
		c.authErrors,
		c.httpStatus,
	)

	return c
}

// RecordCatalogFetch はカタログ取得の結果とレイテンシを記録する。
func (c *Collector) RecordCatalogFetch(success bool, duration time.Duration) {
	c.catalogFetch.WithLabelValues(resultLabel(success)).Inc()
	c.catalogLatency.Observe(duration.Seconds())
}

// RecordFavoriteToggle はお気に入り切り替えの結果を記録する。
func (c *Collector) RecordFavoriteToggle(success bool) {
	c.favoriteToggle.WithLabelValues(resultLabel(success)).Inc()
}

// RecordAuthError は正規化済み認証エラーのコードを記録する。
func (c *Collector) RecordAuthError(code string) {
	c.authErrors.WithLabelValues(code).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Nop は何も記録しないRecorder。
type Nop struct{}

func (Nop) RecordCatalogFetch(bool, time.Duration) {}
func (Nop) RecordFavoriteToggle(bool)              {}
func (Nop) RecordAuthError(string)                 {}
func (Nop) RecordHTTPStatus(int)                   {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
