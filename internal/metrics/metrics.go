// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ガード・画面サービス・ハンドラーから利用する。
type MetricsCollector interface {
	RecordRoleResolution(outcome string)
	RecordSignIn(outcome string)
	RecordStoreOperation(screen, op, outcome string)
	RecordSchemaFallback(screen string)
	SetActiveGuards(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	roleResolutions *prometheus.CounterVec
	signIns         *prometheus.CounterVec
	storeOperations *prometheus.CounterVec
	schemaFallbacks *prometheus.CounterVec
	activeGuards    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		roleResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liuyao_console_role_resolutions_total",
			Help: "結果別のロール解決回数",
		}, []string{"outcome"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liuyao_console_sign_in_total",
			Help: "結果別のサインイン試行回数",
		}, []string{"outcome"}),
		storeOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liuyao_console_store_operations_total",
			Help: "画面・操作・結果別のストア操作回数",
		}, []string{"screen", "op", "outcome"}),
		schemaFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liuyao_console_schema_fallback_total",
			Help: "列不足により項目を減らして再試行した回数",
		}, []string{"screen"}),
		activeGuards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liuyao_console_active_guards",
			Help: "稼働中のコンソールセッションガード数",
		}),
	}

	reg.MustRegister(
		c.roleResolutions,
		c.signIns,
		c.storeOperations,
		c.schemaFallbacks,
		c.activeGuards,
	)

	return c
}

// RecordRoleResolution はロール解決の結果を記録する。
func (c *Collector) RecordRoleResolution(outcome string) {
	c.roleResolutions.WithLabelValues(outcome).Inc()
}

// RecordSignIn はサインイン試行の結果を記録する。
func (c *Collector) RecordSignIn(outcome string) {
	c.signIns.WithLabelValues(outcome).Inc()
}

// RecordStoreOperation はストア操作の結果を記録する。
func (c *Collector) RecordStoreOperation(screen, op, outcome string) {
	c.storeOperations.WithLabelValues(screen, op, outcome).Inc()
}

// RecordSchemaFallback は項目を減らした再試行を記録する。
func (c *Collector) RecordSchemaFallback(screen string) {
	c.schemaFallbacks.WithLabelValues(screen).Inc()
}

// SetActiveGuards は稼働中のガード数を設定する。
func (c *Collector) SetActiveGuards(n int) {
	c.activeGuards.Set(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
