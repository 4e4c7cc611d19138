package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qp_spc"

// Metrics SPC 服务指标
type Metrics struct {
	SamplesEvaluated *prometheus.CounterVec
	SaveErrors       *prometheus.CounterVec
	RecordsOverdue   prometheus.Gauge
	RecordsWarning   prometheus.Gauge
	AlertsPublished  *prometheus.CounterVec
	AlertFailures    *prometheus.CounterVec
}

// NewMetrics 在给定注册器上注册全部指标（测试传入独立的 prometheus.NewRegistry()）
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SamplesEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "samples",
			Name:      "evaluated_total",
			Help:      "Samples evaluated by characteristic type and severity",
		}, []string{"char_type", "severity"}),
		SaveErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "samples",
			Name:      "save_errors_total",
			Help:      "Rejected or failed sample saves by reason",
		}, []string{"reason"}),
		RecordsOverdue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "due",
			Name:      "overdue_records",
			Help:      "DNA records whose next check is overdue",
		}),
		RecordsWarning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "due",
			Name:      "warning_records",
			Help:      "DNA records whose next check is approaching",
		}),
		AlertsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "published_total",
			Help:      "Alerts published by type",
		}, []string{"type"}),
		AlertFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "failures_total",
			Help:      "Alert or event publish failures by sink",
		}, []string{"sink"}),
	}
}

// Handler 暴露指标
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
