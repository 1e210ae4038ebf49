// Package metrics 客户端运行指标，通过状态服务的 /metrics 暴露。
package metrics

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "cardiac"

// Prom 全局指标集合
var Prom = New()

type Prometheus struct {
	registry *prometheus.Registry

	SamplesReceived *prometheus.CounterVec
	SamplesDropped  *prometheus.CounterVec
	StreamState     *prometheus.GaugeVec
	WindowLength    prometheus.Gauge
	Verifications   *prometheus.CounterVec
	Toggles         *prometheus.CounterVec
	ToggleDuration  prometheus.Histogram
	Downloads       *prometheus.CounterVec
}

func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		SamplesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "samples_received_total",
			Help: "Samples pushed into the chart window.",
		}, []string{"device_id"}),
		SamplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "samples_dropped_total",
			Help: "Stream payloads that could not be parsed as a finite number.",
		}, []string{"device_id"}),
		StreamState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "state",
			Help: "1 for the current stream connection state.",
		}, []string{"state"}),
		WindowLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "chart", Name: "window_length",
			Help: "Real samples currently held by the chart window.",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "verifications_total",
			Help: "Token verifications by result.",
		}, []string{"result"}),
		Toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "persistence", Name: "toggles_total",
			Help: "Persistence toggle requests by result.",
		}, []string{"result"}),
		ToggleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "persistence", Name: "toggle_duration_seconds",
			Help:    "Latency of persistence toggle requests.",
			Buckets: prometheus.DefBuckets,
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "readings", Name: "downloads_total",
			Help: "Session PNG downloads by result.",
		}, []string{"result"}),
	}
	p.registry.MustRegister(
		p.SamplesReceived, p.SamplesDropped, p.StreamState, p.WindowLength,
		p.Verifications, p.Toggles, p.ToggleDuration, p.Downloads,
	)
	return p
}

func (p *Prometheus) WithGoCollectorRuntimeMetrics() {
	p.registry.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorRuntimeMetrics(collectors.GoRuntimeMetricsRule{Matcher: regexp.MustCompile("/.*")}),
	))
}

func (p *Prometheus) WithBuildInfoCollector() {
	p.registry.MustRegister(collectors.NewBuildInfoCollector())
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// SetStreamState 将 state 置 1，其余状态置 0
func (p *Prometheus) SetStreamState(state string, all ...string) {
	for _, s := range all {
		p.StreamState.WithLabelValues(s).Set(0)
	}
	p.StreamState.WithLabelValues(state).Set(1)
}

// Result 将错误转换为指标标签
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
