package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "storyweaver"

// Metrics 生成流水线指标，nil 接收者上的调用都是空操作
type Metrics struct {
	planning        *prometheus.CounterVec
	illustrations   *prometheus.CounterVec
	illustrationDur *prometheus.HistogramVec
	pipelines       prometheus.Gauge
}

// NewMetrics 在给定 registry 上注册指标，测试时传入独立的 prometheus.NewRegistry()
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		planning: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "planning",
			Name:      "requests_total",
			Help:      "Story planning calls partitioned by outcome.",
		}, []string{"outcome"}),
		illustrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "illustration",
			Name:      "requests_total",
			Help:      "Illustration calls partitioned by kind and outcome (ok or degraded).",
		}, []string{"kind", "outcome"}),
		illustrationDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "illustration",
			Name:      "duration_seconds",
			Help:      "Latency of illustration calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"kind"}),
		pipelines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "in_flight",
			Help:      "Background illustration pipelines currently running.",
		}),
	}
}

func (m *Metrics) observePlanning(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.planning.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeIllustration(kind Kind, degraded bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	m.illustrations.WithLabelValues(string(kind), outcome).Inc()
	m.illustrationDur.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) pipelineStarted() {
	if m == nil {
		return
	}
	m.pipelines.Inc()
}

func (m *Metrics) pipelineFinished() {
	if m == nil {
		return
	}
	m.pipelines.Dec()
}
