package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/familytree-backend/internal/domain/family"
)

const namespace = "familytree"

// Metrics holds the service's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	renderTotal    *prometheus.CounterVec
	stageSeconds   *prometheus.HistogramVec
	expansionNodes prometheus.Histogram
	mutationsTotal *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewMetrics registers every instrument on a fresh registry, alongside the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		renderTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_total",
			Help:      "Render pipeline runs by outcome.",
		}, []string{"outcome"}),
		stageSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_stage_seconds",
			Help:      "Wall time of each external render stage.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage", "outcome"}),
		expansionNodes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expansion_nodes",
			Help:      "Members included per tree expansion.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		mutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Relationship mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRender(outcome string) {
	if m == nil {
		return
	}
	m.renderTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageSeconds.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveExpansion(nodes int) {
	if m == nil {
		return
	}
	m.expansionNodes.Observe(float64(nodes))
}

// ObserveMutation labels the outcome with the error code, or "ok".
func (m *Metrics) ObserveMutation(op string, err error) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Outcome maps an error onto a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := family.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}
