// Package metrics provides Prometheus collectors for the render pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// RenderMetrics records render outcomes. A nil *RenderMetrics is valid and
// records nothing.
type RenderMetrics struct {
	registry *prometheus.Registry

	rendersTotal   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	templateReads  *prometheus.CounterVec
}

func New() (*RenderMetrics, error) {
	registry := prometheus.NewRegistry()
	m := &RenderMetrics{
		registry: registry,
		rendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssrserve_renders_total",
				Help: "Total number of page renders by outcome",
			},
			[]string{"mode", "outcome"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssrserve_render_duration_seconds",
				Help:    "Time spent producing a page, from template load to substitution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
			[]string{"mode"},
		),
		templateReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssrserve_template_reads_total",
				Help: "Total number of HTML template reads from disk",
			},
			[]string{"mode"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.rendersTotal,
		m.renderDuration,
		m.templateReads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *RenderMetrics) ObserveRender(mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.rendersTotal.WithLabelValues(mode, outcome).Inc()
	m.renderDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *RenderMetrics) TemplateRead(mode string) {
	if m == nil {
		return
	}
	m.templateReads.WithLabelValues(mode).Inc()
}

func (m *RenderMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *RenderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
