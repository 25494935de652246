// Package metrics owns the gateway's Prometheus registry.
//
// Request-level series are plain Prometheus collectors. Pipeline latency is
// recorded through an OpenTelemetry meter whose Prometheus exporter writes
// into the same registry, so /metrics exposes both.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/rentfleet/aigw"

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry      *prometheus.Registry
	meterProvider otelmetric.MeterProvider

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   *prometheus.GaugeVec
	ErrorsTotal      *prometheus.CounterVec
	RateLimitHits    *prometheus.CounterVec
	PipelineOutcomes *prometheus.CounterVec
	NotifyTotal      *prometheus.CounterVec
	QueueRejections  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigw_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aigw_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aigw_http_active_requests",
				Help: "Number of in-flight HTTP requests by endpoint, plus queued and processing admission slots",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigw_errors_total",
				Help: "Total number of error responses by class",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigw_rate_limit_hits_total",
				Help: "Total number of rate limit hits by client",
			},
			[]string{"client"},
		),
		PipelineOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigw_pipeline_outcomes_total",
				Help: "Completion pipeline results by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		NotifyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aigw_notify_total",
				Help: "Notification relay results by outcome",
			},
			[]string{"outcome"},
		),
		QueueRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "aigw_queue_rejections_total",
				Help: "Requests turned away because the admission queue was full",
			},
		),
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.ActiveRequests.WithLabelValues("queued").Add(0)
	m.ActiveRequests.WithLabelValues("processing").Add(0)

	if exporter, err := otelprom.New(otelprom.WithRegisterer(registry)); err == nil {
		m.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	} else {
		m.meterProvider = noop.NewMeterProvider()
	}

	return m
}

// Meter returns the OpenTelemetry meter exported through the registry.
func (m *Metrics) Meter() otelmetric.Meter {
	return m.meterProvider.Meter(meterName)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}
