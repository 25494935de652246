// Package tracing builds the tracer provider for pipeline spans.
package tracing

import (
	"fmt"
	"net/http"

	"github.com/rentfleet/aigw/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures NewProvider.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the client used to reach the collector.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// NewProvider returns a tracer provider for cfg. When tracing is enabled,
// spans are batched to the Jaeger collector at cfg.Endpoint; otherwise the
// provider samples nothing and exports nothing. Shutdown flushes pending
// spans.
func NewProvider(cfg config.TracingConfig, opts ...Option) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample())), nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	endpoint := []jaeger.CollectorEndpointOption{jaeger.WithEndpoint(cfg.Endpoint)}
	if o.httpClient != nil {
		endpoint = append(endpoint, jaeger.WithHTTPClient(o.httpClient))
	}
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(endpoint...))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	service := cfg.ServiceName
	if service == "" {
		service = "aigw"
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}
