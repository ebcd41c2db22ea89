// Package telemetry provides the explicit telemetry sink threaded into the
// session pool, dispatcher and proxy tools, constructed once and passed to
// every collaborator rather than reached for as a global singleton. Tracing
// runs over OpenTelemetry with a stdout span exporter; metrics are plain
// Prometheus counters/histograms/gauges registered against a caller-supplied
// registry, kept
// separate from the tracing stack rather than bridged through an otel
// metric exporter the module does not otherwise need.
package telemetry

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds the Prometheus instruments the proxy records against.
type Metrics struct {
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	TruncationsTotal prometheus.Counter
	UpstreamsReady   prometheus.Gauge
	UpstreamsFailed  prometheus.Gauge
}

// NewMetrics creates and registers every metric with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpproxy",
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls dispatched, by qualified tool name and outcome",
			},
			[]string{"tool", "outcome"},
		),
		ToolCallDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mcpproxy",
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds, by qualified tool name",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		CacheHitsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mcpproxy",
				Name:      "cache_hits_total",
				Help:      "Total cache lookups resolved to a live entry",
			},
		),
		CacheMissesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mcpproxy",
				Name:      "cache_misses_total",
				Help:      "Total cache lookups that missed or had expired",
			},
		),
		TruncationsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mcpproxy",
				Name:      "truncations_total",
				Help:      "Total tool responses truncated and cached by the response interceptor",
			},
		),
		UpstreamsReady: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcpproxy",
				Name:      "upstreams_ready",
				Help:      "Number of upstream sessions currently Ready",
			},
		),
		UpstreamsFailed: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcpproxy",
				Name:      "upstreams_failed",
				Help:      "Number of upstream sessions currently Failed",
			},
		),
	}
}

// Sink bundles the tracer and metrics every component that does I/O takes
// as an explicit dependency, instead of reaching for package-level state.
type Sink struct {
	Tracer  trace.Tracer
	Metrics *Metrics

	shutdown func(context.Context) error
}

// NewSink builds a Sink with a stdout-exporting tracer provider writing to
// w (os.Stderr in production, io.Discard in tests) and metrics registered
// against reg.
func NewSink(w io.Writer, reg prometheus.Registerer) (*Sink, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", "mcpproxy"),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Sink{
		Tracer:   tp.Tracer("mcpproxy"),
		Metrics:  NewMetrics(reg),
		shutdown: tp.Shutdown,
	}, nil
}

// Shutdown flushes any buffered spans. Safe to call even if NewSink's
// tracer provider was never exercised.
func (s *Sink) Shutdown(ctx context.Context) error {
	if s == nil || s.shutdown == nil {
		return nil
	}
	return s.shutdown(ctx)
}

// NewNoop returns a Sink with a no-op tracer and metrics registered
// against a private registry, for tests that don't care about telemetry.
func NewNoop() *Sink {
	return &Sink{
		Tracer:  trace.NewNoopTracerProvider().Tracer("mcpproxy"),
		Metrics: NewMetrics(prometheus.NewRegistry()),
	}
}
