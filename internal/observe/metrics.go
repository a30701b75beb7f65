// Package observe provides application-wide observability primitives for
// ScholarScope: OpenTelemetry metrics, tracing helpers, and the provider
// bootstrap that bridges metrics to a scrapeable Prometheus endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ScholarScope metrics.
const meterName = "github.com/scholarscope/scholarscope"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// RequestDuration tracks the wall-clock latency of one logical
	// upstream request, including retries and backoff waits. Use with
	// attributes: attribute.String("path", ...), attribute.String("outcome", ...)
	RequestDuration metric.Float64Histogram

	// RequestRetries counts retry waits taken by upstream requests.
	// Use with attribute: attribute.String("path", ...)
	RequestRetries metric.Int64Counter

	// ToolDuration tracks end-to-end MCP tool execution latency.
	// Use with attribute: attribute.String("tool", ...)
	ToolDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote REST calls that may sit behind several retry waits.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RequestDuration, err = m.Float64Histogram("scholarscope.request.duration",
		metric.WithDescription("Latency of one logical upstream request including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RequestRetries, err = m.Int64Counter("scholarscope.request.retries",
		metric.WithDescription("Retry waits taken by upstream requests, by path."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("scholarscope.tool.duration",
		metric.WithDescription("End-to-end MCP tool execution latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("scholarscope.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall records a tool invocation and its duration in seconds with
// the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
	m.ToolDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordRequest records the duration of one logical upstream request with
// its outcome ("success", "not_found", or "error").
func (m *Metrics) RecordRequest(ctx context.Context, path, outcome string, seconds float64) {
	m.RequestDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("outcome", outcome),
		),
	)
}
