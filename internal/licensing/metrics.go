package licensing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments for the connector core.
// A nil *Metrics is valid and records nothing, which keeps tests and the
// CLI free of meter plumbing.
type Metrics struct {
	remoteCalls        metric.Int64Counter
	remoteCallDuration metric.Float64Histogram
	operations         metric.Int64Counter
	operationDuration  metric.Float64Histogram
}

// NewMetrics creates the connector instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	remoteCalls, err := meter.Int64Counter("bridge_remote_calls_total",
		metric.WithDescription("Remote license API calls by method and status"))
	if err != nil {
		return nil, err
	}
	remoteCallDuration, err := meter.Float64Histogram("bridge_remote_call_duration_seconds",
		metric.WithDescription("Remote license API call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	operations, err := meter.Int64Counter("bridge_operations_total",
		metric.WithDescription("Lifecycle operations by name and outcome"))
	if err != nil {
		return nil, err
	}
	operationDuration, err := meter.Float64Histogram("bridge_operation_duration_seconds",
		metric.WithDescription("Lifecycle operation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		remoteCalls:        remoteCalls,
		remoteCallDuration: remoteCallDuration,
		operations:         operations,
		operationDuration:  operationDuration,
	}, nil
}

// RecordRemoteCall counts one outbound call. Status 0 means the call
// never produced an HTTP response.
func (m *Metrics) RecordRemoteCall(ctx context.Context, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	m.remoteCalls.Add(ctx, 1, attrs)
	m.remoteCallDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOperation counts one lifecycle operation outcome.
func (m *Metrics) RecordOperation(ctx context.Context, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)
	m.operations.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
}
