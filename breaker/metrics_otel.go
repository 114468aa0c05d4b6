package breaker

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// otelMetrics publishes breaker counters through the global meter
// provider. With no SDK installed the instruments are no-ops.
type otelMetrics struct {
	rejections  metric.Int64Counter
	transitions metric.Int64Counter
}

func newOtelMetrics() *otelMetrics {
	meter := otel.Meter("github.com/stagepass/go-stagepass-core/breaker")

	rejections, _ := meter.Int64Counter("breaker.rejections",
		metric.WithDescription("Calls rejected by an open circuit"))
	transitions, _ := meter.Int64Counter("breaker.transitions",
		metric.WithDescription("Circuit state transitions"))

	return &otelMetrics{
		rejections:  rejections,
		transitions: transitions,
	}
}

func (m *otelMetrics) recordRejection(ctx context.Context, resource string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", resource)))
}

func (m *otelMetrics) recordTransition(ctx context.Context, resource string, from, to State) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("from", from.String()),
		attribute.String("to", to.String())))
}
