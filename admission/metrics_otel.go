package admission

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// otelMetrics publishes admission counters through the global meter
// provider. With no SDK installed the instruments are no-ops.
type otelMetrics struct {
	admitted metric.Int64Counter
	rejected metric.Int64Counter
	suspects metric.Int64Counter
}

func newOtelMetrics() *otelMetrics {
	meter := otel.Meter("github.com/stagepass/go-stagepass-core/admission")

	admitted, _ := meter.Int64Counter("admission.admitted",
		metric.WithDescription("Requests admitted"))
	rejected, _ := meter.Int64Counter("admission.rejected",
		metric.WithDescription("Requests rejected by a tier limit"))
	suspects, _ := meter.Int64Counter("admission.ddos_suspects",
		metric.WithDescription("Rejections flagged as DDoS suspects"))

	return &otelMetrics{
		admitted: admitted,
		rejected: rejected,
		suspects: suspects,
	}
}

func (m *otelMetrics) recordAdmitted(ctx context.Context) {
	if m == nil || m.admitted == nil {
		return
	}
	m.admitted.Add(ctx, 1)
}

func (m *otelMetrics) recordRejected(ctx context.Context, tier Tier) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", string(tier))))
}

func (m *otelMetrics) recordSuspect(ctx context.Context, tier Tier) {
	if m == nil || m.suspects == nil {
		return
	}
	m.suspects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", string(tier))))
}
