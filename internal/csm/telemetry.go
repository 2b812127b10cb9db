package csm

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("causaloid.csm")
	meter  = otel.Meter("causaloid.csm")
)

// metrics holds the CSM instruments. A nil instrument is skipped, so a
// failed registration degrades observability without failing evaluation.
type metrics struct {
	evaluations metric.Int64Counter
	failures    metric.Int64Counter
	fired       metric.Int64Counter
	latency     metric.Float64Histogram
}

func newMetrics(logger *slog.Logger) *metrics {
	m := &metrics{}
	var initErrors []string

	var err error
	m.evaluations, err = meter.Int64Counter("csm_evaluations_total",
		metric.WithDescription("Number of state evaluations"),
	)
	if err != nil {
		initErrors = append(initErrors, "evaluations: "+err.Error())
	}

	m.failures, err = meter.Int64Counter("csm_evaluation_failures_total",
		metric.WithDescription("Number of evaluations ending in an evaluation or action error"),
	)
	if err != nil {
		initErrors = append(initErrors, "failures: "+err.Error())
	}

	m.fired, err = meter.Int64Counter("csm_actions_fired_total",
		metric.WithDescription("Number of actions fired"),
	)
	if err != nil {
		initErrors = append(initErrors, "fired: "+err.Error())
	}

	m.latency, err = meter.Float64Histogram("csm_evaluation_duration_seconds",
		metric.WithDescription("Time spent evaluating one state, action included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		initErrors = append(initErrors, "latency: "+err.Error())
	}

	if len(initErrors) > 0 {
		logger.Error("failed to initialize some csm metrics (observability degraded)",
			slog.Int("failed_count", len(initErrors)),
			slog.Any("errors", initErrors),
		)
	}
	return m
}

func (m *metrics) record(ctx context.Context, res Result, seconds float64) {
	attrs := metric.WithAttributes(attribute.Bool("fired", res.Fired))
	if m.evaluations != nil {
		m.evaluations.Add(ctx, 1, attrs)
	}
	if res.Err != nil && m.failures != nil {
		m.failures.Add(ctx, 1)
	}
	if res.Fired && m.fired != nil {
		m.fired.Add(ctx, 1)
	}
	if m.latency != nil {
		m.latency.Record(ctx, seconds)
	}
}
