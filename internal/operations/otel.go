package operations

import (
	"context"
	"fmt"
	"time"

	"vegcli/internal/infrastructure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies run spans in trace output.
const TracerName = "vegcli.operation"

// traceSpan keeps the manager decoupled from the OTel import.
type traceSpan = trace.Span

// OperationTracer provides OpenTelemetry instrumentation for run execution.
type OperationTracer struct {
	tracer          trace.Tracer
	meter           metric.Meter
	businessMetrics *infrastructure.BusinessMetrics
}

// NewOperationTracer creates a tracer backed by the shared OTel providers.
func NewOperationTracer(providers *infrastructure.OTelProviders) (*OperationTracer, error) {
	businessMetrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create business metrics: %w", err)
	}

	return &OperationTracer{
		tracer:          otel.Tracer(TracerName),
		meter:           providers.Meter,
		businessMetrics: businessMetrics,
	}, nil
}

// Metrics returns the business metrics this tracer records into.
func (t *OperationTracer) Metrics() *infrastructure.BusinessMetrics {
	return t.businessMetrics
}

// StartRun opens the span covering a whole run and bumps the active-run
// gauge.
func (t *OperationTracer) StartRun(ctx context.Context, operationID string, spec RunSpec) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("operation.file", spec.File),
			attribute.Int("operation.window", spec.Params.Window),
			attribute.Float64("operation.threshold_k", spec.Params.ThresholdK),
			attribute.Bool("operation.per_state", spec.Params.PerState),
			attribute.Bool("operation.with_sensitivity", spec.WithSensitivity),
		),
	)

	t.businessMetrics.RunActiveRuns.Add(ctx, 1)

	return ctx, span
}

// StartStep opens the span covering one step execution.
func (t *OperationTracer) StartStep(ctx context.Context, operationID, stepID string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("operation.step.%s", stepID),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
		),
	)
	return ctx, span
}

// RecordRunCompletion finalizes run metrics and span status.
func (t *OperationTracer) RecordRunCompletion(ctx context.Context, operationID string, duration time.Duration, err error) {
	t.businessMetrics.RunActiveRuns.Add(ctx, -1)
	infrastructure.RecordRunMetrics(ctx, t.businessMetrics, operationID, duration, err == nil, err)

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Float64("operation.duration_seconds", duration.Seconds()))
	if err == nil {
		span.SetStatus(codes.Ok, "run completed")
		return
	}
	if GetErrorType(err) == ErrorTypeCancellation {
		t.businessMetrics.RunCancellations.Add(ctx, 1,
			metric.WithAttributes(attribute.String("operation.id", operationID)))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordStepCompletion records per-step metrics and span status.
func (t *OperationTracer) RecordStepCompletion(ctx context.Context, operationID, stepID string, duration time.Duration, success bool) {
	infrastructure.RecordRunStepMetrics(ctx, t.businessMetrics, operationID, stepID, duration, success)

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.Bool("step.success", success),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)
	if success {
		span.SetStatus(codes.Ok, "step completed")
	} else {
		span.SetStatus(codes.Error, "step execution failed")
	}
}

// RecordRowsLoaded counts panel rows ingested by the load step.
func (t *OperationTracer) RecordRowsLoaded(ctx context.Context, rows int, source string) {
	t.businessMetrics.RowsLoaded.Add(ctx, int64(rows),
		metric.WithAttributes(attribute.String("source", source)))
}

// RecordShocksDetected counts detected shock months.
func (t *OperationTracer) RecordShocksDetected(ctx context.Context, shocks int, source string) {
	t.businessMetrics.ShocksDetected.Add(ctx, int64(shocks),
		metric.WithAttributes(attribute.String("shock_source", source)))
}

// RecordRegressionsFitted counts per-τ regressions the estimators ran.
func (t *OperationTracer) RecordRegressionsFitted(ctx context.Context, fits int, estimator string) {
	t.businessMetrics.RegressionsFitted.Add(ctx, int64(fits),
		metric.WithAttributes(attribute.String("estimator", estimator)))
}
