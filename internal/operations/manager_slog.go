package operations

import (
	"context"
	"log/slog"
	"time"
)

func (m *Manager) logRunStart(ctx context.Context, operationID string, spec RunSpec) {
	m.logger.InfoContext(ctx, "run_start",
		slog.String("operation_id", operationID),
		slog.String("file", spec.File),
		slog.Int("window", spec.Params.Window),
		slog.Float64("threshold_k", spec.Params.ThresholdK),
		slog.Bool("per_state", spec.Params.PerState),
		slog.Bool("with_sensitivity", spec.WithSensitivity))
}

func (m *Manager) logRunComplete(ctx context.Context, operationID string, duration time.Duration, status string) {
	m.logger.InfoContext(ctx, "run_complete",
		slog.String("operation_id", operationID),
		slog.String("status", status),
		slog.Duration("duration", duration))
}

func (m *Manager) logRunError(ctx context.Context, operationID string, err error) {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	m.logger.ErrorContext(ctx, "run_error",
		slog.String("operation_id", operationID),
		slog.String("error", errorMsg))
}

func (m *Manager) logStepComplete(ctx context.Context, operationID, stepID string, duration time.Duration) {
	m.logger.InfoContext(ctx, "step_complete",
		slog.String("operation_id", operationID),
		slog.String("step", stepID),
		slog.Duration("duration", duration))
}

func (m *Manager) logStepError(ctx context.Context, operationID, stepID string, err error) {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	m.logger.ErrorContext(ctx, "step_error",
		slog.String("operation_id", operationID),
		slog.String("step", stepID),
		slog.String("error", errorMsg))
}
