package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "vegcli/internal/errors"
	"vegcli/internal/infrastructure"
	"vegcli/internal/middleware"
	"vegcli/internal/operations"
	"vegcli/internal/services"
	api "vegcli/pkg/contracts/api/v1"
)

// Hub interface defines WebSocket hub operations
type Hub interface {
	BroadcastUpdate(updateType, subtype, action string, data interface{})
}

// OperationsHandler handles analysis run HTTP requests
type OperationsHandler struct {
	service   OperationServiceInterface
	wsHub     Hub
	logger    *slog.Logger
	validator *middleware.ValidationMiddleware
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service OperationServiceInterface, wsHub Hub, logger *slog.Logger) *OperationsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if wsHub == nil {
		panic("wsHub cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OperationsHandler{
		service:   service,
		wsHub:     wsHub,
		logger:    logger.With(slog.String("handler", "operations")),
		validator: middleware.NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false)),
	}
}

// Routes returns a chi router for operations endpoints
func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Apply timeout middleware to all operations routes
	r.Use(middleware.Timeout(60*time.Second, h.logger))

	// Operations endpoints
	r.Get("/types", h.GetStepTypes)
	r.Get("/metrics", h.GetRunMetrics)
	r.Post("/start", h.StartRun)
	r.Post("/{id}/stop", h.StopOperation)
	r.Get("/{id}/status", h.GetOperationStatus)
	r.Get("/", h.ListOperations)
	r.Delete("/{id}", h.DeleteOperation)

	return r
}

// StartRun handles POST /api/operations/start
func (h *OperationsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("operations-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "operations_handler.start_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/start"),
			attribute.String("request_id", reqID),
			attribute.String("component", "operations_handler"),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run start request",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
		slog.String("operation", "start_run"),
	)

	// An empty body starts a run with the configured defaults.
	data := &api.RunRequest{}
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, data); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "request_decoding"))

			h.logger.ErrorContext(ctx, "failed to decode run request",
				slog.String("error", err.Error()),
				slog.String("request_id", reqID))

			problem := apierrors.NewProblemDetails(
				http.StatusBadRequest,
				"/errors/validation_failed",
				"validation_failed",
				"Request body is not valid JSON",
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

			render.Render(w, r, problem)
			return
		}
	}

	if err := h.validator.ValidateStruct(data); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "request_validation"))

		h.logger.ErrorContext(ctx, "run request validation failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		problem := apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			err.Error(),
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		var apiErr *apierrors.APIError
		if errors.As(err, &apiErr) && apiErr.Details != nil {
			problem = problem.WithExtension("errors", apiErr.Details)
		}

		render.Render(w, r, problem)
		return
	}

	// Add span attributes
	span.SetAttributes(
		attribute.String("run.file", data.File),
		attribute.Int("run.window", data.Window),
		attribute.Bool("run.per_state", data.PerState),
		attribute.Bool("run.with_sensitivity", data.WithSensitivity),
	)

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	operationID, err := h.service.StartRun(startCtx, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run start failed")

		h.logger.ErrorContext(ctx, "failed to start run",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		if errors.Is(err, services.ErrInvalidInput) {
			problem := apierrors.NewProblemDetails(
				http.StatusBadRequest,
				"/errors/validation_failed",
				"validation_failed",
				err.Error(),
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

			render.Render(w, r, problem)
			return
		}

		problem := apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/run_start_failed",
			"run_start_failed",
			"Failed to start analysis run",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))

		render.Render(w, r, problem)
		return
	}

	span.SetAttributes(attribute.String("operation.id", operationID))

	h.logger.InfoContext(ctx, "run accepted",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID))

	// Send WebSocket notification
	h.wsHub.BroadcastUpdate("operation_update", "queued", "pending", map[string]interface{}{
		"operation_id": operationID,
		"timestamp":    time.Now().UTC(),
	})

	// Return 202 Accepted, progress streams over the WebSocket
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, api.RunResponse{
		OperationID:  operationID,
		Status:       "pending",
		Message:      "Analysis run accepted",
		WebSocketURL: "/ws",
	})
}

// StopOperation handles POST /api/operations/{id}/stop
func (h *OperationsHandler) StopOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operationID := chi.URLParam(r, "id")
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("operations-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "operations_handler.stop_operation",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/{id}/stop"),
			attribute.String("operation.id", operationID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run stop request",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	// Cancel operation
	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cancelStart := time.Now()
	err := h.service.CancelOperation(cancelCtx, operationID)
	cancelDuration := time.Since(cancelStart)

	// Add cancellation duration to span
	span.SetAttributes(
		attribute.Float64("cancellation.duration_ms", float64(cancelDuration.Milliseconds())),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run cancellation failed")

		h.logger.ErrorContext(ctx, "failed to cancel run",
			slog.String("operation_id", operationID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		// Check specific error types
		if errors.Is(err, services.ErrOperationNotFound) {
			problem := apierrors.NewProblemDetails(
				http.StatusNotFound,
				"/errors/not_found",
				"not_found",
				"Operation not found",
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("operation_id", operationID)

			render.Render(w, r, problem)
			return
		}

		if errors.Is(err, services.ErrOperationNotRunning) {
			problem := apierrors.NewProblemDetails(
				http.StatusConflict,
				"/errors/invalid_state",
				"invalid_state",
				"Operation has already finished and cannot be cancelled",
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("operation_id", operationID)

			render.Render(w, r, problem)
			return
		}

		// Generic error
		problem := apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/cancellation_failed",
			"cancellation_failed",
			"Failed to cancel operation",
			r.URL.Path+"#"+reqID,
		).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
			WithExtension("operation_id", operationID)

		render.Render(w, r, problem)
		return
	}

	// Success
	h.logger.InfoContext(ctx, "run cancelled",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID))

	// Send WebSocket notification
	h.wsHub.BroadcastUpdate("operation_update", "cancelled", "cancelled", map[string]interface{}{
		"operation_id": operationID,
		"timestamp":    time.Now().UTC(),
	})

	render.JSON(w, r, map[string]string{
		"message": "Operation cancelled successfully",
	})
}

// GetOperationStatus handles GET /api/operations/{id}/status
func (h *OperationsHandler) GetOperationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operationID := chi.URLParam(r, "id")
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("operations-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "operations_handler.get_status",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/{id}/status"),
			attribute.String("operation.id", operationID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "run status request",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID))

	// Get status
	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	state, err := h.service.GetStatus(statusCtx, operationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status retrieval failed")

		h.logger.ErrorContext(ctx, "failed to get run status",
			slog.String("operation_id", operationID),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.handleError(w, r, err, map[string]interface{}{
			"operation_id": operationID,
		})
		return
	}

	// Snapshot before rendering, the run goroutine may still be writing.
	snapshot := state.Clone()

	// Add span attributes
	span.SetAttributes(
		attribute.String("operation.status", string(snapshot.Status)),
		attribute.Int("operation.steps_count", len(snapshot.Steps)),
	)

	// Convert to response format
	response := map[string]interface{}{
		"id":         snapshot.ID,
		"status":     snapshot.Status,
		"start_time": snapshot.StartTime,
		"steps":      snapshot.Steps,
	}

	if snapshot.EndTime != nil {
		response["end_time"] = snapshot.EndTime
		response["duration"] = snapshot.Duration().String()
	}

	if snapshot.Error != nil {
		response["error"] = snapshot.Error.Error()
	}

	render.JSON(w, r, response)
}

// ListOperations handles GET /api/operations
func (h *OperationsHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("operations-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "operations_handler.list_operations",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	// Check for status filter
	statusFilter := r.URL.Query().Get("status")

	h.logger.DebugContext(ctx, "listing runs",
		slog.String("status_filter", statusFilter),
		slog.String("request_id", reqID))

	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var states []*operations.OperationState

	if statusFilter != "" {
		// Validate status filter
		validStatuses := map[string]operations.OperationStatusValue{
			"pending":   operations.OperationStatusPending,
			"running":   operations.OperationStatusRunning,
			"completed": operations.OperationStatusCompleted,
			"failed":    operations.OperationStatusFailed,
			"cancelled": operations.OperationStatusCancelled,
		}

		status, ok := validStatuses[statusFilter]
		if !ok {
			problem := apierrors.NewProblemDetails(
				http.StatusBadRequest,
				"/errors/validation_failed",
				"validation_failed",
				fmt.Sprintf("Invalid status filter: %s", statusFilter),
				r.URL.Path+"#"+reqID,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("valid_statuses", []string{"pending", "running", "completed", "failed", "cancelled"})

			render.Render(w, r, problem)
			return
		}

		states = h.service.ListOperationsByStatus(listCtx, status)
		span.SetAttributes(attribute.String("filter.status", statusFilter))
	} else {
		states = h.service.ListOperations(listCtx)
	}

	// Add span attributes
	span.SetAttributes(attribute.Int("operations.count", len(states)))

	// Convert to response format
	list := make([]map[string]interface{}, len(states))
	for i, op := range states {
		snapshot := op.Clone()

		list[i] = map[string]interface{}{
			"id":          snapshot.ID,
			"status":      snapshot.Status,
			"start_time":  snapshot.StartTime,
			"steps_count": len(snapshot.Steps),
		}

		if snapshot.EndTime != nil {
			list[i]["end_time"] = snapshot.EndTime
			list[i]["duration"] = snapshot.Duration().String()
		}

		if snapshot.Error != nil {
			list[i]["error"] = snapshot.Error.Error()
		}
	}

	render.JSON(w, r, list)
}

// DeleteOperation handles DELETE /api/operations/{id}
func (h *OperationsHandler) DeleteOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operationID := chi.URLParam(r, "id")
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("operations-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "operations_handler.delete_operation",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/{id}"),
			attribute.String("operation.id", operationID),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "run delete request",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID))

	// Run history lives in memory for the life of the process. Deletion
	// acknowledges the request once the run is known.
	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := h.service.GetStatus(statusCtx, operationID)
	if err != nil {
		h.handleError(w, r, err, map[string]interface{}{
			"operation_id": operationID,
		})
		return
	}

	h.logger.InfoContext(ctx, "run deletion acknowledged",
		slog.String("operation_id", operationID),
		slog.String("request_id", reqID))

	w.WriteHeader(http.StatusNoContent)
}

// GetStepTypes handles GET /api/operations/types
func (h *OperationsHandler) GetStepTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("operations-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "operations_handler.get_step_types",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/types"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "getting step types",
		slog.String("request_id", reqID))

	typesCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	types := h.service.StepTypes(typesCtx)

	// Add span attributes
	span.SetAttributes(attribute.Int("step_types.count", len(types)))

	render.JSON(w, r, types)
}

// GetRunMetrics handles GET /api/operations/metrics
func (h *OperationsHandler) GetRunMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	tracer := otel.Tracer("operations-handler")

	// Start OpenTelemetry span
	ctx, span := tracer.Start(ctx, "operations_handler.get_run_metrics",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/operations/metrics"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.DebugContext(ctx, "getting run metrics",
		slog.String("request_id", reqID))

	metricsCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	metrics := h.service.Metrics(metricsCtx)

	// Add span attributes
	span.SetAttributes(attribute.Int("operations.total", metrics.Total))

	render.JSON(w, r, metrics)
}

// handleError centralizes error handling for the handler
func (h *OperationsHandler) handleError(w http.ResponseWriter, r *http.Request, err error, extensions map[string]interface{}) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	traceID := infrastructure.TraceIDFromContext(ctx)

	// Log error
	h.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))

	// Determine status code and error type
	var problem *apierrors.ProblemDetails

	switch {
	case errors.Is(err, services.ErrOperationNotFound):
		problem = apierrors.NewProblemDetails(
			http.StatusNotFound,
			"/errors/not_found",
			"not_found",
			"Operation not found",
			r.URL.Path+"#"+reqID,
		)

	case errors.Is(err, services.ErrInvalidInput):
		problem = apierrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation_failed",
			"validation_failed",
			err.Error(),
			r.URL.Path+"#"+reqID,
		)

	default:
		problem = apierrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal_error",
			"internal_error",
			"An unexpected error occurred",
			r.URL.Path+"#"+reqID,
		)
	}

	problem = problem.WithExtension("trace_id", traceID)
	for key, value := range extensions {
		problem = problem.WithExtension(key, value)
	}

	render.Render(w, r, problem)
}
