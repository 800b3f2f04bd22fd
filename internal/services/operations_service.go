package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vegcli/internal/config"
	"vegcli/internal/eventstudy"
	"vegcli/internal/operations"
	api "vegcli/pkg/contracts/api/v1"
)

// DefaultRunTimeout bounds a single analysis run end to end. Individual
// steps carry their own tighter timeouts.
const DefaultRunTimeout = 30 * time.Minute

// BroadcastHub is the dashboard-facing broadcast surface used for run
// lifecycle messages. The websocket hub implements it.
type BroadcastHub interface {
	BroadcastOutput(message, level string)
	BroadcastError(code, message, details, step string, recoverable bool)
	BroadcastRefresh(source string, components []string)
}

// OperationService translates API requests into run specs, launches runs
// asynchronously on the manager, and answers status queries. Step-level
// progress reaches the dashboard through the manager's own snapshot
// broadcaster; this service adds the run-level console and refresh
// messages around it.
type OperationService struct {
	manager    *operations.Manager
	hub        BroadcastHub
	defaults   config.AnalysisConfig
	runTimeout time.Duration
	logger     *slog.Logger

	wg sync.WaitGroup
}

// NewOperationService creates the operation service. The manager must
// already have its steps registered.
func NewOperationService(manager *operations.Manager, hub BroadcastHub, defaults config.AnalysisConfig, runTimeout time.Duration, logger *slog.Logger) *OperationService {
	if logger == nil {
		logger = slog.Default()
	}
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &OperationService{
		manager:    manager,
		hub:        hub,
		defaults:   defaults,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// BuildRunSpec merges the configured analysis defaults with the request
// overrides. Zero-valued request fields keep the configured values.
func (s *OperationService) BuildRunSpec(req *api.RunRequest) operations.RunSpec {
	params := eventstudy.DefaultParams()
	if s.defaults.Window > 0 {
		params.Window = s.defaults.Window
	}
	if s.defaults.ThresholdK > 0 {
		params.ThresholdK = s.defaults.ThresholdK
	}
	if s.defaults.MaxShocks > 0 {
		params.MaxShocks = s.defaults.MaxShocks
	}
	if s.defaults.MinObs > 0 {
		params.MinObs = s.defaults.MinObs
	}
	if s.defaults.HACLags > 0 {
		params.HACLags = s.defaults.HACLags
	}
	params.PerState = s.defaults.PerState
	if len(s.defaults.ExplicitShocks) > 0 {
		params.ExplicitShocks = append([]string(nil), s.defaults.ExplicitShocks...)
	}

	spec := operations.RunSpec{
		File:           s.defaults.File,
		Sheet:          s.defaults.Sheet,
		SensWindows:    append([]int(nil), s.defaults.GridWindows...),
		SensThresholds: append([]float64(nil), s.defaults.GridThresholds...),
	}

	if req != nil {
		if req.File != "" {
			spec.File = req.File
		}
		if req.Sheet != "" {
			spec.Sheet = req.Sheet
		}
		if req.Window > 0 {
			params.Window = req.Window
		}
		if req.ThresholdK > 0 {
			params.ThresholdK = req.ThresholdK
		}
		if req.MaxShocks > 0 {
			params.MaxShocks = req.MaxShocks
		}
		if req.PerState {
			params.PerState = true
		}
		if len(req.ExplicitShocks) > 0 {
			params.ExplicitShocks = append([]string(nil), req.ExplicitShocks...)
		}
		spec.WithSensitivity = req.WithSensitivity
	}

	spec.Params = params
	return spec
}

// StartRun validates the request, assigns a run ID and launches the run in
// the background. It returns immediately; progress flows over the
// websocket and GetStatus.
func (s *OperationService) StartRun(ctx context.Context, req *api.RunRequest) (string, error) {
	spec := s.BuildRunSpec(req)
	if err := spec.Params.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	operationID := uuid.New().String()

	s.logger.InfoContext(ctx, "starting analysis run",
		slog.String("operation_id", operationID),
		slog.String("file", spec.File),
		slog.Int("window", spec.Params.Window),
		slog.Float64("threshold_k", spec.Params.ThresholdK),
		slog.Bool("per_state", spec.Params.PerState),
		slog.Bool("with_sensitivity", spec.WithSensitivity))

	s.wg.Add(1)
	go s.run(operationID, spec)

	return operationID, nil
}

// run drives one analysis run to completion. It deliberately detaches from
// the request context so an HTTP disconnect does not kill the run; the
// run timeout and CancelOperation are the only ways to stop it.
func (s *OperationService) run(operationID string, spec operations.RunSpec) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	s.hub.BroadcastOutput(fmt.Sprintf("Run %s started", operationID), "info")

	resp, err := s.manager.Execute(ctx, operationID, spec)
	switch {
	case err != nil && resp != nil && resp.Status == operations.OperationStatusCancelled:
		s.logger.Warn("analysis run cancelled",
			slog.String("operation_id", operationID),
			slog.Duration("duration", resp.Duration))
		s.hub.BroadcastOutput(fmt.Sprintf("Run %s cancelled", operationID), "warning")
	case err != nil:
		s.logger.Error("analysis run failed",
			slog.String("operation_id", operationID),
			slog.String("error", err.Error()))
		s.hub.BroadcastError("RUN_FAILED",
			fmt.Sprintf("Run %s failed", operationID),
			err.Error(), failedStepID(resp), false)
	default:
		s.logger.Info("analysis run completed",
			slog.String("operation_id", operationID),
			slog.Duration("duration", resp.Duration))
		s.hub.BroadcastOutput(
			fmt.Sprintf("Run %s completed in %s", operationID, resp.Duration.Round(time.Millisecond)),
			"info")
		s.hub.BroadcastRefresh("operation", []string{"results", "charts"})
	}
}

// failedStepID returns the ID of the first failed step, if any.
func failedStepID(resp *operations.OperationResponse) string {
	if resp == nil {
		return ""
	}
	for id, step := range resp.Steps {
		if step != nil && step.Status == operations.StepStatusFailed {
			return id
		}
	}
	return ""
}

// GetStatus returns the state of one run.
func (s *OperationService) GetStatus(ctx context.Context, operationID string) (*operations.OperationState, error) {
	if operationID == "" {
		return nil, fmt.Errorf("%w: operation ID is required", ErrInvalidInput)
	}

	state, err := s.manager.GetOperation(operationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}
	return state, nil
}

// ListOperations returns every run the manager knows about.
func (s *OperationService) ListOperations(ctx context.Context) []*operations.OperationState {
	return s.manager.ListOperations()
}

// ListOperationsByStatus returns the runs currently in the given status.
func (s *OperationService) ListOperationsByStatus(ctx context.Context, status operations.OperationStatusValue) []*operations.OperationState {
	var result []*operations.OperationState
	for _, state := range s.manager.ListOperations() {
		if state.CurrentStatus() == status {
			result = append(result, state)
		}
	}
	return result
}

// CancelOperation cancels a running run. Finished runs cannot be
// cancelled and yield ErrOperationNotRunning.
func (s *OperationService) CancelOperation(ctx context.Context, operationID string) error {
	if err := s.manager.CancelOperation(operationID); err != nil {
		if errors.Is(err, operations.ErrOperationNotRunning) {
			return fmt.Errorf("%w: %s", ErrOperationNotRunning, operationID)
		}
		return fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}

	s.logger.InfoContext(ctx, "operation cancel requested",
		slog.String("operation_id", operationID))
	return nil
}

// CancelAll cancels every running run. Used on shutdown.
func (s *OperationService) CancelAll(ctx context.Context) {
	s.manager.CancelAll()
	s.logger.InfoContext(ctx, "all operations cancelled")
}

// Shutdown cancels running runs and waits for their goroutines to drain,
// or until the context expires.
func (s *OperationService) Shutdown(ctx context.Context) error {
	s.manager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait aborted: %w", ctx.Err())
	}
}

// RunMetrics summarizes run counts for the dashboard.
type RunMetrics struct {
	Total     int       `json:"total_operations"`
	Active    int       `json:"active_operations"`
	Completed int       `json:"completed_operations"`
	Failed    int       `json:"failed_operations"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics counts runs by status.
func (s *OperationService) Metrics(ctx context.Context) RunMetrics {
	states := s.manager.ListOperations()

	m := RunMetrics{Total: len(states), Timestamp: time.Now()}
	for _, state := range states {
		switch state.CurrentStatus() {
		case operations.OperationStatusPending, operations.OperationStatusRunning:
			m.Active++
		case operations.OperationStatusCompleted:
			m.Completed++
		case operations.OperationStatusFailed, operations.OperationStatusCancelled:
			m.Failed++
		}
	}
	return m
}

// StepType describes one registered pipeline step for the dashboard.
type StepType struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	Optional     bool     `json:"optional"`
}

// StepTypes lists the registered steps in registration order.
func (s *OperationService) StepTypes(ctx context.Context) []StepType {
	steps := s.manager.GetRegistry().List()

	types := make([]StepType, 0, len(steps))
	for _, step := range steps {
		types = append(types, StepType{
			ID:           step.ID(),
			Name:         step.Name(),
			Description:  stepDescription(step.ID()),
			Dependencies: step.Dependencies(),
			Optional:     step.ID() == operations.StepIDSensitivity,
		})
	}
	return types
}

// stepDescription returns the dashboard blurb for each step.
func stepDescription(stepID string) string {
	descriptions := map[string]string{
		operations.StepIDLoadPanel:    "Load and normalize the state-month price panel",
		operations.StepIDDetectShocks: "Detect national price-shock months from the panel",
		operations.StepIDConvergence:  "Estimate the sigma- and beta-convergence paths around each shock",
		operations.StepIDRobustness:   "Re-estimate the beta path under HC1, clustered and HAC standard errors",
		operations.StepIDCharts:       "Render the sigma-path, beta-path and half-life charts",
		operations.StepIDSensitivity:  "Recompute the beta path over the window/threshold grid",
	}

	if desc, ok := descriptions[stepID]; ok {
		return desc
	}
	return "Analysis step"
}
