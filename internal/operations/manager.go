package operations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// Manager orchestrates run execution: it resolves the step order, drives
// each step under its own timeout with retries, and publishes every state
// change through the StatusBroadcaster.
type Manager struct {
	registry    *Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster
	tracer      *OperationTracer
	logger      *slog.Logger

	mu         sync.RWMutex
	operations map[string]*OperationState
	cancels    map[string]context.CancelFunc
}

// NewManager creates a run manager. A nil registry or config falls back to
// empty defaults so tests can construct managers piecemeal.
func NewManager(hub WebSocketHub, registry *Registry, config *Config, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: NewStatusBroadcaster(hub, logger),
		logger:      logger,
		operations:  make(map[string]*OperationState),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// RegisterStep registers a step with the manager.
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// SetConfig replaces the run configuration.
func (m *Manager) SetConfig(config *Config) {
	if config != nil {
		m.config = config
	}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetRegistry returns the step registry.
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster.
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// SetTracer attaches OTel instrumentation to run execution.
func (m *Manager) SetTracer(tracer *OperationTracer) {
	m.tracer = tracer
}

// Execute runs the pipeline described by spec under the given operation ID.
// It blocks until the run reaches a terminal status and returns the final
// response alongside the first error that stopped the run.
func (m *Manager) Execute(ctx context.Context, operationID string, spec RunSpec) (*OperationResponse, error) {
	if operationID == "" {
		operationID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}

	state := NewOperationState(operationID, spec)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.storeOperation(state, cancel)
	defer m.releaseCancel(operationID)

	if m.tracer != nil {
		var span traceSpan
		runCtx, span = m.tracer.StartRun(runCtx, operationID, spec)
		defer span.End()
	}

	m.logRunStart(runCtx, operationID, spec)

	steps, err := m.selectSteps(spec)
	if err != nil {
		m.logRunError(runCtx, operationID, err)
		state.Fail(err)
		m.broadcaster.FailOperation(operationID, err)
		return m.createResponse(state), err
	}

	stepIDs := make([]string, len(steps))
	for i, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
		stepIDs[i] = step.ID()
	}

	m.broadcaster.CreateOperation(operationID, stepIDs)

	state.Start()
	m.broadcaster.StartOperation(operationID)

	start := time.Now()
	err = m.executeSequential(runCtx, state, steps)

	if err != nil {
		if GetErrorType(err) == ErrorTypeCancellation {
			state.Cancel()
			m.broadcaster.CancelOperation(operationID)
		} else {
			state.Fail(err)
			m.broadcaster.FailOperation(operationID, err)
		}
	} else {
		state.Complete()
		m.broadcaster.CompleteOperation(operationID, "Run completed")
	}

	m.saveManifest(runCtx, state)

	if m.tracer != nil {
		m.tracer.RecordRunCompletion(runCtx, operationID, time.Since(start), err)
	}
	m.logRunComplete(runCtx, operationID, time.Since(start), string(state.CurrentStatus()))

	return m.createResponse(state), err
}

// selectSteps resolves the dependency-ordered step list for a spec,
// dropping the sensitivity step when the run did not ask for the grid.
func (m *Manager) selectSteps(spec RunSpec) ([]Step, error) {
	ordered, err := m.registry.DependencyOrder()
	if err != nil {
		return nil, NewFatalError("resolve step order", err)
	}

	steps := make([]Step, 0, len(ordered))
	for _, step := range ordered {
		if step.ID() == StepIDSensitivity && !spec.WithSensitivity {
			continue
		}
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return nil, NewFatalError("no steps registered", nil)
	}
	return steps, nil
}

// executeSequential drives the steps one by one in dependency order.
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		select {
		case <-ctx.Done():
			m.logger.WarnContext(ctx, "run cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			return NewCancellationError(step.ID())
		default:
		}

		stepState := state.GetStep(step.ID())
		if stepState != nil && stepState.CurrentStatus() == StepStatusSkipped {
			continue
		}

		m.logger.InfoContext(ctx, "executing step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			m.logStepError(ctx, state.ID, step.ID(), err)
			if !m.config.ContinueOnError {
				m.skipDependentSteps(state, steps, step.ID())
				return err
			}
			m.logger.WarnContext(ctx, "step failed, continuing",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// executeStep runs a single step with dependency checks, validation, a
// per-step timeout and retry on retryable errors.
func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStep(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(fmt.Sprintf("Dependencies not met: %v", err))
		m.broadcaster.SkipStep(state.ID, step.ID(), stepState.Message)
		return err
	}

	if err := step.Validate(state); err != nil {
		stepState.Skip(fmt.Sprintf("Validation failed: %v", err))
		m.broadcaster.SkipStep(state.ID, step.ID(), stepState.Message)
		return NewValidationError(step.ID(), err.Error())
	}

	timeout := m.config.GetStepTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if m.tracer != nil {
		var span traceSpan
		stepCtx, span = m.tracer.StartStep(stepCtx, state.ID, step.ID())
		defer span.End()
	}

	retryConfig := m.config.RetryConfig
	var lastErr error

	for attempt := 1; attempt <= retryConfig.MaxAttempts; attempt++ {
		stepState.Start()
		state.Manifest().RecordStepStart(step.ID(), step.Name())
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 1, "Step started")

		startTime := time.Now()
		err := step.Execute(stepCtx, state)
		duration := time.Since(startTime)

		if m.tracer != nil {
			m.tracer.RecordStepCompletion(stepCtx, state.ID, step.ID(), duration, err == nil)
		}

		if err == nil {
			m.logStepComplete(ctx, state.ID, step.ID(), duration)
			stepState.Complete()
			state.Manifest().RecordStepCompletion(step.ID())
			m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed")
			return nil
		}

		lastErr = err
		m.logger.ErrorContext(ctx, "step execution failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))

		if stepCtx.Err() != nil {
			// Distinguish an overall cancel from the per-step deadline.
			if ctx.Err() != nil {
				stepState.Fail(NewCancellationError(step.ID()))
				m.broadcaster.FailStep(state.ID, step.ID(), stepState.Error)
				state.Manifest().RecordStepFailure(step.ID(), stepState.Error)
				return NewCancellationError(step.ID())
			}
			timeoutErr := NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(timeoutErr)
			m.broadcaster.FailStep(state.ID, step.ID(), timeoutErr)
			state.Manifest().RecordStepFailure(step.ID(), timeoutErr)
			return timeoutErr
		}

		if !IsRetryable(err) || attempt >= retryConfig.MaxAttempts {
			wrapped := WrapError(err, step.ID(), "step execution failed")
			stepState.Fail(wrapped)
			m.broadcaster.FailStep(state.ID, step.ID(), wrapped)
			state.Manifest().RecordStepFailure(step.ID(), wrapped)
			return wrapped
		}

		delay := m.retryDelay(attempt, retryConfig)
		m.logger.WarnContext(ctx, "retrying step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", retryConfig.MaxAttempts),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-stepCtx.Done():
			timeoutErr := NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(timeoutErr)
			m.broadcaster.FailStep(state.ID, step.ID(), timeoutErr)
			state.Manifest().RecordStepFailure(step.ID(), timeoutErr)
			return timeoutErr
		}
	}

	wrapped := WrapError(lastErr, step.ID(), "step execution failed after retries")
	stepState.Fail(wrapped)
	m.broadcaster.FailStep(state.ID, step.ID(), wrapped)
	state.Manifest().RecordStepFailure(step.ID(), wrapped)
	return wrapped
}

// skipDependentSteps marks every step downstream of a failure as skipped.
func (m *Manager) skipDependentSteps(state *OperationState, steps []Step, failedStepID string) {
	for _, step := range steps {
		for _, dep := range step.Dependencies() {
			if dep != failedStepID {
				continue
			}
			stepState := state.GetStep(step.ID())
			if stepState != nil && stepState.CurrentStatus() == StepStatusPending {
				stepState.Skip(fmt.Sprintf("Dependency %s failed", failedStepID))
				m.broadcaster.SkipStep(state.ID, step.ID(), stepState.Message)
				m.skipDependentSteps(state, steps, step.ID())
			}
			break
		}
	}
}

// checkDependencies verifies every declared dependency completed.
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.Dependencies() {
		depState := state.GetStep(dep)
		if depState == nil {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency %s not found", dep))
		}
		if status := depState.CurrentStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep,
				fmt.Sprintf("dependency %s not completed (status: %s)", dep, status))
		}
	}
	return nil
}

func (m *Manager) retryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// saveManifest writes the run manifest next to the outputs.
func (m *Manager) saveManifest(ctx context.Context, state *OperationState) {
	if m.config.OutputDir == "" {
		return
	}
	path := filepath.Join(m.config.OutputDir, ManifestFileName)
	if err := state.Manifest().SaveToFile(path); err != nil {
		m.logger.WarnContext(ctx, "failed to save run manifest",
			slog.String("operation_id", state.ID),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// createResponse builds the final response from a run state.
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	clone := state.Clone()
	resp := &OperationResponse{
		ID:       clone.ID,
		Status:   clone.Status,
		Duration: state.Duration(),
		Steps:    clone.Steps,
	}
	if clone.Error != nil {
		resp.Error = clone.Error.Error()
	}
	return resp
}

// GetOperation returns a copy of a run's state.
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.operations[id]
	if !exists {
		return nil, ErrOperationNotFound
	}
	return state.Clone(), nil
}

// ListOperations returns copies of all known run states.
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, state := range m.operations {
		operations = append(operations, state.Clone())
	}
	return operations
}

// CancelOperation cancels a running run by cancelling its context. The
// executing goroutine observes the cancellation and finalizes status.
func (m *Manager) CancelOperation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.operations[id]
	if !exists {
		return ErrOperationNotFound
	}
	if state.CurrentStatus() != OperationStatusRunning && state.CurrentStatus() != OperationStatusPending {
		return ErrOperationNotRunning
	}

	if cancel, ok := m.cancels[id]; ok && cancel != nil {
		cancel()
	}
	return nil
}

// CancelAll cancels every running run.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, cancel := range m.cancels {
		if cancel != nil {
			cancel()
			m.logger.Info("cancelled operation", slog.String("operation_id", id))
		}
	}
}

func (m *Manager) storeOperation(state *OperationState, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = state
	m.cancels[state.ID] = cancel
}

// releaseCancel drops the cancel func once a run is terminal. The state
// itself is kept so GetOperation can serve finished runs; the broadcaster's
// CleanupOldOperations bounds long-term growth.
func (m *Manager) releaseCancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, id)
}
