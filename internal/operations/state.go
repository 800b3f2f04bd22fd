package operations

import (
	"sync"
	"time"

	"vegcli/internal/eventstudy"
	"vegcli/internal/panel"
	"vegcli/pkg/contracts/domain"
)

// OperationStatusValue represents the overall run status enum.
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState holds everything one run accumulates: the step states plus
// the typed products each step leaves behind for the steps after it.
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	Error error `json:"error,omitempty"`

	spec RunSpec

	// Step products in pipeline order. Unexported so snapshots stay small;
	// accessors hand them to downstream steps.
	panel     *panel.Panel
	shocks    domain.ShockSet
	hasShocks bool
	windows   []eventstudy.EventObs
	result    *eventstudy.StudyResult
	robust    []domain.RobustPoint
	grid      []domain.SensitivityPoint

	manifest *RunManifest
}

// NewOperationState creates a pending state for one run.
func NewOperationState(id string, spec RunSpec) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		spec:      spec,
		manifest:  NewRunManifest(id, spec),
	}
}

// Spec returns the run specification this state was created with.
func (s *OperationState) Spec() RunSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec
}

// Start marks the run as running.
func (s *OperationState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = OperationStatusRunning
	s.StartTime = time.Now()
	s.manifest.SetStatus(string(OperationStatusRunning))
}

// Complete marks the run as completed.
func (s *OperationState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = OperationStatusCompleted
	s.manifest.SetStatus(string(OperationStatusCompleted))
}

// Fail marks the run as failed.
func (s *OperationState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = OperationStatusFailed
	s.Error = err
	s.manifest.SetError(err)
}

// Cancel marks the run as cancelled.
func (s *OperationState) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = OperationStatusCancelled
	s.manifest.SetStatus(string(OperationStatusCancelled))
}

// CurrentStatus returns the run status under the read lock.
func (s *OperationState) CurrentStatus() OperationStatusValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetStep returns the state of a specific step.
func (s *OperationState) GetStep(stepID string) *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Steps[stepID]
}

// SetStep stores the state of a specific step.
func (s *OperationState) SetStep(stepID string, state *StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Steps[stepID] = state
}

// SetPanel stores the loaded panel for downstream steps.
func (s *OperationState) SetPanel(p *panel.Panel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel = p
}

// Panel returns the loaded panel, if the load step has run.
func (s *OperationState) Panel() (*panel.Panel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panel, s.panel != nil
}

// SetShocks stores the detected shock set.
func (s *OperationState) SetShocks(set domain.ShockSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shocks = set
	s.hasShocks = true
}

// Shocks returns the detected shock set, if detection has run.
func (s *OperationState) Shocks() (domain.ShockSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shocks, s.hasShocks
}

// SetWindows stores the stacked event-window observations.
func (s *OperationState) SetWindows(obs []eventstudy.EventObs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = obs
}

// Windows returns the stacked event windows, if they have been built.
func (s *OperationState) Windows() ([]eventstudy.EventObs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windows, s.windows != nil
}

// SetResult stores the study result produced by the convergence step.
func (s *OperationState) SetResult(r *eventstudy.StudyResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
}

// Result returns the study result, if the convergence step has run.
func (s *OperationState) Result() (*eventstudy.StudyResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.result != nil
}

// SetRobust stores the robustness path.
func (s *OperationState) SetRobust(points []domain.RobustPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.robust = points
}

// Robust returns the robustness path, if the robustness step has run.
func (s *OperationState) Robust() ([]domain.RobustPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.robust, s.robust != nil
}

// SetGrid stores the sensitivity grid.
func (s *OperationState) SetGrid(points []domain.SensitivityPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid = points
}

// Grid returns the sensitivity grid, if the sensitivity step has run.
func (s *OperationState) Grid() ([]domain.SensitivityPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid, s.grid != nil
}

// Manifest returns the artifact manifest for this run.
func (s *OperationState) Manifest() *RunManifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

// Duration returns how long the run has been going, or took.
func (s *OperationState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// ActiveSteps returns all currently active steps.
func (s *OperationState) ActiveSteps() []*StepState {
	return s.stepsWithStatus(StepStatusActive)
}

// CompletedSteps returns all completed steps.
func (s *OperationState) CompletedSteps() []*StepState {
	return s.stepsWithStatus(StepStatusCompleted)
}

// FailedSteps returns all failed steps.
func (s *OperationState) FailedSteps() []*StepState {
	return s.stepsWithStatus(StepStatusFailed)
}

func (s *OperationState) stepsWithStatus(status StepStatus) []*StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*StepState
	for _, step := range s.Steps {
		if step.CurrentStatus() == status {
			matched = append(matched, step)
		}
	}
	return matched
}

// IsComplete reports whether every step reached a terminal status.
func (s *OperationState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, step := range s.Steps {
		status := step.CurrentStatus()
		if status == StepStatusPending || status == StepStatusActive {
			return false
		}
	}
	return true
}

// HasFailures reports whether any step failed.
func (s *OperationState) HasFailures() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, step := range s.Steps {
		if step.CurrentStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the run state. Step products and the
// manifest are shared; they are written once and read-only afterwards.
func (s *OperationState) Clone() *OperationState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &OperationState{
		ID:        s.ID,
		Status:    s.Status,
		StartTime: s.StartTime,
		Steps:     make(map[string]*StepState, len(s.Steps)),
		Error:     s.Error,
		spec:      s.spec,
		panel:     s.panel,
		shocks:    s.shocks,
		hasShocks: s.hasShocks,
		windows:   s.windows,
		result:    s.result,
		robust:    s.robust,
		grid:      s.grid,
		manifest:  s.manifest,
	}

	if s.EndTime != nil {
		endTime := *s.EndTime
		clone.EndTime = &endTime
	}

	for id, step := range s.Steps {
		step.mu.RLock()
		stepCopy := &StepState{
			ID:        step.ID,
			Name:      step.Name,
			Status:    step.Status,
			StartTime: step.StartTime,
			EndTime:   step.EndTime,
			Progress:  step.Progress,
			Message:   step.Message,
			Error:     step.Error,
			Metadata:  make(map[string]interface{}, len(step.Metadata)),
		}
		for k, v := range step.Metadata {
			stepCopy.Metadata[k] = v
		}
		step.mu.RUnlock()
		clone.Steps[id] = stepCopy
	}

	return clone
}
