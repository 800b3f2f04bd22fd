package operations

import (
	"time"

	"vegcli/internal/eventstudy"
)

// Pipeline step identifiers
const (
	StepIDLoadPanel    = "load_panel"
	StepIDDetectShocks = "detect_shocks"
	StepIDConvergence  = "convergence"
	StepIDRobustness   = "robustness"
	StepIDCharts       = "charts"
	StepIDSensitivity  = "sensitivity"
)

// Pipeline step names
const (
	StepNameLoadPanel    = "Panel Load"
	StepNameDetectShocks = "Shock Detection"
	StepNameConvergence  = "Convergence Paths"
	StepNameRobustness   = "Robust Standard Errors"
	StepNameCharts       = "Chart Rendering"
	StepNameSensitivity  = "Sensitivity Grid"
)

// WebSocket event types consumed by the dashboard
const (
	EventTypeOperationSnapshot = "operation:snapshot"
	EventTypeOperationStatus   = "operation:status"
	EventTypeOperationProgress = "operation:progress"
	EventTypeOperationComplete = "operation:complete"
	EventTypeOperationError    = "operation:error"
)

// Default sensitivity grid axes used when a request enables the grid
// without overriding them.
var (
	DefaultSensitivityWindows    = []int{3, 6, 12}
	DefaultSensitivityThresholds = []float64{1.0, 1.5, 2.0}
)

// RunSpec describes one pipeline run. The file reference and parameters
// are resolved and validated before the Manager sees them.
type RunSpec struct {
	File            string            `json:"file,omitempty"`
	Sheet           string            `json:"sheet,omitempty"`
	Params          eventstudy.Params `json:"params"`
	WithSensitivity bool              `json:"with_sensitivity"`
	SensWindows     []int             `json:"sens_windows,omitempty"`
	SensThresholds  []float64         `json:"sens_thresholds,omitempty"`
}

// SensitivityAxes returns the grid axes for this run, falling back to the
// defaults when the request left them empty.
func (s RunSpec) SensitivityAxes() ([]int, []float64) {
	windows := s.SensWindows
	if len(windows) == 0 {
		windows = DefaultSensitivityWindows
	}
	thresholds := s.SensThresholds
	if len(thresholds) == 0 {
		thresholds = DefaultSensitivityThresholds
	}
	return windows, thresholds
}

// RetryConfig defines retry behavior for steps that fail transiently.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration. Only errors
// flagged retryable (transient I/O during panel load) are retried;
// analysis failures are deterministic and fail immediately.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationResponse is what Execute returns once a run has finished.
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`
}
