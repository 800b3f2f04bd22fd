package domain

import (
	"time"
)

// Operation represents one analysis run: an ordered set of steps executed
// over a panel file, producing the CSV/PNG artifacts.
type Operation struct {
	ID          string           `json:"id" validate:"required,uuid"`
	Name        string           `json:"name" validate:"required,min=3,max=100"`
	Status      OperationStatus  `json:"status"`
	Steps       []Step           `json:"steps"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []Artifact       `json:"artifacts,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// OperationStatus represents the status of an operation
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// Step is the externally visible state of one pipeline step.
type Step struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Progress    float64    `json:"progress"` // 0-100
	Message     string     `json:"message,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// StepStatus represents the status of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Artifact is one file produced by a run.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Kind      string    `json:"kind"` // "csv", "txt", "png"
	Step      string    `json:"step"`
	Size      int64     `json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Step identifiers
const (
	StepIDLoadPanel    = "load_panel"
	StepIDDetectShocks = "detect_shocks"
	StepIDConvergence  = "convergence"
	StepIDRobustness   = "robustness"
	StepIDSensitivity  = "sensitivity"
	StepIDCharts       = "charts"
)

// Step names
const (
	StepNameLoadPanel    = "Panel Loading"
	StepNameDetectShocks = "Shock Detection"
	StepNameConvergence  = "Convergence Estimation"
	StepNameRobustness   = "Robustness Checks"
	StepNameSensitivity  = "Sensitivity Grid"
	StepNameCharts       = "Chart Rendering"
)
