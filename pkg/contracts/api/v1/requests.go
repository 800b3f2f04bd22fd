// Package api contains API contract definitions for the VegPulse event-study
// service. Version v1 represents the current stable API version.
package api

// RunRequest represents a request to start an analysis run.
// Zero-valued numeric fields fall back to the configured defaults.
type RunRequest struct {
	File            string   `json:"file,omitempty" validate:"omitempty,filename"`
	Sheet           string   `json:"sheet,omitempty" validate:"omitempty,max=64"`
	Window          int      `json:"window,omitempty" validate:"omitempty,min=1,max=24"`
	ThresholdK      float64  `json:"threshold_k,omitempty" validate:"omitempty,gt=0,lte=5"`
	MaxShocks       int      `json:"max_shocks,omitempty" validate:"omitempty,min=1,max=100"`
	PerState        bool     `json:"per_state,omitempty"`
	ExplicitShocks  []string `json:"explicit_shocks,omitempty" validate:"omitempty,dive,yearmonth"`
	WithSensitivity bool     `json:"with_sensitivity,omitempty"`
}

// RunResponse acknowledges an accepted run.
type RunResponse struct {
	OperationID  string `json:"operation_id"`
	Status       string `json:"status"`
	Message      string `json:"message"`
	WebSocketURL string `json:"websocket_url,omitempty"`
}

// CancelRequest represents a request to cancel a running operation.
type CancelRequest struct {
	OperationID string `json:"operation_id" param:"id" validate:"required,uuid"`
}

// ClientLogEntry is a structured log record posted by the dashboard.
type ClientLogEntry struct {
	Level     string         `json:"level" validate:"required,oneof=debug info warn error"`
	Message   string         `json:"message" validate:"required,max=2000"`
	Component string         `json:"component,omitempty" validate:"omitempty,max=100"`
	Timestamp string         `json:"timestamp,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}
