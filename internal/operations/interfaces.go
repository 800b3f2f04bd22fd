package operations

// WebSocketHub is the broadcast surface the engine publishes run updates
// through. The websocket package provides the real hub; tests use fakes.
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// ProgressReporter is implemented by steps that emit mid-step progress.
type ProgressReporter interface {
	ReportProgress(progress int, message string) error
}

// StepOptions carries the optional collaborators handed to each step.
type StepOptions struct {
	StatusBroadcaster *StatusBroadcaster
	Tracer            *OperationTracer
	EnableProgress    bool
}
