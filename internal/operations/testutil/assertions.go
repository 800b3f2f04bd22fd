package testutil

import (
	"math"
	"strings"
	"testing"
	"time"

	"vegcli/internal/operations"
)

// AssertStepStatus verifies a step has the expected status.
func AssertStepStatus(t *testing.T, step *operations.StepState, expected operations.StepStatus) {
	t.Helper()
	if step == nil {
		t.Fatal("step state is nil")
	}
	if got := step.CurrentStatus(); got != expected {
		t.Errorf("step %s status = %v, want %v", step.ID, got, expected)
	}
}

// AssertOperationStatus verifies a run has the expected status.
func AssertOperationStatus(t *testing.T, state *operations.OperationState, expected operations.OperationStatusValue) {
	t.Helper()
	if state == nil {
		t.Fatal("operation state is nil")
	}
	if got := state.CurrentStatus(); got != expected {
		t.Errorf("operation status = %v, want %v", got, expected)
	}
}

// AssertWebSocketMessage verifies at least one message of a type was sent.
func AssertWebSocketMessage(t *testing.T, hub *MockWebSocketHub, eventType string) {
	t.Helper()
	messages := hub.GetMessagesByType(eventType)
	if len(messages) == 0 {
		t.Errorf("no WebSocket message of type %s found", eventType)
	}
}

// AssertStepCompleted verifies a step completed successfully.
func AssertStepCompleted(t *testing.T, state *operations.OperationState, stepID string) {
	t.Helper()
	step := state.GetStep(stepID)
	if step == nil {
		t.Fatalf("step %s not found", stepID)
	}
	AssertStepStatus(t, step, operations.StepStatusCompleted)
	if step.Progress != 100 {
		t.Errorf("step %s progress = %v, want 100", stepID, step.Progress)
	}
}

// AssertStepFailed verifies a step failed and carries an error.
func AssertStepFailed(t *testing.T, state *operations.OperationState, stepID string) {
	t.Helper()
	step := state.GetStep(stepID)
	if step == nil {
		t.Fatalf("step %s not found", stepID)
	}
	AssertStepStatus(t, step, operations.StepStatusFailed)
	if step.Error == nil {
		t.Errorf("step %s has no error", stepID)
	}
}

// AssertStepSkipped verifies a step was skipped.
func AssertStepSkipped(t *testing.T, state *operations.OperationState, stepID string) {
	t.Helper()
	step := state.GetStep(stepID)
	if step == nil {
		t.Fatalf("step %s not found", stepID)
	}
	AssertStepStatus(t, step, operations.StepStatusSkipped)
}

// AssertDuration verifies a duration is within tolerance.
func AssertDuration(t *testing.T, actual, expected, tolerance time.Duration) {
	t.Helper()
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Errorf("duration = %v, want %v ± %v", actual, expected, tolerance)
	}
}

// AssertProgress verifies step progress.
func AssertProgress(t *testing.T, step *operations.StepState, expected float64) {
	t.Helper()
	if step == nil {
		t.Fatal("step state is nil")
	}
	if math.Abs(step.Progress-expected) > 0.01 {
		t.Errorf("step %s progress = %v, want %v", step.ID, step.Progress, expected)
	}
}

// AssertError verifies the presence or absence of an error.
func AssertError(t *testing.T, err error, wantErr bool) {
	t.Helper()
	if (err != nil) != wantErr {
		t.Errorf("error = %v, wantErr %v", err, wantErr)
	}
}

// AssertErrorContains verifies an error contains a substring.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error containing %q, got nil", substr)
		return
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("error = %v, want error containing %q", err, substr)
	}
}

// AssertErrorType verifies the classification of a run error.
func AssertErrorType(t *testing.T, err error, expectedType operations.ErrorType) {
	t.Helper()
	if err == nil {
		t.Fatal("error is nil")
	}
	if got := operations.GetErrorType(err); got != expectedType {
		t.Errorf("error type = %v, want %v", got, expectedType)
	}
}

// AssertNoError fails if there is an error.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual verifies two values are equal.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertNotNil verifies a value is not nil.
func AssertNotNil(t *testing.T, v interface{}) {
	t.Helper()
	if v == nil {
		t.Fatal("value is nil")
	}
}

// AssertStepOrder verifies steps executed in the expected order, using the
// capture time of each step's first Execute call.
func AssertStepOrder(t *testing.T, steps []*MockStep, expectedOrder []string) {
	t.Helper()

	type execution struct {
		id   string
		time time.Time
	}

	var executions []execution
	for _, step := range steps {
		if first, ok := step.FirstExecuteTime(); ok {
			executions = append(executions, execution{id: step.ID(), time: first})
		}
	}

	for i := 0; i < len(executions)-1; i++ {
		for j := i + 1; j < len(executions); j++ {
			if executions[j].time.Before(executions[i].time) {
				executions[i], executions[j] = executions[j], executions[i]
			}
		}
	}

	if len(executions) != len(expectedOrder) {
		t.Errorf("executed %d steps, expected %d", len(executions), len(expectedOrder))
		return
	}

	for i, exec := range executions {
		if exec.id != expectedOrder[i] {
			t.Errorf("execution order[%d] = %s, want %s", i, exec.id, expectedOrder[i])
		}
	}
}
