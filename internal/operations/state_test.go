package operations_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vegcli/internal/eventstudy"
	"vegcli/internal/operations"
	"vegcli/internal/operations/testutil"
	"vegcli/internal/panel"
	"vegcli/pkg/contracts/domain"
)

func TestNewOperationState(t *testing.T) {
	spec := testutil.CreateTestSpec()
	state := operations.NewOperationState("test-operation", spec)

	testutil.AssertEqual(t, state.ID, "test-operation")
	testutil.AssertOperationStatus(t, state, operations.OperationStatusPending)
	testutil.AssertNotNil(t, state.Steps)
	testutil.AssertNotNil(t, state.Manifest())
	testutil.AssertEqual(t, state.Spec().Params.Window, spec.Params.Window)

	if state.EndTime != nil {
		t.Error("EndTime should be nil initially")
	}
	if state.Error != nil {
		t.Error("Error should be nil initially")
	}
	if state.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestOperationStateTransitions(t *testing.T) {
	tests := []struct {
		name       string
		transition func(*operations.OperationState)
		wantStatus operations.OperationStatusValue
		checkEnd   bool
		checkError bool
	}{
		{
			name:       "Start",
			transition: func(s *operations.OperationState) { s.Start() },
			wantStatus: operations.OperationStatusRunning,
		},
		{
			name:       "Complete",
			transition: func(s *operations.OperationState) { s.Complete() },
			wantStatus: operations.OperationStatusCompleted,
			checkEnd:   true,
		},
		{
			name:       "Fail",
			transition: func(s *operations.OperationState) { s.Fail(errors.New("test error")) },
			wantStatus: operations.OperationStatusFailed,
			checkEnd:   true,
			checkError: true,
		},
		{
			name:       "Cancel",
			transition: func(s *operations.OperationState) { s.Cancel() },
			wantStatus: operations.OperationStatusCancelled,
			checkEnd:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := testutil.CreateTestOperationState("test")

			tt.transition(state)

			testutil.AssertOperationStatus(t, state, tt.wantStatus)

			if tt.checkEnd && state.EndTime == nil {
				t.Error("EndTime should be set")
			}
			if !tt.checkEnd && state.EndTime != nil {
				t.Error("EndTime should not be set")
			}
			if tt.checkError && state.Error == nil {
				t.Error("Error should be set")
			}

			// The manifest tracks the run status.
			wantManifest := string(tt.wantStatus)
			if got := state.Manifest().Status; got != wantManifest {
				t.Errorf("manifest status = %s, want %s", got, wantManifest)
			}
		})
	}
}

func TestOperationStateStepManagement(t *testing.T) {
	state := testutil.CreateTestOperationState("test")

	if state.GetStep("missing") != nil {
		t.Error("GetStep should return nil for unknown steps")
	}

	stepState := testutil.CreateTestStepState("s1", "Step 1")
	state.SetStep("s1", stepState)

	got := state.GetStep("s1")
	testutil.AssertNotNil(t, got)
	testutil.AssertEqual(t, got.ID, "s1")
	testutil.AssertEqual(t, got.Name, "Step 1")
	testutil.AssertStepStatus(t, got, operations.StepStatusPending)
}

func TestOperationStateProducts(t *testing.T) {
	state := testutil.CreateTestOperationState("test")

	if _, ok := state.Panel(); ok {
		t.Error("Panel should not be set initially")
	}
	if _, ok := state.Shocks(); ok {
		t.Error("Shocks should not be set initially")
	}
	if _, ok := state.Windows(); ok {
		t.Error("Windows should not be set initially")
	}
	if _, ok := state.Result(); ok {
		t.Error("Result should not be set initially")
	}
	if _, ok := state.Robust(); ok {
		t.Error("Robust should not be set initially")
	}
	if _, ok := state.Grid(); ok {
		t.Error("Grid should not be set initially")
	}

	p := &panel.Panel{Meta: domain.PanelMeta{Rows: 60}}
	state.SetPanel(p)
	gotPanel, ok := state.Panel()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, gotPanel.Meta.Rows, 60)

	// An empty shock set still marks detection as done.
	state.SetShocks(domain.ShockSet{Source: "test"})
	gotShocks, ok := state.Shocks()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, gotShocks.Source, "test")

	state.SetWindows([]eventstudy.EventObs{{State: "A", EventTime: 0}})
	obs, ok := state.Windows()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, len(obs), 1)

	state.SetResult(&eventstudy.StudyResult{Summary: domain.StudySummary{States: 5}})
	result, ok := state.Result()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, result.Summary.States, 5)

	state.SetRobust([]domain.RobustPoint{{EventTime: 0, NObs: 5}})
	robust, ok := state.Robust()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, len(robust), 1)

	state.SetGrid([]domain.SensitivityPoint{{Window: 3, EventTime: 0}})
	grid, ok := state.Grid()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, len(grid), 1)
}

func TestOperationStateDuration(t *testing.T) {
	state := testutil.CreateTestOperationState("test")
	state.Start()

	time.Sleep(10 * time.Millisecond)
	if d := state.Duration(); d < 10*time.Millisecond {
		t.Errorf("running duration = %v, want at least 10ms", d)
	}

	state.Complete()
	frozen := state.Duration()

	time.Sleep(10 * time.Millisecond)
	testutil.AssertEqual(t, state.Duration(), frozen)
}

func TestOperationStateStepQueries(t *testing.T) {
	state := testutil.CreateTestOperationState("test")

	active := testutil.CreateTestStepState("active", "Active")
	active.Start()
	completed := testutil.CreateTestStepState("completed", "Completed")
	completed.Start()
	completed.Complete()
	failed := testutil.CreateTestStepState("failed", "Failed")
	failed.Start()
	failed.Fail(errors.New("boom"))

	state.SetStep("active", active)
	state.SetStep("completed", completed)
	state.SetStep("failed", failed)

	testutil.AssertEqual(t, len(state.ActiveSteps()), 1)
	testutil.AssertEqual(t, len(state.CompletedSteps()), 1)
	testutil.AssertEqual(t, len(state.FailedSteps()), 1)
	testutil.AssertEqual(t, state.HasFailures(), true)

	// An active step means the run is not complete.
	testutil.AssertEqual(t, state.IsComplete(), false)

	active.Complete()
	testutil.AssertEqual(t, state.IsComplete(), true)
}

func TestOperationStateIsCompleteWithPending(t *testing.T) {
	state := testutil.CreateTestOperationState("test")

	pending := testutil.CreateTestStepState("pending", "Pending")
	skipped := testutil.CreateTestStepState("skipped", "Skipped")
	skipped.Skip("dependency failed")

	state.SetStep("pending", pending)
	state.SetStep("skipped", skipped)

	testutil.AssertEqual(t, state.IsComplete(), false)

	pending.Complete()
	testutil.AssertEqual(t, state.IsComplete(), true)
	testutil.AssertEqual(t, state.HasFailures(), false)
}

func TestOperationStateClone(t *testing.T) {
	state := testutil.CreateTestOperationState("test")
	state.Start()

	stepState := testutil.CreateTestStepState("s1", "Step 1")
	stepState.Start()
	stepState.SetMetadata("rows", 60)
	state.SetStep("s1", stepState)

	p := &panel.Panel{Meta: domain.PanelMeta{Rows: 60}}
	state.SetPanel(p)

	clone := state.Clone()

	testutil.AssertEqual(t, clone.ID, state.ID)
	testutil.AssertOperationStatus(t, clone, operations.OperationStatusRunning)

	// Steps are deep-copied: changing the original does not leak.
	stepState.Complete()
	testutil.AssertStepStatus(t, clone.GetStep("s1"), operations.StepStatusActive)
	testutil.AssertEqual(t, clone.GetStep("s1").Metadata["rows"], 60)

	// Products are shared, not copied.
	clonePanel, ok := clone.Panel()
	testutil.AssertEqual(t, ok, true)
	if clonePanel != p {
		t.Error("clone should share the panel product")
	}
	if clone.Manifest() != state.Manifest() {
		t.Error("clone should share the manifest")
	}
}

func TestOperationStateConcurrency(t *testing.T) {
	state := testutil.CreateTestOperationState("test")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			state.SetStep(id, testutil.CreateTestStepState(id, id))
		}(i)
		go func(n int) {
			defer wg.Done()
			state.GetStep(fmt.Sprintf("s%d", n))
			state.CurrentStatus()
			state.Duration()
		}(i)
	}
	wg.Wait()

	testutil.AssertEqual(t, len(state.Clone().Steps), 10)
}
