package operations_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vegcli/internal/operations"
	"vegcli/internal/operations/testutil"
)

func TestNewManager(t *testing.T) {
	hub := &testutil.MockWebSocketHub{}
	manager := operations.NewManager(hub, nil, nil, nil)

	testutil.AssertNotNil(t, manager)
	testutil.AssertNotNil(t, manager.GetRegistry())
	testutil.AssertNotNil(t, manager.GetConfig())
	testutil.AssertNotNil(t, manager.GetBroadcaster())
}

func TestManagerRegisterStep(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil, nil)

	step := testutil.CreateSuccessfulStep("test", "Test Step")
	testutil.AssertNoError(t, manager.RegisterStep(step))

	// Duplicate IDs are rejected.
	testutil.AssertError(t, manager.RegisterStep(step), true)
	testutil.AssertEqual(t, manager.GetRegistry().Count(), 1)
}

func TestManagerSetConfig(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil, nil)

	config := testutil.CreateTestConfig()
	manager.SetConfig(config)
	testutil.AssertEqual(t, manager.GetConfig(), config)

	// Nil config is ignored.
	manager.SetConfig(nil)
	testutil.AssertEqual(t, manager.GetConfig(), config)
}

func TestManagerExecuteSequential(t *testing.T) {
	hub := &testutil.MockWebSocketHub{}
	manager := operations.NewManager(hub, nil, testutil.CreateTestConfig(), nil)

	step1 := testutil.CreateSuccessfulStep("s1", "Step 1")
	step2 := testutil.CreateSuccessfulStep("s2", "Step 2", "s1")
	step3 := testutil.CreateSuccessfulStep("s3", "Step 3", "s2")

	for _, step := range []*testutil.MockStep{step1, step2, step3} {
		testutil.AssertNoError(t, manager.RegisterStep(step))
	}

	resp, err := manager.Execute(context.Background(), "test-sequential", testutil.CreateTestSpec())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)

	state := &operations.OperationState{Steps: resp.Steps}
	for _, id := range []string{"s1", "s2", "s3"} {
		testutil.AssertStepCompleted(t, state, id)
	}

	testutil.AssertStepOrder(t, []*testutil.MockStep{step1, step2, step3}, []string{"s1", "s2", "s3"})
	testutil.AssertWebSocketMessage(t, hub, operations.EventTypeOperationSnapshot)
}

func TestManagerExecuteEmptyRegistry(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil, nil)

	resp, err := manager.Execute(context.Background(), "test-empty", testutil.CreateTestSpec())
	testutil.AssertError(t, err, true)
	testutil.AssertErrorType(t, err, operations.ErrorTypeFatal)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusFailed)
}

func TestManagerExecuteWithDependencies(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	steps := testutil.CreateDiamondSteps()
	for _, step := range steps {
		testutil.AssertNoError(t, manager.RegisterStep(step))
	}

	resp, err := manager.Execute(context.Background(), "test-deps", testutil.CreateTestSpec())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)

	state := &operations.OperationState{Steps: resp.Steps}
	for _, id := range []string{"A", "B", "C", "D"} {
		testutil.AssertStepCompleted(t, state, id)
	}

	// Equal-rank steps keep registration order, so the diamond resolves to
	// exactly A, B, C, D.
	testutil.AssertStepOrder(t, steps, []string{"A", "B", "C", "D"})
}

func TestManagerExecuteWithFailure(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	step1 := testutil.CreateSuccessfulStep("s1", "Step 1")
	step2 := testutil.CreateFailingStep("s2", "Step 2", errors.New("boom"), "s1")
	step3 := testutil.CreateSuccessfulStep("s3", "Step 3", "s2")
	step4 := testutil.CreateSuccessfulStep("s4", "Step 4", "s3")

	for _, step := range []*testutil.MockStep{step1, step2, step3, step4} {
		testutil.AssertNoError(t, manager.RegisterStep(step))
	}

	resp, err := manager.Execute(context.Background(), "test-failure", testutil.CreateTestSpec())
	testutil.AssertError(t, err, true)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusFailed)

	state := &operations.OperationState{Steps: resp.Steps}
	testutil.AssertStepCompleted(t, state, "s1")
	testutil.AssertStepFailed(t, state, "s2")

	// The skip cascades through the whole downstream chain.
	testutil.AssertStepSkipped(t, state, "s3")
	testutil.AssertStepSkipped(t, state, "s4")
	testutil.AssertEqual(t, step3.GetExecuteCalls(), 0)
	testutil.AssertEqual(t, step4.GetExecuteCalls(), 0)

	// A plain failure is not retried.
	testutil.AssertEqual(t, step2.GetExecuteCalls(), 1)
}

func TestManagerExecuteWithRetry(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	step := testutil.CreateRetryableStep("flaky", "Flaky Step", 2)
	testutil.AssertNoError(t, manager.RegisterStep(step))

	resp, err := manager.Execute(context.Background(), "test-retry", testutil.CreateTestSpec())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)
	testutil.AssertEqual(t, step.GetExecuteCalls(), 3)

	testutil.AssertStepCompleted(t, &operations.OperationState{Steps: resp.Steps}, "flaky")
}

func TestManagerRetryExhausted(t *testing.T) {
	config := operations.NewConfigBuilder().
		WithRetryConfig(operations.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     10 * time.Millisecond,
			Multiplier:   2.0,
		}).
		Build()
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, config, nil)

	step := testutil.CreateRetryableStep("flaky", "Flaky Step", 5)
	testutil.AssertNoError(t, manager.RegisterStep(step))

	resp, err := manager.Execute(context.Background(), "test-retry-exhausted", testutil.CreateTestSpec())
	testutil.AssertError(t, err, true)
	testutil.AssertErrorType(t, err, operations.ErrorTypeExecution)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusFailed)
	testutil.AssertEqual(t, step.GetExecuteCalls(), 2)

	testutil.AssertStepFailed(t, &operations.OperationState{Steps: resp.Steps}, "flaky")
}

func TestManagerStepTimeout(t *testing.T) {
	config := operations.NewConfigBuilder().
		WithStepTimeout("slow", 50*time.Millisecond).
		Build()
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, config, nil)

	step := testutil.CreateSlowStep("slow", "Slow Step", 300*time.Millisecond)
	testutil.AssertNoError(t, manager.RegisterStep(step))

	resp, err := manager.Execute(context.Background(), "test-timeout", testutil.CreateTestSpec())
	testutil.AssertError(t, err, true)
	testutil.AssertErrorType(t, err, operations.ErrorTypeTimeout)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusFailed)

	testutil.AssertStepFailed(t, &operations.OperationState{Steps: resp.Steps}, "slow")
}

func TestManagerExecuteCancelledContext(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	step := testutil.CreateSlowStep("slow", "Slow Step", 500*time.Millisecond)
	testutil.AssertNoError(t, manager.RegisterStep(step))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var resp *operations.OperationResponse
	var err error
	go func() {
		resp, err = manager.Execute(ctx, "test-cancel-ctx", testutil.CreateTestSpec())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	testutil.AssertError(t, err, true)
	testutil.AssertErrorType(t, err, operations.ErrorTypeCancellation)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCancelled)
}

func TestManagerCancelOperation(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	err := manager.CancelOperation("nonexistent")
	testutil.AssertError(t, err, true)
	testutil.AssertErrorType(t, err, operations.ErrorTypeNotFound)

	step := testutil.CreateSlowStep("slow", "Slow Step", 500*time.Millisecond)
	testutil.AssertNoError(t, manager.RegisterStep(step))

	done := make(chan struct{})
	var resp *operations.OperationResponse
	go func() {
		resp, _ = manager.Execute(context.Background(), "test-cancel-mgr", testutil.CreateTestSpec())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	testutil.AssertNoError(t, manager.CancelOperation("test-cancel-mgr"))
	<-done

	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCancelled)

	// A finished run cannot be cancelled again.
	err = manager.CancelOperation("test-cancel-mgr")
	testutil.AssertError(t, err, true)
	testutil.AssertErrorType(t, err, operations.ErrorTypeInvalidState)
}

func TestManagerValidationFailure(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	step := testutil.CreateValidationFailingStep("v1", "Validated Step", errors.New("missing input"))
	testutil.AssertNoError(t, manager.RegisterStep(step))

	resp, err := manager.Execute(context.Background(), "test-validation", testutil.CreateTestSpec())
	testutil.AssertError(t, err, true)
	testutil.AssertErrorType(t, err, operations.ErrorTypeValidation)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusFailed)

	testutil.AssertStepSkipped(t, &operations.OperationState{Steps: resp.Steps}, "v1")
	testutil.AssertEqual(t, step.GetExecuteCalls(), 0)
}

func TestManagerContinueOnError(t *testing.T) {
	config := testutil.CreateTestConfig()
	config.ContinueOnError = true
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, config, nil)

	failing := testutil.CreateFailingStep("s1", "Step 1", errors.New("boom"))
	independent := testutil.CreateSuccessfulStep("s2", "Step 2")
	testutil.AssertNoError(t, manager.RegisterStep(failing))
	testutil.AssertNoError(t, manager.RegisterStep(independent))

	resp, err := manager.Execute(context.Background(), "test-continue", testutil.CreateTestSpec())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)

	state := &operations.OperationState{Steps: resp.Steps}
	testutil.AssertStepFailed(t, state, "s1")
	testutil.AssertStepCompleted(t, state, "s2")
	testutil.AssertEqual(t, independent.GetExecuteCalls(), 1)
}

func TestManagerSensitivitySelection(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	steps := testutil.CreatePipelineSteps()
	for _, step := range steps {
		testutil.AssertNoError(t, manager.RegisterStep(step))
	}
	sensitivity := steps[len(steps)-1]

	spec := testutil.CreateTestSpec()
	resp, err := manager.Execute(context.Background(), "no-grid", spec)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)

	if _, ok := resp.Steps[operations.StepIDSensitivity]; ok {
		t.Error("sensitivity step ran without being requested")
	}
	testutil.AssertEqual(t, sensitivity.GetExecuteCalls(), 0)

	spec.WithSensitivity = true
	resp, err = manager.Execute(context.Background(), "with-grid", spec)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)

	testutil.AssertStepCompleted(t, &operations.OperationState{Steps: resp.Steps}, operations.StepIDSensitivity)
	testutil.AssertEqual(t, sensitivity.GetExecuteCalls(), 1)

	testutil.AssertStepOrder(t, steps, []string{
		operations.StepIDLoadPanel,
		operations.StepIDDetectShocks,
		operations.StepIDConvergence,
		operations.StepIDRobustness,
		operations.StepIDCharts,
		operations.StepIDSensitivity,
	})
}

func TestManagerGetOperation(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	_, err := manager.GetOperation("nonexistent")
	testutil.AssertError(t, err, true)
	testutil.AssertErrorType(t, err, operations.ErrorTypeNotFound)

	step := testutil.CreateSuccessfulStep("only", "Only Step")
	testutil.AssertNoError(t, manager.RegisterStep(step))

	_, err = manager.Execute(context.Background(), "test-get", testutil.CreateTestSpec())
	testutil.AssertNoError(t, err)

	// Finished runs stay retrievable.
	state, err := manager.GetOperation("test-get")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, state.ID, "test-get")
	testutil.AssertOperationStatus(t, state, operations.OperationStatusCompleted)
}

func TestManagerListOperations(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	testutil.AssertEqual(t, len(manager.ListOperations()), 0)

	step := testutil.CreateSuccessfulStep("only", "Only Step")
	testutil.AssertNoError(t, manager.RegisterStep(step))

	for _, id := range []string{"run-a", "run-b"} {
		_, err := manager.Execute(context.Background(), id, testutil.CreateTestSpec())
		testutil.AssertNoError(t, err)
	}

	testutil.AssertEqual(t, len(manager.ListOperations()), 2)
}

func TestManagerGeneratesOperationID(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	step := testutil.CreateSuccessfulStep("only", "Only Step")
	testutil.AssertNoError(t, manager.RegisterStep(step))

	resp, err := manager.Execute(context.Background(), "", testutil.CreateTestSpec())
	testutil.AssertNoError(t, err)
	if resp.ID == "" {
		t.Error("empty operation ID was not replaced")
	}
}

func TestManagerSavesManifest(t *testing.T) {
	outDir := t.TempDir()
	config := operations.NewConfigBuilder().WithOutputDir(outDir).Build()
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, config, nil)

	step := testutil.CreateSuccessfulStep("only", "Only Step")
	testutil.AssertNoError(t, manager.RegisterStep(step))

	_, err := manager.Execute(context.Background(), "manifest-run", testutil.CreateTestSpec())
	testutil.AssertNoError(t, err)

	path := filepath.Join(outDir, operations.ManifestFileName)
	testutil.AssertFileExists(t, path)

	manifest, err := operations.LoadManifestFromFile(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, manifest.OperationID, "manifest-run")
	testutil.AssertEqual(t, manifest.Status, string(operations.OperationStatusCompleted))
	if !manifest.IsStepCompleted("only") {
		t.Error("manifest does not record the step as completed")
	}
}

func TestManagerWebSocketUpdates(t *testing.T) {
	hub := &testutil.MockWebSocketHub{}
	manager := operations.NewManager(hub, nil, testutil.CreateTestConfig(), nil)

	step := testutil.CreateSuccessfulStep("only", "Only Step")
	testutil.AssertNoError(t, manager.RegisterStep(step))

	_, err := manager.Execute(context.Background(), "ws-run", testutil.CreateTestSpec())
	testutil.AssertNoError(t, err)

	testutil.AssertWebSocketMessage(t, hub, operations.EventTypeOperationSnapshot)

	snapshot, ok := hub.LastSnapshot("ws-run")
	if !ok {
		t.Fatal("no snapshot broadcast for the run")
	}
	testutil.AssertEqual(t, snapshot.Status, string(operations.OperationStatusCompleted))
	testutil.AssertEqual(t, snapshot.Progress, 100)
	testutil.AssertEqual(t, len(snapshot.Steps), 1)
}

func TestManagerCancelAll(t *testing.T) {
	manager := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig(), nil)

	step := testutil.CreateSlowStep("slow", "Slow Step", 500*time.Millisecond)
	testutil.AssertNoError(t, manager.RegisterStep(step))

	done := make(chan struct{})
	var resp *operations.OperationResponse
	go func() {
		resp, _ = manager.Execute(context.Background(), "cancel-all-run", testutil.CreateTestSpec())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	manager.CancelAll()
	<-done

	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCancelled)
}
