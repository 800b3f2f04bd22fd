package testutil

import (
	"context"
	"errors"
	"time"

	"vegcli/internal/eventstudy"
	"vegcli/internal/operations"
)

// CreateTestSpec creates a run spec sized for fast test panels.
func CreateTestSpec() operations.RunSpec {
	params := eventstudy.DefaultParams()
	params.Window = 2
	params.MinObs = 3
	return operations.RunSpec{Params: params}
}

// CreateTestOperationState creates a run state for testing.
func CreateTestOperationState(id string) *operations.OperationState {
	return operations.NewOperationState(id, CreateTestSpec())
}

// CreateTestStepState creates a step state for testing.
func CreateTestStepState(id, name string) *operations.StepState {
	return operations.NewStepState(id, name)
}

// CreateTestConfig creates a configuration with retry delays short enough
// for unit tests.
func CreateTestConfig() *operations.Config {
	return operations.NewConfigBuilder().
		WithRetryConfig(operations.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
			Multiplier:   2.0,
		}).
		WithStepTimeout(operations.StepIDLoadPanel, 5*time.Second).
		WithStepTimeout(operations.StepIDDetectShocks, 5*time.Second).
		WithStepTimeout(operations.StepIDConvergence, 5*time.Second).
		WithStepTimeout(operations.StepIDRobustness, 5*time.Second).
		WithStepTimeout(operations.StepIDCharts, 5*time.Second).
		WithStepTimeout(operations.StepIDSensitivity, 10*time.Second).
		Build()
}

// CreateTestRegistry creates a registry with three independent steps.
func CreateTestRegistry() *operations.Registry {
	registry := operations.NewRegistry()

	registry.Register(CreateSuccessfulStep("step1", "Step 1"))
	registry.Register(CreateSuccessfulStep("step2", "Step 2"))
	registry.Register(CreateSuccessfulStep("step3", "Step 3"))

	return registry
}

// CreateSuccessfulStep creates a step that always succeeds.
func CreateSuccessfulStep(id, name string, deps ...string) *MockStep {
	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			stepState := state.GetStep(id)
			if stepState != nil {
				stepState.UpdateProgress(50, "Processing")
				timer := time.NewTimer(5 * time.Millisecond)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
				stepState.UpdateProgress(100, "Completed")
			}
			return nil
		},
	}
}

// CreateFailingStep creates a step that always fails with a non-retryable
// error.
func CreateFailingStep(id, name string, err error, deps ...string) *MockStep {
	if err == nil {
		err = errors.New("step failed")
	}

	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			return err
		},
	}
}

// CreateRetryableStep creates a step that fails failCount times with a
// retryable error, then succeeds.
func CreateRetryableStep(id, name string, failCount int, deps ...string) *MockStep {
	attempts := 0

	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			attempts++
			if attempts <= failCount {
				return operations.NewExecutionError(id, errors.New("temporary failure"), true)
			}
			return nil
		},
	}
}

// CreateSlowStep creates a step that takes a specific duration, respecting
// cancellation.
func CreateSlowStep(id, name string, duration time.Duration, deps ...string) *MockStep {
	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			select {
			case <-time.After(duration):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// CreateValidationFailingStep creates a step whose Validate always fails.
func CreateValidationFailingStep(id, name string, validationErr error, deps ...string) *MockStep {
	if validationErr == nil {
		validationErr = errors.New("validation failed")
	}

	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ValidateFunc: func(state *operations.OperationState) error {
			return validationErr
		},
	}
}

// CreateDiamondSteps creates steps with a diamond dependency pattern:
//
//	    A
//	   / \
//	  B   C
//	   \ /
//	    D
func CreateDiamondSteps() []*MockStep {
	stepA := CreateSuccessfulStep("A", "Step A")
	stepB := CreateSuccessfulStep("B", "Step B", "A")
	stepC := CreateSuccessfulStep("C", "Step C", "A")
	stepD := CreateSuccessfulStep("D", "Step D", "B", "C")

	return []*MockStep{stepA, stepB, stepC, stepD}
}

// CreatePipelineSteps creates mock steps mirroring the real pipeline's step
// IDs and dependency layout, so selection behavior can be tested without
// any panel fixtures.
func CreatePipelineSteps() []*MockStep {
	return []*MockStep{
		CreateSuccessfulStep(operations.StepIDLoadPanel, operations.StepNameLoadPanel),
		CreateSuccessfulStep(operations.StepIDDetectShocks, operations.StepNameDetectShocks, operations.StepIDLoadPanel),
		CreateSuccessfulStep(operations.StepIDConvergence, operations.StepNameConvergence, operations.StepIDDetectShocks),
		CreateSuccessfulStep(operations.StepIDRobustness, operations.StepNameRobustness, operations.StepIDConvergence),
		CreateSuccessfulStep(operations.StepIDCharts, operations.StepNameCharts, operations.StepIDConvergence),
		CreateSuccessfulStep(operations.StepIDSensitivity, operations.StepNameSensitivity, operations.StepIDConvergence),
	}
}

// StepBuilder provides a fluent interface for creating test steps.
type StepBuilder struct {
	step *MockStep
}

// NewStepBuilder creates a new step builder.
func NewStepBuilder(id, name string) *StepBuilder {
	return &StepBuilder{
		step: &MockStep{
			IDValue:   id,
			NameValue: name,
		},
	}
}

// WithDependencies sets the step dependencies.
func (b *StepBuilder) WithDependencies(deps ...string) *StepBuilder {
	b.step.DependenciesValue = deps
	return b
}

// WithExecute sets the execute function.
func (b *StepBuilder) WithExecute(fn func(context.Context, *operations.OperationState) error) *StepBuilder {
	b.step.ExecuteFunc = fn
	return b
}

// WithValidate sets the validate function.
func (b *StepBuilder) WithValidate(fn func(*operations.OperationState) error) *StepBuilder {
	b.step.ValidateFunc = fn
	return b
}

// Build returns the constructed step.
func (b *StepBuilder) Build() *MockStep {
	return b.step
}
