package http

import (
	"context"

	"vegcli/internal/operations"
	"vegcli/internal/services"
	api "vegcli/pkg/contracts/api/v1"
)

// OperationServiceInterface defines the run orchestration surface the
// handlers depend on. Implemented by services.OperationService.
type OperationServiceInterface interface {
	StartRun(ctx context.Context, req *api.RunRequest) (string, error)
	GetStatus(ctx context.Context, operationID string) (*operations.OperationState, error)
	ListOperations(ctx context.Context) []*operations.OperationState
	ListOperationsByStatus(ctx context.Context, status operations.OperationStatusValue) []*operations.OperationState
	CancelOperation(ctx context.Context, operationID string) error
	Metrics(ctx context.Context) services.RunMetrics
	StepTypes(ctx context.Context) []services.StepType
}
