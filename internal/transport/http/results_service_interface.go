package http

import (
	"context"
	"net/http"

	"vegcli/internal/files"
	api "vegcli/pkg/contracts/api/v1"
	"vegcli/pkg/contracts/domain"
)

// ResultsServiceInterface defines the study artifact surface the handlers
// depend on. Implemented by services.ResultsService.
type ResultsServiceInterface interface {
	ListInputs(ctx context.Context) ([]domain.InputFile, error)
	ListResults(ctx context.Context) []files.ResultFile
	HasResults(ctx context.Context) bool
	Shocks(ctx context.Context) (domain.ShockSet, error)
	SigmaPath(ctx context.Context) ([]api.SigmaPathEntry, error)
	BetaPath(ctx context.Context) ([]api.BetaPathEntry, error)
	Robustness(ctx context.Context) ([]api.RobustnessEntry, error)
	Sensitivity(ctx context.Context) ([]api.SensitivityEntry, error)
	Summary(ctx context.Context) (domain.StudySummary, error)
	Insights(ctx context.Context) (api.InsightsResponse, error)
	ListCharts(ctx context.Context) []files.ResultFile
	ServeChart(ctx context.Context, w http.ResponseWriter, r *http.Request, name string) error
	DownloadFile(ctx context.Context, w http.ResponseWriter, r *http.Request, filename string) error
}
