package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "vegcli/internal/errors"
	"vegcli/internal/files"
	"vegcli/internal/services"
	api "vegcli/pkg/contracts/api/v1"
	"vegcli/pkg/contracts/domain"
)

// MockResultsService is a mock implementation of ResultsServiceInterface
type MockResultsService struct {
	mock.Mock
}

func (m *MockResultsService) ListInputs(ctx context.Context) ([]domain.InputFile, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InputFile), args.Error(1)
}

func (m *MockResultsService) ListResults(ctx context.Context) []files.ResultFile {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]files.ResultFile)
}

func (m *MockResultsService) HasResults(ctx context.Context) bool {
	return m.Called().Bool(0)
}

func (m *MockResultsService) Shocks(ctx context.Context) (domain.ShockSet, error) {
	args := m.Called()
	return args.Get(0).(domain.ShockSet), args.Error(1)
}

func (m *MockResultsService) SigmaPath(ctx context.Context) ([]api.SigmaPathEntry, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.SigmaPathEntry), args.Error(1)
}

func (m *MockResultsService) BetaPath(ctx context.Context) ([]api.BetaPathEntry, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.BetaPathEntry), args.Error(1)
}

func (m *MockResultsService) Robustness(ctx context.Context) ([]api.RobustnessEntry, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.RobustnessEntry), args.Error(1)
}

func (m *MockResultsService) Sensitivity(ctx context.Context) ([]api.SensitivityEntry, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.SensitivityEntry), args.Error(1)
}

func (m *MockResultsService) Summary(ctx context.Context) (domain.StudySummary, error) {
	args := m.Called()
	return args.Get(0).(domain.StudySummary), args.Error(1)
}

func (m *MockResultsService) Insights(ctx context.Context) (api.InsightsResponse, error) {
	args := m.Called()
	return args.Get(0).(api.InsightsResponse), args.Error(1)
}

func (m *MockResultsService) ListCharts(ctx context.Context) []files.ResultFile {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]files.ResultFile)
}

func (m *MockResultsService) ServeChart(ctx context.Context, w http.ResponseWriter, r *http.Request, name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockResultsService) DownloadFile(ctx context.Context, w http.ResponseWriter, r *http.Request, filename string) error {
	args := m.Called(filename)
	return args.Error(0)
}

func newTestResultsHandler(service ResultsServiceInterface) *ResultsHandler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewResultsHandler(service, logger, apierrors.NewErrorHandler(logger, false))
}

func serveResults(t *testing.T, service ResultsServiceInterface, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	handler := newTestResultsHandler(service)
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(rec, req)
	return rec
}

func TestResultsHandler_GetSigmaPath(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockResultsService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful sigma path",
			setupMock: func(m *MockResultsService) {
				m.On("SigmaPath").Return([]api.SigmaPathEntry{
					{EventTime: -1, AvgSigma: 0.21},
					{EventTime: 0, AvgSigma: 0.3},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"avg_sigma":0.21`,
		},
		{
			name: "results not available",
			setupMock: func(m *MockResultsService) {
				m.On("SigmaPath").Return(nil, services.ErrResultsNotAvailable)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "RESULTS_NOT_AVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockResultsService)
			tt.setupMock(service)

			rec := serveResults(t, service, http.MethodGet, "/sigma-path")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}

func TestResultsHandler_GetShocks(t *testing.T) {
	service := new(MockResultsService)
	service.On("Shocks").Return(domain.ShockSet{
		Shocks: []domain.Shock{
			{Value: 12.5},
		},
		Source: "auto: mean + 1.5*std of national MoM change",
	}, nil)

	rec := serveResults(t, service, http.MethodGet, "/shocks")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"count":1`)
	assert.Contains(t, body, "mean + 1.5*std")
	service.AssertExpectations(t)
}

func TestResultsHandler_GetRobustness(t *testing.T) {
	service := new(MockResultsService)
	service.On("Robustness").Return([]api.RobustnessEntry{
		{EventTime: 0, NObs: 42, BetaHC1: -0.3, SEHC1: 0.05},
	}, nil)

	rec := serveResults(t, service, http.MethodGet, "/robustness")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"beta_hc1":-0.3`)
	assert.Contains(t, body, `"n_obs":42`)
	service.AssertExpectations(t)
}

func TestResultsHandler_GetCharts(t *testing.T) {
	service := new(MockResultsService)
	service.On("ListCharts").Return([]files.ResultFile{
		{Name: "sigma_convergence_event_path.png", Size: 2048},
		{Name: "beta_convergence_event_path.png", Size: 4096},
	})

	rec := serveResults(t, service, http.MethodGet, "/charts")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"count":2`)
	assert.Contains(t, body, "sigma_convergence_event_path.png")
	service.AssertExpectations(t)
}

func TestResultsHandler_GetChart(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockResultsService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "chart not rendered",
			target: "/charts/sigma_convergence_event_path.png",
			setupMock: func(m *MockResultsService) {
				m.On("ServeChart", "sigma_convergence_event_path.png").
					Return(services.ErrFileNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "CHART_NOT_FOUND",
		},
		{
			name:           "path traversal rejected",
			target:         "/charts/..%2fsecret.png",
			setupMock:      func(m *MockResultsService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid chart name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockResultsService)
			tt.setupMock(service)

			rec := serveResults(t, service, http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}

func TestResultsHandler_GetInsights(t *testing.T) {
	service := new(MockResultsService)
	service.On("Insights").Return(api.InsightsResponse{
		BetaPreMean:       -0.12,
		BetaPostMean:      -0.31,
		FasterConvergence: true,
	}, nil)

	rec := serveResults(t, service, http.MethodGet, "/insights")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"beta_post_mean":-0.31`)
	assert.Contains(t, body, `"faster_convergence":true`)
	service.AssertExpectations(t)
}

func TestResultsHandler_DownloadFile(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockResultsService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "unknown artifact",
			target: "/download/missing.csv",
			setupMock: func(m *MockResultsService) {
				m.On("DownloadFile", "missing.csv").Return(services.ErrFileNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "FILE_NOT_FOUND",
		},
		{
			name:   "unsupported type",
			target: "/download/summary.exe",
			setupMock: func(m *MockResultsService) {
				m.On("DownloadFile", "summary.exe").Return(services.ErrInvalidFileType)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "INVALID_FILE_TYPE",
		},
		{
			name:           "traversal rejected before the service is called",
			target:         "/download/..%2fsummary.txt",
			setupMock:      func(m *MockResultsService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid filename",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockResultsService)
			tt.setupMock(service)

			rec := serveResults(t, service, http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
