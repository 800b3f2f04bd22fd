package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemDetails_Render(t *testing.T) {
	pd := NewProblemDetails(
		http.StatusNotFound,
		"/errors/results-missing",
		"Results Missing",
		"Analysis output files have not been generated yet.",
		"/api/results/sigma",
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/results/sigma", nil)

	err := render.Render(w, r, pd)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/errors/results-missing", body["type"])
	assert.Equal(t, "Results Missing", body["title"])
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
}

func TestProblemDetails_WithExtension(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, "/errors/validation", "Validation Failed", "", "/api/operations").
		WithExtension("trace_id", "abc-123").
		WithExtension("retry_after", 60)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "abc-123", body["trace_id"])
	assert.Equal(t, float64(60), body["retry_after"])
	_, hasDetail := body["detail"]
	assert.False(t, hasDetail, "empty detail should be omitted")
}

func TestMapAnalysisError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "panel not found",
			err:        ErrPanelNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "PANEL_NOT_FOUND",
		},
		{
			name:       "sheet not found",
			err:        ErrSheetNotFound,
			wantStatus: http.StatusBadRequest,
			wantCode:   "SHEET_NOT_FOUND",
		},
		{
			name:       "column detection failed",
			err:        ErrColumnDetection,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "COLUMN_DETECTION_FAILED",
		},
		{
			name:       "no panel rows",
			err:        ErrNoPanelRows,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "NO_PANEL_ROWS",
		},
		{
			name:       "no shocks detected",
			err:        ErrNoShocksDetected,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "NO_SHOCKS_DETECTED",
		},
		{
			name:       "insufficient observations",
			err:        ErrInsufficientObs,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INSUFFICIENT_OBSERVATIONS",
		},
		{
			name:       "results missing",
			err:        ErrResultsMissing,
			wantStatus: http.StatusNotFound,
			wantCode:   "RESULTS_MISSING",
		},
		{
			name:       "operation already running",
			err:        ErrOperationActive,
			wantStatus: http.StatusConflict,
			wantCode:   "OPERATION_RUNNING",
		},
		{
			name:       "operation not found",
			err:        ErrOperationMissing,
			wantStatus: http.StatusNotFound,
			wantCode:   "OPERATION_NOT_FOUND",
		},
		{
			name:       "wrapped sentinel",
			err:        fmt.Errorf("loading panel: %w", ErrPanelNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "PANEL_NOT_FOUND",
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := MapAnalysisError(tt.err, "trace-1")

			pd, ok := renderer.(*ProblemDetails)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, pd.Status)
			assert.Equal(t, tt.wantCode, pd.Extensions["error_code"])
			assert.Equal(t, "trace-1", pd.Extensions["trace_id"])
		})
	}
}

func TestMapAnalysisError_APIError(t *testing.T) {
	renderer := MapAnalysisError(ErrResultsNotFound, "trace-2")

	pd, ok := renderer.(*ProblemDetails)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, pd.Status)
	assert.Equal(t, "RESULTS_NOT_FOUND", pd.Extensions["error_code"])
}
