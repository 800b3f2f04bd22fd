package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Analysis-domain errors (sentinel errors for errors.Is checks)
var (
	ErrPanelNotFound    = errors.New("panel file not found")
	ErrSheetNotFound    = errors.New("worksheet not found")
	ErrNoPanelRows      = errors.New("no usable panel rows")
	ErrColumnDetection  = errors.New("column detection failed")
	ErrNoShocksDetected = errors.New("no shock months detected")
	ErrInsufficientObs  = errors.New("insufficient observations")
	ErrResultsMissing   = errors.New("analysis results not generated")
	ErrOperationActive  = errors.New("operation already running")
	ErrOperationMissing = errors.New("operation not found")
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Additional fields for extensibility
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON custom marshaler to include extensions
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status

	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	for k, v := range pd.Extensions {
		data[k] = v
	}

	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// MapAnalysisError maps domain errors to HTTP problem details
func MapAnalysisError(err error, traceID string) render.Renderer {
	instance := fmt.Sprintf("/api/results#trace-%s", traceID)

	// Check if it's an APIError from errors.go
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode == "RESULTS_NOT_FOUND" {
			return NewProblemDetails(
				http.StatusNotFound,
				"/errors/results-not-found",
				"Results Not Found",
				"No analysis results found. Run the event study first.",
				instance,
			).WithExtension("trace_id", traceID).
				WithExtension("error_code", "RESULTS_NOT_FOUND")
		}
	}

	switch {
	case errors.Is(err, ErrPanelNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			"/errors/panel-not-found",
			"Panel File Not Found",
			"The input panel file does not exist. Place a CSV or XLSX panel in the data directory.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "PANEL_NOT_FOUND")

	case errors.Is(err, ErrSheetNotFound):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/sheet-not-found",
			"Worksheet Not Found",
			"The requested worksheet does not exist in the workbook.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "SHEET_NOT_FOUND")

	case errors.Is(err, ErrColumnDetection):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			"/errors/column-detection",
			"Column Detection Failed",
			"Could not identify the state, date, or relative price columns in the panel.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "COLUMN_DETECTION_FAILED")

	case errors.Is(err, ErrNoPanelRows):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			"/errors/no-panel-rows",
			"No Usable Panel Rows",
			"The panel contains no rows with a valid state, date, and numeric value.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "NO_PANEL_ROWS")

	case errors.Is(err, ErrNoShocksDetected):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			"/errors/no-shocks",
			"No Shock Months Detected",
			"No months exceeded the detection threshold. Lower the threshold multiplier or provide explicit shock months.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "NO_SHOCKS_DETECTED")

	case errors.Is(err, ErrInsufficientObs):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			"/errors/insufficient-observations",
			"Insufficient Observations",
			"Too few observations around the detected shocks to fit convergence regressions.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INSUFFICIENT_OBSERVATIONS")

	case errors.Is(err, ErrResultsMissing):
		return NewProblemDetails(
			http.StatusNotFound,
			"/errors/results-missing",
			"Results Missing",
			"Analysis output files have not been generated yet.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "RESULTS_MISSING")

	case errors.Is(err, ErrOperationActive):
		return NewProblemDetails(
			http.StatusConflict,
			"/errors/operation-running",
			"Operation Already Running",
			"An analysis run is already in progress. Wait for it to finish or cancel it.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "OPERATION_RUNNING")

	case errors.Is(err, ErrOperationMissing):
		return NewProblemDetails(
			http.StatusNotFound,
			"/errors/operation-not-found",
			"Operation Not Found",
			"No operation with the given ID exists.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "OPERATION_NOT_FOUND")

	case errors.Is(err, ErrValidationFailed):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/validation-failed",
			"Validation Failed",
			"Request parameters failed validation.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "VALIDATION_FAILED")

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal-error",
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INTERNAL_ERROR")
	}
}
