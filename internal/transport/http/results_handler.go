package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "vegcli/internal/errors"
	"vegcli/internal/middleware"
	"vegcli/internal/services"
)

// ResultsHandler handles study artifact HTTP requests with RFC 7807 compliance
type ResultsHandler struct {
	service      ResultsServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewResultsHandler creates a new results handler with RFC 7807 error handling
func NewResultsHandler(service ResultsServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ResultsHandler {
	return &ResultsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "results_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the results routes with proper Chi patterns
func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Use render for consistent JSON responses
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Input discovery
	r.Get("/inputs", h.GetInputs)

	// Study artifacts
	r.Get("/files", h.GetFiles)
	r.Get("/shocks", h.GetShocks)
	r.Get("/sigma-path", h.GetSigmaPath)
	r.Get("/beta-path", h.GetBetaPath)
	r.Get("/robustness", h.GetRobustness)
	r.Get("/sensitivity", h.GetSensitivity)
	r.Get("/summary", h.GetSummary)
	r.Get("/insights", h.GetInsights)

	// Rendered charts
	r.Get("/charts", h.GetCharts)
	r.Get("/charts/{name}", h.GetChart)

	// Download routes
	r.Route("/download/{filename}", func(r chi.Router) {
		r.Use(h.DownloadCtx) // Validate download parameters
		r.Get("/", h.DownloadFile)
	})

	return r
}

// DownloadCtx middleware validates download parameters
func (h *ResultsHandler) DownloadCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")

		if filename == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "Filename is required"))
			return
		}

		// Downloads address known artifacts by bare name only
		if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "Invalid filename"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetInputs handles GET /api/results/inputs with RFC 7807 errors
func (h *ResultsHandler) GetInputs(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "listing panel inputs",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	inputs, err := h.service.ListInputs(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list panel inputs",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		// Map service errors to API errors
		if errors.Is(err, services.ErrNoInputFiles) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_INPUT_FILES",
				"No panel input files available. Place a CSV or XLSX panel in the data directory.",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	// Success response
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   inputs,
		"count":  len(inputs),
	})
}

// GetFiles handles GET /api/results/files with RFC 7807 errors
func (h *ResultsHandler) GetFiles(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "listing result files",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	files := h.service.ListResults(r.Context())

	render.JSON(w, r, map[string]interface{}{
		"status":      "success",
		"data":        files,
		"count":       len(files),
		"has_results": h.service.HasResults(r.Context()),
	})
}

// GetShocks handles GET /api/results/shocks with RFC 7807 errors
func (h *ResultsHandler) GetShocks(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching shock dates",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	shocks, err := h.service.Shocks(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get shock dates",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrResultsNotAvailable) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"RESULTS_NOT_AVAILABLE",
				"Shock dates are not available. Run the analysis first.",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":    "success",
		"data":      shocks.Shocks,
		"count":     len(shocks.Shocks),
		"source":    shocks.Source,
		"per_state": shocks.PerState,
	})
}

// GetSigmaPath handles GET /api/results/sigma-path with RFC 7807 errors
func (h *ResultsHandler) GetSigmaPath(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching sigma convergence path",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	entries, err := h.service.SigmaPath(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get sigma path",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrResultsNotAvailable) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"RESULTS_NOT_AVAILABLE",
				"Sigma convergence path is not available. Run the analysis first.",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"count":  len(entries),
	})
}

// GetBetaPath handles GET /api/results/beta-path with RFC 7807 errors
func (h *ResultsHandler) GetBetaPath(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching beta convergence path",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	entries, err := h.service.BetaPath(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get beta path",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrResultsNotAvailable) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"RESULTS_NOT_AVAILABLE",
				"Beta convergence path is not available. Run the analysis first.",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"count":  len(entries),
	})
}

// GetRobustness handles GET /api/results/robustness with RFC 7807 errors
func (h *ResultsHandler) GetRobustness(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching robustness comparison",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	entries, err := h.service.Robustness(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get robustness comparison",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrResultsNotAvailable) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"RESULTS_NOT_AVAILABLE",
				"Robustness comparison is not available. Run the analysis first.",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"count":  len(entries),
	})
}

// GetSensitivity handles GET /api/results/sensitivity with RFC 7807 errors
func (h *ResultsHandler) GetSensitivity(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching sensitivity grid",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	entries, err := h.service.Sensitivity(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get sensitivity grid",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrResultsNotAvailable) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"RESULTS_NOT_AVAILABLE",
				"Sensitivity grid is not available. Run the analysis with sensitivity enabled.",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"count":  len(entries),
	})
}

// GetSummary handles GET /api/results/summary with RFC 7807 errors
func (h *ResultsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching study summary",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get study summary",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrResultsNotAvailable) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"RESULTS_NOT_AVAILABLE",
				"Study summary is not available. Run the analysis first.",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// GetInsights handles GET /api/results/insights with RFC 7807 errors
func (h *ResultsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching study insights",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	insights, err := h.service.Insights(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get study insights",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrResultsNotAvailable) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"RESULTS_NOT_AVAILABLE",
				"Study insights are not available. Run the analysis first.",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   insights,
	})
}

// GetCharts handles GET /api/results/charts with RFC 7807 errors
func (h *ResultsHandler) GetCharts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "listing rendered charts",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	charts := h.service.ListCharts(r.Context())

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   charts,
		"count":  len(charts),
	})
}

// GetChart handles GET /api/results/charts/{name}, serving the PNG inline
func (h *ResultsHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	name := chi.URLParam(r, "name")

	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("name", "Invalid chart name"))
		return
	}

	if err := h.service.ServeChart(r.Context(), w, r, name); err != nil {
		h.logger.WarnContext(r.Context(), "chart not available",
			slog.String("request_id", reqID),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)

		if !isResponseWritten(w) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"CHART_NOT_FOUND",
				fmt.Sprintf("Chart '%s' has not been rendered. Run the analysis first.", name),
			))
		}
	}
}

// DownloadFile handles GET /api/results/download/{filename} with RFC 7807 errors
func (h *ResultsHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	filename := chi.URLParam(r, "filename")

	h.logger.InfoContext(r.Context(), "downloading result file",
		slog.String("request_id", reqID),
		slog.String("filename", filename),
	)

	// Let service handle the download (it writes directly to response)
	if err := h.service.DownloadFile(r.Context(), w, r, filename); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to download result file",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("filename", filename),
		)

		// Only handle error if response not yet written
		if !isResponseWritten(w) {
			if errors.Is(err, services.ErrFileNotFound) {
				h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusNotFound,
					"FILE_NOT_FOUND",
					fmt.Sprintf("File '%s' not found", filename),
					map[string]interface{}{
						"filename": filename,
					},
				))
				return
			}

			if errors.Is(err, services.ErrInvalidFileType) {
				h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusBadRequest,
					"INVALID_FILE_TYPE",
					fmt.Sprintf("File '%s' has an unsupported type", filename),
					map[string]interface{}{
						"filename": filename,
					},
				))
				return
			}

			h.errorHandler.HandleError(w, r, err)
		}
	}
}

// isResponseWritten checks if response has already been written
func isResponseWritten(w http.ResponseWriter) bool {
	// Check if writer is a wrapped response writer with status
	if ww, ok := w.(interface{ Status() int }); ok {
		return ww.Status() != 0
	}
	return false
}
