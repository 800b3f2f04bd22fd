package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"vegcli/internal/config"
	"vegcli/internal/eventstudy"
	"vegcli/internal/exporter"
	"vegcli/internal/files"
	"vegcli/internal/infrastructure"
	api "vegcli/pkg/contracts/api/v1"
	"vegcli/pkg/contracts/domain"
)

// ResultsService reads the artifacts a run wrote back into API responses.
// It never computes anything itself; the pipeline writes, this reads.
type ResultsService struct {
	paths     *config.Paths
	discovery *files.Discovery
	logger    *slog.Logger
}

// NewResultsService creates a results service rooted at the application
// paths.
func NewResultsService(paths *config.Paths, logger *slog.Logger) *ResultsService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("ResultsService initialized",
		slog.String("data_dir", paths.DataDir),
		slog.String("output_dir", paths.OutputDir))

	return &ResultsService{
		paths:     paths,
		discovery: files.NewDiscovery(paths),
		logger:    logger,
	}
}

// ListInputs returns the panel input candidates in the data directory,
// newest first.
func (rs *ResultsService) ListInputs(ctx context.Context) ([]domain.InputFile, error) {
	inputs, err := rs.discovery.FindPanelInputs()
	if err != nil {
		logResultsError(ctx, "list_inputs", "failed to scan data directory",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list inputs: %w", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputFiles, rs.paths.DataDir)
	}
	return inputs, nil
}

// ListResults returns the generated artifacts that currently exist, in the
// order the pipeline writes them.
func (rs *ResultsService) ListResults(ctx context.Context) []files.ResultFile {
	return rs.discovery.FindResultFiles()
}

// HasResults reports whether the core artifacts of a completed run exist.
func (rs *ResultsService) HasResults(ctx context.Context) bool {
	return rs.discovery.HasCoreResults()
}

// Shocks returns the detected shock set of the latest run.
func (rs *ResultsService) Shocks(ctx context.Context) (domain.ShockSet, error) {
	if !config.FileExists(rs.paths.ShockDatesCSV) {
		return domain.ShockSet{}, fmt.Errorf("%w: run the analysis first", ErrResultsNotAvailable)
	}

	set, err := exporter.ReadShockDates(rs.paths.ShockDatesCSV)
	if err != nil {
		logResultsError(ctx, "read_shocks", "failed to read shock dates",
			slog.String("path", rs.paths.ShockDatesCSV),
			slog.String("error", err.Error()))
		return domain.ShockSet{}, fmt.Errorf("failed to read shock dates: %w", err)
	}
	return set, nil
}

// SigmaPath returns the sigma-convergence path of the latest run.
func (rs *ResultsService) SigmaPath(ctx context.Context) ([]api.SigmaPathEntry, error) {
	points, err := rs.readSigmaPath(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]api.SigmaPathEntry, len(points))
	for i, p := range points {
		entries[i] = api.SigmaPathEntry{
			EventTime: p.EventTime,
			AvgSigma:  api.JSONFloat(p.AvgSigma),
		}
	}
	return entries, nil
}

// BetaPath returns the beta-convergence path of the latest run.
func (rs *ResultsService) BetaPath(ctx context.Context) ([]api.BetaPathEntry, error) {
	points, err := rs.readBetaPath(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]api.BetaPathEntry, len(points))
	for i, p := range points {
		entries[i] = api.BetaPathEntry{
			EventTime:      p.EventTime,
			Beta:           api.JSONFloat(p.Beta),
			SE:             api.JSONFloat(p.SE),
			HalfLifeMonths: api.JSONFloat(p.HalfLifeMonths),
			N:              p.N,
		}
	}
	return entries, nil
}

// Robustness returns the robustness table of the latest run.
func (rs *ResultsService) Robustness(ctx context.Context) ([]api.RobustnessEntry, error) {
	if !config.FileExists(rs.paths.RobustSECSV) {
		return nil, fmt.Errorf("%w: run the analysis first", ErrResultsNotAvailable)
	}

	points, err := exporter.ReadRobustPath(rs.paths.RobustSECSV)
	if err != nil {
		logResultsError(ctx, "read_robustness", "failed to read robustness table",
			slog.String("path", rs.paths.RobustSECSV),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to read robustness table: %w", err)
	}

	entries := make([]api.RobustnessEntry, len(points))
	for i, p := range points {
		entries[i] = api.RobustnessEntry{
			EventTime:   p.EventTime,
			NObs:        p.NObs,
			BetaHC1:     api.JSONFloat(p.BetaHC1),
			SEHC1:       api.JSONFloat(p.SEHC1),
			BetaCluster: api.JSONFloat(p.BetaCluster),
			SECluster:   api.JSONFloat(p.SECluster),
			BetaHAC:     api.JSONFloat(p.BetaHAC),
			SEHAC:       api.JSONFloat(p.SEHAC),
		}
	}
	return entries, nil
}

// Sensitivity returns the window/threshold grid of the latest run. Runs
// started without the grid yield ErrResultsNotAvailable.
func (rs *ResultsService) Sensitivity(ctx context.Context) ([]api.SensitivityEntry, error) {
	if !config.FileExists(rs.paths.SensitivityCSV) {
		return nil, fmt.Errorf("%w: sensitivity grid was not computed", ErrResultsNotAvailable)
	}

	points, err := exporter.ReadSensitivityGrid(rs.paths.SensitivityCSV)
	if err != nil {
		logResultsError(ctx, "read_sensitivity", "failed to read sensitivity grid",
			slog.String("path", rs.paths.SensitivityCSV),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to read sensitivity grid: %w", err)
	}

	entries := make([]api.SensitivityEntry, len(points))
	for i, p := range points {
		entries[i] = api.SensitivityEntry{
			Window:         p.Window,
			Threshold:      p.Threshold,
			EventTime:      p.EventTime,
			Beta:           api.JSONFloat(p.Beta),
			SE:             api.JSONFloat(p.SE),
			HalfLifeMonths: api.JSONFloat(p.HalfLifeMonths),
			N:              p.N,
			NumShocks:      p.NumShocks,
		}
	}
	return entries, nil
}

// Summary returns the study summary of the latest run.
func (rs *ResultsService) Summary(ctx context.Context) (domain.StudySummary, error) {
	if !config.FileExists(rs.paths.SummaryTXT) {
		return domain.StudySummary{}, fmt.Errorf("%w: run the analysis first", ErrResultsNotAvailable)
	}

	summary, err := exporter.ReadSummary(rs.paths.SummaryTXT)
	if err != nil {
		logResultsError(ctx, "read_summary", "failed to read summary",
			slog.String("path", rs.paths.SummaryTXT),
			slog.String("error", err.Error()))
		return domain.StudySummary{}, fmt.Errorf("failed to read summary: %w", err)
	}
	return summary, nil
}

// Insights derives the dashboard key findings from the written sigma and
// beta paths.
func (rs *ResultsService) Insights(ctx context.Context) (api.InsightsResponse, error) {
	sigma, err := rs.readSigmaPath(ctx)
	if err != nil {
		return api.InsightsResponse{}, err
	}
	beta, err := rs.readBetaPath(ctx)
	if err != nil {
		return api.InsightsResponse{}, err
	}

	ins := eventstudy.BuildInsights(sigma, beta)
	return api.InsightsResponse{
		BetaPreMean:       api.JSONFloat(ins.BetaPreMean),
		BetaPostMean:      api.JSONFloat(ins.BetaPostMean),
		SigmaPreMean:      api.JSONFloat(ins.SigmaPreMean),
		SigmaPostMean:     api.JSONFloat(ins.SigmaPostMean),
		HalfLifePre:       api.JSONFloat(ins.HalfLifePre),
		HalfLifePost:      api.JSONFloat(ins.HalfLifePost),
		PostSlopePValue:   api.JSONFloat(ins.PostSlopePValue),
		PostSlopeSignif:   ins.PostSlopeSignif,
		FasterConvergence: ins.FasterConvergence,
		HigherVolatility:  ins.HigherVolatility,
	}, nil
}

// ListCharts returns the rendered chart images that exist in the output
// directory.
func (rs *ResultsService) ListCharts(ctx context.Context) []files.ResultFile {
	var charts []files.ResultFile
	for _, rf := range rs.discovery.FindResultFiles() {
		if strings.EqualFold(filepath.Ext(rf.Name), ".png") {
			charts = append(charts, rf)
		}
	}
	return charts
}

// ServeChart writes a rendered chart PNG to the response. Only the
// well-known chart names resolve.
func (rs *ResultsService) ServeChart(ctx context.Context, w http.ResponseWriter, r *http.Request, name string) error {
	rf, ok := rs.discovery.LookupResultFile(name)
	if !ok || !strings.EqualFold(filepath.Ext(rf.Name), ".png") {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, rf.Path)
	return nil
}

// DownloadFile serves one generated artifact. Only the well-known artifact
// names resolve, so traversal never reaches the filesystem.
func (rs *ResultsService) DownloadFile(ctx context.Context, w http.ResponseWriter, r *http.Request, filename string) error {
	rf, ok := rs.discovery.LookupResultFile(filename)
	if !ok {
		rs.logger.WarnContext(ctx, "download rejected",
			slog.String("filename", filename))
		return fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}

	switch strings.ToLower(filepath.Ext(rf.Name)) {
	case ".csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rf.Name))
	case ".txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rf.Name))
	case ".png":
		// Charts render inline in the dashboard.
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rf.Name))
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFileType, filepath.Ext(rf.Name))
	}

	rs.logger.DebugContext(ctx, "serving result file",
		slog.String("filename", rf.Name),
		slog.Int64("size", rf.Size))

	http.ServeFile(w, r, rf.Path)
	return nil
}

// readSigmaPath loads the raw sigma path rows.
func (rs *ResultsService) readSigmaPath(ctx context.Context) ([]domain.SigmaPoint, error) {
	if !config.FileExists(rs.paths.SigmaPathCSV) {
		return nil, fmt.Errorf("%w: run the analysis first", ErrResultsNotAvailable)
	}

	points, err := exporter.ReadSigmaPath(rs.paths.SigmaPathCSV)
	if err != nil {
		logResultsError(ctx, "read_sigma_path", "failed to read sigma path",
			slog.String("path", rs.paths.SigmaPathCSV),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to read sigma path: %w", err)
	}
	return points, nil
}

// readBetaPath loads the raw beta path rows.
func (rs *ResultsService) readBetaPath(ctx context.Context) ([]domain.BetaPoint, error) {
	if !config.FileExists(rs.paths.BetaPathCSV) {
		return nil, fmt.Errorf("%w: run the analysis first", ErrResultsNotAvailable)
	}

	points, err := exporter.ReadBetaPath(rs.paths.BetaPathCSV)
	if err != nil {
		logResultsError(ctx, "read_beta_path", "failed to read beta path",
			slog.String("path", rs.paths.BetaPathCSV),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to read beta path: %w", err)
	}
	return points, nil
}

// logResultsError logs a results-service error with the trace-aware logger.
func logResultsError(ctx context.Context, action, message string, attrs ...slog.Attr) {
	logger := infrastructure.LoggerWithContext(ctx)

	allAttrs := []slog.Attr{
		slog.String("component", "results_service"),
		slog.String("action", action),
	}
	allAttrs = append(allAttrs, attrs...)

	logger.LogAttrs(ctx, slog.LevelError, message, allAttrs...)
}
