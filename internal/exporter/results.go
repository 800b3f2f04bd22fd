package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"vegcli/internal/config"
	"vegcli/internal/eventstudy"
	"vegcli/pkg/contracts/domain"
)

// StudyExporter writes the event-study result files into the configured
// output directory.
type StudyExporter struct {
	csvWriter *CSVWriter
	paths     *config.Paths
	logger    *slog.Logger
}

// NewStudyExporter creates an exporter rooted at the given paths.
func NewStudyExporter(paths *config.Paths, logger *slog.Logger) *StudyExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudyExporter{
		csvWriter: NewCSVWriter(paths),
		paths:     paths,
		logger:    logger,
	}
}

// ExportStudy writes the shock list, both convergence paths and the summary
// and returns the paths written, in write order.
func (e *StudyExporter) ExportStudy(result *eventstudy.StudyResult) ([]string, error) {
	if err := e.WriteShockDates(result.Shocks); err != nil {
		return nil, fmt.Errorf("write shock dates: %w", err)
	}
	if err := e.WriteSigmaPath(result.Sigma); err != nil {
		return nil, fmt.Errorf("write sigma path: %w", err)
	}
	if err := e.WriteBetaPath(result.Beta); err != nil {
		return nil, fmt.Errorf("write beta path: %w", err)
	}
	if err := e.WriteSummary(result.Summary); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	paths := []string{
		e.paths.ShockDatesCSV,
		e.paths.SigmaPathCSV,
		e.paths.BetaPathCSV,
		e.paths.SummaryTXT,
	}
	e.logger.Info("study results exported",
		slog.Int("files", len(paths)),
		slog.String("output_dir", e.paths.OutputDir))
	return paths, nil
}

// WriteShockDates writes the shock months as YYYY-MM values. Per-state
// detection adds a state column; national and explicit shocks keep the
// single-column layout.
func (e *StudyExporter) WriteShockDates(set domain.ShockSet) error {
	headers := []string{"shock_date"}
	if set.PerState {
		headers = append(headers, "state")
	}

	records := make([][]string, 0, len(set.Shocks))
	for _, s := range set.Shocks {
		row := []string{formatMonth(s.Date)}
		if set.PerState {
			row = append(row, s.State)
		}
		records = append(records, row)
	}

	return e.csvWriter.WriteSimpleCSV(e.paths.ShockDatesCSV, headers, records)
}

// WriteSigmaPath writes the σ-convergence path.
func (e *StudyExporter) WriteSigmaPath(path []domain.SigmaPoint) error {
	records := make([][]string, 0, len(path))
	for _, p := range path {
		records = append(records, []string{
			formatInt(p.EventTime),
			formatFloat(p.AvgSigma),
		})
	}
	return e.csvWriter.WriteSimpleCSV(e.paths.SigmaPathCSV, []string{"event_time", "avg_sigma"}, records)
}

// WriteBetaPath writes the β-convergence path.
func (e *StudyExporter) WriteBetaPath(path []domain.BetaPoint) error {
	records := make([][]string, 0, len(path))
	for _, p := range path {
		records = append(records, []string{
			formatInt(p.EventTime),
			formatFloat(p.Beta),
			formatFloat(p.SE),
			formatFloat(p.HalfLifeMonths),
			formatInt(p.N),
		})
	}
	headers := []string{"event_time", "beta", "se", "half_life_months", "n"}
	return e.csvWriter.WriteSimpleCSV(e.paths.BetaPathCSV, headers, records)
}

// WriteRobustPath writes the robustness table with one row per event time.
func (e *StudyExporter) WriteRobustPath(points []domain.RobustPoint) error {
	records := make([][]string, 0, len(points))
	for _, p := range points {
		records = append(records, []string{
			formatInt(p.EventTime),
			formatInt(p.NObs),
			formatFloat(p.BetaHC1),
			formatFloat(p.SEHC1),
			formatFloat(p.BetaCluster),
			formatFloat(p.SECluster),
			formatFloat(p.BetaHAC),
			formatFloat(p.SEHAC),
		})
	}
	headers := []string{
		"event_time", "n_obs",
		"beta_hc1", "se_hc1",
		"beta_cluster", "se_cluster",
		"beta_hac", "se_hac",
	}
	return e.csvWriter.WriteSimpleCSV(e.paths.RobustSECSV, headers, records)
}

// WriteSensitivityGrid streams the grid rows; the table grows with
// windows × thresholds × event times.
func (e *StudyExporter) WriteSensitivityGrid(points []domain.SensitivityPoint) error {
	headers := []string{
		"window", "threshold", "event_time",
		"beta", "se", "half_life_months", "n", "n_shocks",
	}
	sw, err := e.csvWriter.CreateStreamWriter(e.paths.SensitivityCSV, headers)
	if err != nil {
		return err
	}

	for i, p := range points {
		record := []string{
			formatInt(p.Window),
			formatFloat(p.Threshold),
			formatInt(p.EventTime),
			formatFloat(p.Beta),
			formatFloat(p.SE),
			formatFloat(p.HalfLifeMonths),
			formatInt(p.N),
			formatInt(p.NumShocks),
		}
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return sw.Close()
}

// WriteSummary writes the five-line study summary as UTF-8 text.
func (e *StudyExporter) WriteSummary(s domain.StudySummary) error {
	if err := os.MkdirAll(filepath.Dir(e.paths.SummaryTXT), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	content := fmt.Sprintf(
		"States: %d\nConvergence variable: %s\nShock source: %s\nNum shocks: %d\nWindow: ±%d months\n",
		s.States, s.RelColumn, s.ShockSource, s.NumShocks, s.Window,
	)
	return os.WriteFile(e.paths.SummaryTXT, []byte(content), 0o644)
}
