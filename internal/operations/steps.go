package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vegcli/internal/charts"
	"vegcli/internal/config"
	apperrors "vegcli/internal/errors"
	"vegcli/internal/eventstudy"
	"vegcli/internal/exporter"
	"vegcli/internal/files"
	"vegcli/internal/panel"
	"vegcli/pkg/contracts/domain"
)

// LoadPanelStep resolves the input file and parses it into the panel every
// later step works from.
type LoadPanelStep struct {
	BaseStep
	discovery *files.Discovery
	loader    *panel.Loader
	logger    *slog.Logger
	options   *StepOptions
}

// NewLoadPanelStep creates the panel loading step.
func NewLoadPanelStep(discovery *files.Discovery, logger *slog.Logger, options *StepOptions) *LoadPanelStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("step", StepIDLoadPanel))

	return &LoadPanelStep{
		BaseStep:  NewBaseStep(StepIDLoadPanel, StepNameLoadPanel, nil),
		discovery: discovery,
		loader:    panel.NewLoader(logger),
		logger:    logger,
		options:   options,
	}
}

// Execute resolves the input reference and loads the panel.
func (s *LoadPanelStep) Execute(ctx context.Context, state *OperationState) error {
	spec := state.Spec()
	stepState := state.GetStep(s.ID())

	s.updateProgress(state.ID, stepState, 5, "Resolving panel input")

	input, err := s.discovery.ResolvePanelInput(spec.File)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	state.Manifest().SetSource(input.Path)
	s.updateProgress(state.ID, stepState, 20, fmt.Sprintf("Loading %s", input.Name))

	p, err := s.loader.Load(ctx, input.Path, spec.Sheet)
	if err != nil {
		// Malformed inputs are deterministic failures; anything else is
		// treated as transient I/O and retried.
		retryable := !errors.Is(err, apperrors.ErrSheetNotFound) &&
			!errors.Is(err, apperrors.ErrNoPanelRows) &&
			!errors.Is(err, apperrors.ErrColumnDetection) &&
			!errors.Is(err, apperrors.ErrPanelNotFound) &&
			!errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded)
		return NewExecutionError(s.ID(), err, retryable)
	}

	state.SetPanel(p)
	stepState.SetMetadata("file", input.Name)
	stepState.SetMetadata("rows", p.Meta.Rows)
	stepState.SetMetadata("states", p.Meta.States)
	stepState.SetMetadata("rel_column", p.Meta.Columns.Rel)

	if s.options.Tracer != nil {
		s.options.Tracer.RecordRowsLoaded(ctx, p.Meta.Rows, input.Kind)
	}

	s.updateProgress(state.ID, stepState, 100,
		fmt.Sprintf("Loaded %d rows across %d states", p.Meta.Rows, p.Meta.States))
	return nil
}

func (s *LoadPanelStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// DetectShocksStep finds the shock months that anchor the event windows and
// writes shock_dates_used.csv.
type DetectShocksStep struct {
	BaseStep
	exporter *exporter.StudyExporter
	paths    *config.Paths
	logger   *slog.Logger
	options  *StepOptions
}

// NewDetectShocksStep creates the shock detection step.
func NewDetectShocksStep(studyExporter *exporter.StudyExporter, paths *config.Paths, logger *slog.Logger, options *StepOptions) *DetectShocksStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("step", StepIDDetectShocks))

	return &DetectShocksStep{
		BaseStep: NewBaseStep(StepIDDetectShocks, StepNameDetectShocks, []string{StepIDLoadPanel}),
		exporter: studyExporter,
		paths:    paths,
		logger:   logger,
		options:  options,
	}
}

// Validate requires a loaded panel.
func (s *DetectShocksStep) Validate(state *OperationState) error {
	if _, ok := state.Panel(); !ok {
		return fmt.Errorf("panel not loaded")
	}
	return nil
}

// Execute runs shock detection and persists the dates actually used.
func (s *DetectShocksStep) Execute(ctx context.Context, state *OperationState) error {
	p, ok := state.Panel()
	if !ok {
		return NewValidationError(s.ID(), "panel not loaded")
	}
	spec := state.Spec()
	stepState := state.GetStep(s.ID())

	s.updateProgress(state.ID, stepState, 10, "Detecting shock months")

	set, err := eventstudy.DetectShocks(p, spec.Params, s.logger)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	if err := ctx.Err(); err != nil {
		return NewCancellationError(s.ID())
	}

	state.SetShocks(set)
	stepState.SetMetadata("shock_source", set.Source)
	stepState.SetMetadata("num_shocks", len(set.Shocks))

	s.updateProgress(state.ID, stepState, 70, fmt.Sprintf("Found %d shocks via %s", len(set.Shocks), set.Source))

	if err := s.exporter.WriteShockDates(set); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.Manifest().AddArtifact(s.paths.ShockDatesCSV, "csv", s.ID())

	if s.options.Tracer != nil {
		s.options.Tracer.RecordShocksDetected(ctx, len(set.Shocks), set.Source)
	}

	s.updateProgress(state.ID, stepState, 100, fmt.Sprintf("Wrote %s", config.ShockDatesFile))
	return nil
}

func (s *DetectShocksStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// ConvergenceStep stacks the event windows and estimates the σ and β paths,
// writing the two convergence CSVs and the run summary.
type ConvergenceStep struct {
	BaseStep
	exporter *exporter.StudyExporter
	paths    *config.Paths
	logger   *slog.Logger
	options  *StepOptions
}

// NewConvergenceStep creates the convergence estimation step.
func NewConvergenceStep(studyExporter *exporter.StudyExporter, paths *config.Paths, logger *slog.Logger, options *StepOptions) *ConvergenceStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("step", StepIDConvergence))

	return &ConvergenceStep{
		BaseStep: NewBaseStep(StepIDConvergence, StepNameConvergence, []string{StepIDDetectShocks}),
		exporter: studyExporter,
		paths:    paths,
		logger:   logger,
		options:  options,
	}
}

// Validate requires the panel and the detected shocks.
func (s *ConvergenceStep) Validate(state *OperationState) error {
	if _, ok := state.Panel(); !ok {
		return fmt.Errorf("panel not loaded")
	}
	if _, ok := state.Shocks(); !ok {
		return fmt.Errorf("shocks not detected")
	}
	return nil
}

// Execute builds the event windows and traces both convergence paths.
func (s *ConvergenceStep) Execute(ctx context.Context, state *OperationState) error {
	p, _ := state.Panel()
	set, _ := state.Shocks()
	spec := state.Spec()
	stepState := state.GetStep(s.ID())

	s.updateProgress(state.ID, stepState, 10, "Stacking event windows")

	obs, err := eventstudy.BuildEventWindows(p.Rows, set.Months(), spec.Params.Window)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.SetWindows(obs)
	stepState.SetMetadata("event_observations", len(obs))

	s.updateProgress(state.ID, stepState, 40, "Estimating sigma convergence")
	sigma := eventstudy.SigmaPath(obs)

	if err := ctx.Err(); err != nil {
		return NewCancellationError(s.ID())
	}

	s.updateProgress(state.ID, stepState, 60, "Estimating beta convergence")
	beta := eventstudy.BetaPath(obs, spec.Params.MinObs)

	result := &eventstudy.StudyResult{
		Meta:     p.Meta,
		Shocks:   set,
		Sigma:    sigma,
		Beta:     beta,
		Summary:  buildSummary(p, set, spec.Params.Window),
		Insights: eventstudy.BuildInsights(sigma, beta),
	}
	state.SetResult(result)
	stepState.SetMetadata("sigma_points", len(sigma))
	stepState.SetMetadata("beta_points", len(beta))

	s.updateProgress(state.ID, stepState, 80, "Writing convergence outputs")

	if err := s.exporter.WriteSigmaPath(sigma); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.Manifest().AddArtifact(s.paths.SigmaPathCSV, "csv", s.ID())

	if err := s.exporter.WriteBetaPath(beta); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.Manifest().AddArtifact(s.paths.BetaPathCSV, "csv", s.ID())

	if err := s.exporter.WriteSummary(result.Summary); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.Manifest().AddArtifact(s.paths.SummaryTXT, "txt", s.ID())

	if s.options.Tracer != nil {
		s.options.Tracer.RecordRegressionsFitted(ctx, countFitted(beta), "ols_hc1")
	}

	s.updateProgress(state.ID, stepState, 100,
		fmt.Sprintf("Estimated %d sigma and %d beta event times", len(sigma), len(beta)))
	return nil
}

func (s *ConvergenceStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// RobustnessStep re-estimates the β path under HC1, clustered and
// Newey-West standard errors and writes robust_se_by_event_time.csv.
type RobustnessStep struct {
	BaseStep
	exporter *exporter.StudyExporter
	paths    *config.Paths
	logger   *slog.Logger
	options  *StepOptions
}

// NewRobustnessStep creates the robustness step.
func NewRobustnessStep(studyExporter *exporter.StudyExporter, paths *config.Paths, logger *slog.Logger, options *StepOptions) *RobustnessStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("step", StepIDRobustness))

	return &RobustnessStep{
		BaseStep: NewBaseStep(StepIDRobustness, StepNameRobustness, []string{StepIDConvergence}),
		exporter: studyExporter,
		paths:    paths,
		logger:   logger,
		options:  options,
	}
}

// Validate requires the stacked event windows.
func (s *RobustnessStep) Validate(state *OperationState) error {
	if _, ok := state.Windows(); !ok {
		return fmt.Errorf("event windows not built")
	}
	return nil
}

// Execute reuses the stacked windows and compares the SE estimators.
func (s *RobustnessStep) Execute(ctx context.Context, state *OperationState) error {
	obs, _ := state.Windows()
	spec := state.Spec()
	stepState := state.GetStep(s.ID())

	s.updateProgress(state.ID, stepState, 20, "Comparing standard error estimators")

	points := eventstudy.RobustPath(obs, spec.Params.MinObs, spec.Params.HACLags)
	state.SetRobust(points)
	stepState.SetMetadata("event_times", len(points))

	if err := ctx.Err(); err != nil {
		return NewCancellationError(s.ID())
	}

	s.updateProgress(state.ID, stepState, 70, "Writing robustness output")

	if err := s.exporter.WriteRobustPath(points); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.Manifest().AddArtifact(s.paths.RobustSECSV, "csv", s.ID())

	if s.options.Tracer != nil {
		s.options.Tracer.RecordRegressionsFitted(ctx, len(points), "robust")
	}

	s.updateProgress(state.ID, stepState, 100,
		fmt.Sprintf("Robust SEs for %d event times", len(points)))
	return nil
}

func (s *RobustnessStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// ChartsStep renders the PNG charts for the σ path, β path and half-life.
type ChartsStep struct {
	BaseStep
	renderer *charts.Renderer
	paths    *config.Paths
	logger   *slog.Logger
	options  *StepOptions
}

// NewChartsStep creates the chart rendering step.
func NewChartsStep(renderer *charts.Renderer, paths *config.Paths, logger *slog.Logger, options *StepOptions) *ChartsStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("step", StepIDCharts))

	return &ChartsStep{
		BaseStep: NewBaseStep(StepIDCharts, StepNameCharts, []string{StepIDConvergence}),
		renderer: renderer,
		paths:    paths,
		logger:   logger,
		options:  options,
	}
}

// Validate requires the study result.
func (s *ChartsStep) Validate(state *OperationState) error {
	if _, ok := state.Result(); !ok {
		return fmt.Errorf("study result not available")
	}
	return nil
}

// Execute renders whichever charts have data.
func (s *ChartsStep) Execute(ctx context.Context, state *OperationState) error {
	result, _ := state.Result()
	stepState := state.GetStep(s.ID())

	s.updateProgress(state.ID, stepState, 20, "Rendering charts")

	written, err := s.renderer.RenderAll(result.Sigma, result.Beta)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	for _, path := range written {
		state.Manifest().AddArtifact(path, "png", s.ID())
	}
	stepState.SetMetadata("charts", len(written))

	if err := ctx.Err(); err != nil {
		return NewCancellationError(s.ID())
	}

	s.updateProgress(state.ID, stepState, 100, fmt.Sprintf("Rendered %d charts", len(written)))
	return nil
}

func (s *ChartsStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// SensitivityStep sweeps the window and threshold grid and writes
// sensitivity_grid.csv. It runs only when a run asks for the grid.
type SensitivityStep struct {
	BaseStep
	exporter *exporter.StudyExporter
	paths    *config.Paths
	logger   *slog.Logger
	options  *StepOptions
}

// NewSensitivityStep creates the sensitivity grid step.
func NewSensitivityStep(studyExporter *exporter.StudyExporter, paths *config.Paths, logger *slog.Logger, options *StepOptions) *SensitivityStep {
	if options == nil {
		options = &StepOptions{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("step", StepIDSensitivity))

	return &SensitivityStep{
		BaseStep: NewBaseStep(StepIDSensitivity, StepNameSensitivity, []string{StepIDConvergence}),
		exporter: studyExporter,
		paths:    paths,
		logger:   logger,
		options:  options,
	}
}

// Validate requires a loaded panel; the grid re-detects shocks per cell.
func (s *SensitivityStep) Validate(state *OperationState) error {
	if _, ok := state.Panel(); !ok {
		return fmt.Errorf("panel not loaded")
	}
	return nil
}

// Execute sweeps the grid and streams the combined β paths to disk.
func (s *SensitivityStep) Execute(ctx context.Context, state *OperationState) error {
	p, _ := state.Panel()
	spec := state.Spec()
	stepState := state.GetStep(s.ID())

	windows, thresholds := spec.SensitivityAxes()
	stepState.SetMetadata("grid_cells", len(windows)*len(thresholds))

	s.updateProgress(state.ID, stepState, 10,
		fmt.Sprintf("Sweeping %d window x %d threshold grid", len(windows), len(thresholds)))

	points, err := eventstudy.SensitivityGrid(ctx, p, spec.Params, windows, thresholds, s.logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return NewCancellationError(s.ID())
		}
		return NewExecutionError(s.ID(), err, false)
	}
	state.SetGrid(points)
	stepState.SetMetadata("grid_rows", len(points))

	s.updateProgress(state.ID, stepState, 80, "Writing sensitivity grid")

	if err := s.exporter.WriteSensitivityGrid(points); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.Manifest().AddArtifact(s.paths.SensitivityCSV, "csv", s.ID())

	s.updateProgress(state.ID, stepState, 100,
		fmt.Sprintf("Grid produced %d rows", len(points)))
	return nil
}

func (s *SensitivityStep) updateProgress(operationID string, stepState *StepState, progress int, message string) {
	stepState.UpdateProgress(float64(progress), message)
	if s.options.StatusBroadcaster != nil {
		s.options.StatusBroadcaster.UpdateStepWithMetadata(operationID, s.ID(), progress, message, stepState.Metadata)
	}
}

// buildSummary assembles the headline run summary for summary.txt.
func buildSummary(p *panel.Panel, set domain.ShockSet, window int) domain.StudySummary {
	return domain.StudySummary{
		States:      p.Meta.States,
		RelColumn:   p.Meta.Columns.Rel,
		ShockSource: set.Source,
		NumShocks:   len(set.Shocks),
		Window:      window,
	}
}

// countFitted counts event times where the regression actually ran.
func countFitted(beta []domain.BetaPoint) int {
	fitted := 0
	for _, point := range beta {
		if point.N > 0 {
			fitted++
		}
	}
	return fitted
}
