package operations_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"vegcli/internal/charts"
	"vegcli/internal/config"
	"vegcli/internal/eventstudy"
	"vegcli/internal/exporter"
	"vegcli/internal/files"
	"vegcli/internal/operations"
	"vegcli/internal/operations/testutil"
)

// pipelineEnv wires the real steps against temp directories, the same way
// the binaries assemble them.
type pipelineEnv struct {
	manager *operations.Manager
	hub     *testutil.MockWebSocketHub
	paths   *config.Paths
	dataDir string
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	dataDir := t.TempDir()
	outDir := t.TempDir()
	paths := config.NewPaths(t.TempDir(), dataDir, outDir, t.TempDir())
	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("failed to create directories: %v", err)
	}

	logger, _ := testutil.CreateTestSlogLogger()
	discovery := files.NewDiscovery(paths)
	studyExporter := exporter.NewStudyExporter(paths, logger)
	renderer := charts.NewRenderer(paths, logger)

	hub := &testutil.MockWebSocketHub{}
	cfg := testutil.CreateTestConfig()
	cfg.OutputDir = outDir
	manager := operations.NewManager(hub, operations.NewRegistry(), cfg, logger)

	options := &operations.StepOptions{StatusBroadcaster: manager.GetBroadcaster()}
	steps := []operations.Step{
		operations.NewLoadPanelStep(discovery, logger, options),
		operations.NewDetectShocksStep(studyExporter, paths, logger, options),
		operations.NewConvergenceStep(studyExporter, paths, logger, options),
		operations.NewRobustnessStep(studyExporter, paths, logger, options),
		operations.NewChartsStep(renderer, paths, logger, options),
		operations.NewSensitivityStep(studyExporter, paths, logger, options),
	}
	for _, step := range steps {
		if err := manager.RegisterStep(step); err != nil {
			t.Fatalf("failed to register %s: %v", step.ID(), err)
		}
	}

	return &pipelineEnv{manager: manager, hub: hub, paths: paths, dataDir: dataDir}
}

func gridSpec() operations.RunSpec {
	params := eventstudy.DefaultParams()
	params.Window = 2
	params.MinObs = 3

	return operations.RunSpec{
		File:   "prices.csv",
		Params: params,
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	env := newPipelineEnv(t)
	testutil.WriteGridPanelCSV(t, env.dataDir, "prices.csv")

	resp, err := env.manager.Execute(context.Background(), "e2e-run", gridSpec())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)

	stepView := &operations.OperationState{Steps: resp.Steps}
	for _, id := range []string{
		operations.StepIDLoadPanel,
		operations.StepIDDetectShocks,
		operations.StepIDConvergence,
		operations.StepIDRobustness,
		operations.StepIDCharts,
	} {
		testutil.AssertStepCompleted(t, stepView, id)
	}
	if _, ok := resp.Steps[operations.StepIDSensitivity]; ok {
		t.Error("sensitivity should not run unless requested")
	}

	state, err := env.manager.GetOperation("e2e-run")
	testutil.AssertNoError(t, err)

	p, ok := state.Panel()
	if !ok {
		t.Fatal("panel product missing")
	}
	testutil.AssertEqual(t, len(p.Rows), 60)
	testutil.AssertEqual(t, p.Meta.States, 5)
	testutil.AssertEqual(t, p.Meta.Columns.Rel, "rel_price")

	shocks, ok := state.Shocks()
	if !ok {
		t.Fatal("shock product missing")
	}
	months := shocks.Months()
	if len(months) != 1 {
		t.Fatalf("expected the July spike as the single shock, got %d", len(months))
	}
	testutil.AssertEqual(t, months[0].Year(), 2015)
	testutil.AssertEqual(t, months[0].Month(), time.July)

	result, ok := state.Result()
	if !ok {
		t.Fatal("study result missing")
	}
	// A window of 2 spans five sigma event times and four beta event
	// times; the first differenced observation is at tau = -1.
	testutil.AssertEqual(t, len(result.Sigma), 5)
	testutil.AssertEqual(t, len(result.Beta), 4)
	testutil.AssertEqual(t, result.Beta[0].EventTime, -1)

	wantSigma := math.Sqrt(2.5)
	for _, point := range result.Sigma {
		if math.Abs(point.AvgSigma-wantSigma) > 1e-9 {
			t.Errorf("sigma at tau %d: got %v, want %v", point.EventTime, point.AvgSigma, wantSigma)
		}
	}
	for _, point := range result.Beta {
		testutil.AssertEqual(t, point.N, 5)
		if math.Abs(point.Beta) > 1e-9 {
			t.Errorf("flat panel should fit zero slope at tau %d, got %v", point.EventTime, point.Beta)
		}
	}

	robust, ok := state.Robust()
	if !ok || len(robust) == 0 {
		t.Fatal("robust SE product missing")
	}

	testutil.AssertFileExists(t, env.paths.ShockDatesCSV)
	testutil.AssertFileExists(t, env.paths.SigmaPathCSV)
	testutil.AssertFileExists(t, env.paths.BetaPathCSV)
	testutil.AssertFileExists(t, env.paths.RobustSECSV)
	testutil.AssertFileExists(t, env.paths.SummaryTXT)
	testutil.AssertFileExists(t, env.paths.SigmaPathPNG)
	testutil.AssertFileExists(t, env.paths.BetaPathPNG)
	testutil.AssertFileNotExists(t, env.paths.SensitivityCSV)

	manifestPath := filepath.Join(env.paths.OutputDir, operations.ManifestFileName)
	testutil.AssertFileExists(t, manifestPath)

	manifest, err := operations.LoadManifestFromFile(manifestPath)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, manifest.OperationID, "e2e-run")
	testutil.AssertEqual(t, manifest.Status, string(operations.OperationStatusCompleted))
	if !manifest.HasArtifact(config.SigmaPathFile) {
		t.Errorf("manifest should record %s", config.SigmaPathFile)
	}
	if !manifest.IsStepCompleted(operations.StepIDConvergence) {
		t.Error("manifest should record convergence as completed")
	}

	snapshot, ok := env.hub.LastSnapshot("e2e-run")
	if !ok {
		t.Fatal("no snapshot broadcast for the run")
	}
	testutil.AssertEqual(t, snapshot.Status, string(operations.OperationStatusCompleted))
	testutil.AssertEqual(t, snapshot.Progress, 100)
}

func TestPipelineWithSensitivity(t *testing.T) {
	env := newPipelineEnv(t)
	testutil.WriteGridPanelCSV(t, env.dataDir, "prices.csv")

	spec := gridSpec()
	spec.WithSensitivity = true
	spec.SensWindows = []int{1, 2}
	spec.SensThresholds = []float64{1.5}

	resp, err := env.manager.Execute(context.Background(), "sens-run", spec)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)

	stepView := &operations.OperationState{Steps: resp.Steps}
	testutil.AssertStepCompleted(t, stepView, operations.StepIDSensitivity)

	state, err := env.manager.GetOperation("sens-run")
	testutil.AssertNoError(t, err)

	grid, ok := state.Grid()
	if !ok {
		t.Fatal("sensitivity grid missing")
	}
	// Window 1 contributes two beta event times, window 2 contributes
	// four, for the single threshold.
	testutil.AssertEqual(t, len(grid), 6)
	for _, point := range grid {
		if point.Window != 1 && point.Window != 2 {
			t.Errorf("unexpected window %d in grid", point.Window)
		}
		testutil.AssertEqual(t, point.Threshold, 1.5)
		testutil.AssertEqual(t, point.NumShocks, 1)
	}

	testutil.AssertFileExists(t, env.paths.SensitivityCSV)
}

func TestPipelineMissingPanel(t *testing.T) {
	env := newPipelineEnv(t)

	spec := gridSpec()
	spec.File = ""

	resp, err := env.manager.Execute(context.Background(), "missing-run", spec)
	testutil.AssertError(t, err, true)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusFailed)

	stepView := &operations.OperationState{Steps: resp.Steps}
	testutil.AssertStepFailed(t, stepView, operations.StepIDLoadPanel)
	for _, id := range []string{
		operations.StepIDDetectShocks,
		operations.StepIDConvergence,
		operations.StepIDRobustness,
		operations.StepIDCharts,
	} {
		testutil.AssertStepSkipped(t, stepView, id)
	}
}

func TestPipelineExplicitShocks(t *testing.T) {
	env := newPipelineEnv(t)
	testutil.WriteGridPanelCSV(t, env.dataDir, "prices.csv")

	spec := gridSpec()
	spec.Params.ExplicitShocks = []string{"2015-03"}

	resp, err := env.manager.Execute(context.Background(), "explicit-run", spec)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, resp.Status, operations.OperationStatusCompleted)

	state, err := env.manager.GetOperation("explicit-run")
	testutil.AssertNoError(t, err)

	shocks, ok := state.Shocks()
	if !ok {
		t.Fatal("shock product missing")
	}
	testutil.AssertEqual(t, shocks.Source, "User-specified shock months")

	months := shocks.Months()
	if len(months) != 1 {
		t.Fatalf("expected one explicit shock, got %d", len(months))
	}
	testutil.AssertEqual(t, months[0].Year(), 2015)
	testutil.AssertEqual(t, months[0].Month(), time.March)
}
