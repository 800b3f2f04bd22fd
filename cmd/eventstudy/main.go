package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"vegcli/internal/charts"
	"vegcli/internal/config"
	"vegcli/internal/eventstudy"
	"vegcli/internal/exporter"
	"vegcli/internal/files"
	"vegcli/internal/panel"
	"vegcli/internal/validation"
)

func main() {
	file := flag.String("file", "", "panel workbook or CSV (defaults to the newest file in data/)")
	sheet := flag.String("sheet", "", "worksheet name for Excel inputs (defaults to the first sheet)")
	window := flag.Int("window", eventstudy.DefaultWindow, "event-window half-width in months")
	threshold := flag.Float64("threshold", eventstudy.DefaultThresholdK, "shock threshold as std-dev multiplier")
	maxShocks := flag.Int("max-shocks", eventstudy.DefaultMaxShocks, "cap on auto-detected shocks")
	minObs := flag.Int("min-obs", eventstudy.DefaultMinObs, "minimum observations per event time")
	hacLags := flag.Int("hac-lags", eventstudy.DefaultHACLags, "Newey-West maximum lag order")
	shocks := flag.String("shocks", "", "comma-separated shock months (YYYY-MM); skips detection")
	perState := flag.Bool("per-state", false, "detect shocks within each state's own series")
	outDir := flag.String("out", "", "output directory (defaults to output/event_study_outputs relative to executable)")
	flag.Parse()

	// Initialize paths
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if *outDir != "" {
		paths = config.NewPaths(paths.ExecutableDir, paths.DataDir, *outDir, paths.LogsDir)
	}

	validator := validation.NewFileValidator(slog.Default())
	if err := validator.ValidateOutputDirectory(paths.OutputDir); err != nil {
		slog.Error("Output directory check failed", "error", err)
		os.Exit(1)
	}

	// Resolve the panel input: explicit path, bare name in data/, or newest.
	discovery := files.NewDiscovery(paths)
	input, err := discovery.ResolvePanelInput(*file)
	if err != nil {
		slog.Error("No usable panel input",
			"error", err,
			"hint", "place a panel file in data/ or pass --file")
		os.Exit(1)
	}
	if err := validator.ValidatePanelFile(input.Path); err != nil {
		slog.Error("Panel file rejected", "error", err)
		os.Exit(1)
	}

	params := eventstudy.Params{
		Window:         *window,
		ThresholdK:     *threshold,
		MaxShocks:      *maxShocks,
		MinObs:         *minObs,
		HACLags:        *hacLags,
		ExplicitShocks: splitList(*shocks),
		PerState:       *perState,
	}
	if err := params.Validate(); err != nil {
		slog.Error("Invalid parameters", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	slog.Info("Loading panel", "file", input.Path)
	loader := panel.NewLoader(slog.Default())
	p, err := loader.Load(ctx, input.Path, *sheet)
	if err != nil {
		slog.Error("Failed to load panel", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded panel",
		"rows", p.Meta.Rows,
		"states", p.Meta.States,
		"first", p.Meta.FirstDate.Format("2006-01"),
		"last", p.Meta.LastDate.Format("2006-01"))

	calc := eventstudy.NewCalculator(params, slog.Default())
	result, err := calc.Run(ctx, p)
	if err != nil {
		slog.Error("Event study failed", "error", err)
		os.Exit(1)
	}

	exp := exporter.NewStudyExporter(paths, slog.Default())
	written, err := exp.ExportStudy(result)
	if err != nil {
		slog.Error("Failed to write results", "error", err)
		os.Exit(1)
	}

	renderer := charts.NewRenderer(paths, slog.Default())
	rendered, err := renderer.RenderAll(result.Sigma, result.Beta)
	if err != nil {
		slog.Error("Failed to render charts", "error", err)
		os.Exit(1)
	}

	slog.Info("Event study complete",
		"shocks", len(result.Shocks.Shocks),
		"files", len(written)+len(rendered),
		"output", paths.OutputDir)

	printFindings(result)
}

// splitList parses a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printFindings(result *eventstudy.StudyResult) {
	in := result.Insights

	fmt.Println("\n=== EVENT STUDY FINDINGS ===")
	fmt.Printf("Shocks:        %d (%s)\n", len(result.Shocks.Shocks), result.Shocks.Source)
	fmt.Printf("Beta (pre):    %.4f\n", in.BetaPreMean)
	fmt.Printf("Beta (post):   %.4f\n", in.BetaPostMean)
	fmt.Printf("Sigma (pre):   %.4f\n", in.SigmaPreMean)
	fmt.Printf("Sigma (post):  %.4f\n", in.SigmaPostMean)
	fmt.Printf("Half-life pre:  %s\n", formatHalfLife(in.HalfLifePre))
	fmt.Printf("Half-life post: %s\n", formatHalfLife(in.HalfLifePost))

	if in.FasterConvergence {
		fmt.Println("Prices converge FASTER after shocks (beta more negative post-shock)")
	} else {
		fmt.Println("No acceleration of convergence after shocks")
	}
	if in.HigherVolatility {
		fmt.Println("Cross-state dispersion is HIGHER after shocks")
	}
	if in.PostSlopeSignif {
		fmt.Printf("Post-shock convergence slope significant (p=%.3f)\n", in.PostSlopePValue)
	}
}

func formatHalfLife(months float64) string {
	if math.IsNaN(months) || math.IsInf(months, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f months", months)
}
