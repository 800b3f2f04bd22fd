package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

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
	minObs := flag.Int("min-obs", eventstudy.DefaultMinObs, "minimum observations per event time")
	hacLags := flag.Int("hac-lags", eventstudy.DefaultHACLags, "Newey-West maximum lag order")
	outDir := flag.String("out", "", "output directory (defaults to output/event_study_outputs relative to executable)")
	flag.Parse()

	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if *outDir != "" {
		paths = config.NewPaths(paths.ExecutableDir, paths.DataDir, *outDir, paths.LogsDir)
	}

	// The robustness table reuses the shock months the main run already
	// committed to disk, so estimates stay comparable across estimators.
	if _, err := os.Stat(paths.ShockDatesCSV); os.IsNotExist(err) {
		slog.Error("Shock dates not found",
			"path", paths.ShockDatesCSV,
			"hint", "run eventstudy first to detect shocks")
		os.Exit(1)
	}
	set, err := exporter.ReadShockDates(paths.ShockDatesCSV)
	if err != nil {
		slog.Error("Failed to read shock dates", "error", err)
		os.Exit(1)
	}
	months := set.Months()
	if len(months) == 0 {
		slog.Error("Shock dates file holds no shocks", "path", paths.ShockDatesCSV)
		os.Exit(1)
	}
	slog.Info("Loaded shock dates", "shocks", len(months), "source", set.Source)

	validator := validation.NewFileValidator(slog.Default())
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

	params := eventstudy.DefaultParams()
	params.Window = *window
	params.MinObs = *minObs
	params.HACLags = *hacLags
	if err := params.Validate(); err != nil {
		slog.Error("Invalid parameters", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	loader := panel.NewLoader(slog.Default())
	p, err := loader.Load(ctx, input.Path, *sheet)
	if err != nil {
		slog.Error("Failed to load panel", "error", err)
		os.Exit(1)
	}

	calc := eventstudy.NewCalculator(params, slog.Default())
	points, err := calc.Robustness(ctx, p, months)
	if err != nil {
		slog.Error("Robustness computation failed", "error", err)
		os.Exit(1)
	}

	exp := exporter.NewStudyExporter(paths, slog.Default())
	if err := exp.WriteRobustPath(points); err != nil {
		slog.Error("Failed to write robustness table", "error", err)
		os.Exit(1)
	}

	slog.Info("Robustness table written",
		"path", paths.RobustSECSV,
		"event_times", len(points),
		"hac_lags", *hacLags)
}
