package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

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
	windows := flag.String("windows", "3,6,12", "comma-separated event-window half-widths to sweep")
	thresholds := flag.String("thresholds", "1.0,1.5,2.0", "comma-separated shock thresholds to sweep")
	maxShocks := flag.Int("max-shocks", eventstudy.DefaultMaxShocks, "cap on auto-detected shocks")
	minObs := flag.Int("min-obs", eventstudy.DefaultMinObs, "minimum observations per event time")
	outDir := flag.String("out", "", "output directory (defaults to output/event_study_outputs relative to executable)")
	flag.Parse()

	windowList, err := parseInts(*windows)
	if err != nil {
		slog.Error("Invalid --windows", "error", err)
		os.Exit(1)
	}
	thresholdList, err := parseFloats(*thresholds)
	if err != nil {
		slog.Error("Invalid --thresholds", "error", err)
		os.Exit(1)
	}

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
	params.MaxShocks = *maxShocks
	params.MinObs = *minObs
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

	slog.Info("Sweeping parameter grid",
		"windows", windowList,
		"thresholds", thresholdList,
		"cells", len(windowList)*len(thresholdList))

	calc := eventstudy.NewCalculator(params, slog.Default())
	points, err := calc.Sensitivity(ctx, p, windowList, thresholdList)
	if err != nil {
		slog.Error("Sensitivity sweep failed", "error", err)
		os.Exit(1)
	}

	exp := exporter.NewStudyExporter(paths, slog.Default())
	if err := exp.WriteSensitivityGrid(points); err != nil {
		slog.Error("Failed to write sensitivity grid", "error", err)
		os.Exit(1)
	}

	slog.Info("Sensitivity grid written",
		"path", paths.SensitivityCSV,
		"rows", len(points))
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}
