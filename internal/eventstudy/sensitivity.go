package eventstudy

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"vegcli/internal/panel"
	"vegcli/pkg/contracts/domain"
)

// sensitivityConcurrency bounds the grid workers; the combos are small and
// CPU bound.
const sensitivityConcurrency = 4

// SensitivityGrid re-runs detection and the β path for every window and
// threshold combination and returns the stacked long-format results. A
// combination that detects no shocks contributes no rows rather than
// failing the grid.
func SensitivityGrid(ctx context.Context, p *panel.Panel, base Params, windows []int, thresholds []float64, logger *slog.Logger) ([]domain.SensitivityPoint, error) {
	if logger == nil {
		logger = slog.Default()
	}

	type combo struct {
		window    int
		threshold float64
	}
	combos := make([]combo, 0, len(windows)*len(thresholds))
	for _, w := range windows {
		for _, k := range thresholds {
			combos = append(combos, combo{window: w, threshold: k})
		}
	}

	results := make([][]domain.SensitivityPoint, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sensitivityConcurrency)

	for i, c := range combos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			params := base
			params.Window = c.window
			params.ThresholdK = c.threshold

			set, err := DetectShocks(p, params, logger)
			if err != nil {
				logger.Warn("sensitivity combo detected no shocks",
					slog.Int("window", c.window),
					slog.Float64("threshold", c.threshold))
				return nil
			}

			months := set.Months()
			obs, err := BuildEventWindows(p.Rows, months, c.window)
			if err != nil {
				logger.Warn("sensitivity combo built no windows",
					slog.Int("window", c.window),
					slog.Float64("threshold", c.threshold))
				return nil
			}

			beta := BetaPath(obs, params.MinObs)
			points := make([]domain.SensitivityPoint, 0, len(beta))
			for _, b := range beta {
				points = append(points, domain.SensitivityPoint{
					Window:         c.window,
					Threshold:      c.threshold,
					EventTime:      b.EventTime,
					Beta:           b.Beta,
					SE:             b.SE,
					HalfLifeMonths: b.HalfLifeMonths,
					N:              b.N,
					NumShocks:      len(months),
				})
			}
			results[i] = points
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.SensitivityPoint
	for _, points := range results {
		out = append(out, points...)
	}
	return out, nil
}
