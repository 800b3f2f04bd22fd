package eventstudy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "vegcli/internal/errors"
	"vegcli/internal/panel"
	"vegcli/pkg/contracts/domain"
)

// Calculator orchestrates shock detection, event-window construction and the
// convergence estimators for one loaded panel.
type Calculator struct {
	params Params
	logger *slog.Logger
}

// NewCalculator creates a calculator with the given study parameters.
func NewCalculator(params Params, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{params: params, logger: logger}
}

// Params returns the parameters the calculator runs with.
func (c *Calculator) Params() Params {
	return c.params
}

// Run executes the full event study: detect shocks, stack event windows,
// trace the σ and β convergence paths and distill the headline insights.
func (c *Calculator) Run(ctx context.Context, p *panel.Panel) (*StudyResult, error) {
	start := time.Now()

	if err := c.params.Validate(); err != nil {
		return nil, fmt.Errorf("validate parameters: %w", err)
	}

	c.logger.InfoContext(ctx, "starting event study",
		slog.Int("rows", p.Meta.Rows),
		slog.Int("states", p.Meta.States),
		slog.Int("window", c.params.Window),
		slog.Bool("per_state", c.params.PerState),
	)

	set, err := DetectShocks(p, c.params, c.logger)
	if err != nil {
		return nil, fmt.Errorf("detect shocks: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	obs, err := BuildEventWindows(p.Rows, set.Months(), c.params.Window)
	if err != nil {
		return nil, fmt.Errorf("build event windows: %w", err)
	}

	sigma := SigmaPath(obs)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	beta := BetaPath(obs, c.params.MinObs)

	result := &StudyResult{
		Meta:   p.Meta,
		Shocks: set,
		Sigma:  sigma,
		Beta:   beta,
		Summary: domain.StudySummary{
			States:      p.Meta.States,
			RelColumn:   p.Meta.Columns.Rel,
			ShockSource: set.Source,
			NumShocks:   len(set.Shocks),
			Window:      c.params.Window,
		},
		Insights: BuildInsights(sigma, beta),
	}

	c.logger.InfoContext(ctx, "event study complete",
		slog.Int("shocks", len(set.Shocks)),
		slog.Int("event_observations", len(obs)),
		slog.Int("sigma_points", len(sigma)),
		slog.Int("beta_points", len(beta)),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// Robustness re-estimates the β path under the alternative standard error
// estimators, reusing shock months from an earlier run.
func (c *Calculator) Robustness(ctx context.Context, p *panel.Panel, months []time.Time) ([]domain.RobustPoint, error) {
	if err := c.params.Validate(); err != nil {
		return nil, fmt.Errorf("validate parameters: %w", err)
	}
	if len(months) == 0 {
		return nil, fmt.Errorf("%w: no shock months supplied", apperrors.ErrNoShocksDetected)
	}

	obs, err := BuildEventWindows(p.Rows, months, c.params.Window)
	if err != nil {
		return nil, fmt.Errorf("build event windows: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := RobustPath(obs, c.params.MinObs, c.params.HACLags)

	c.logger.InfoContext(ctx, "robustness path complete",
		slog.Int("shock_months", len(months)),
		slog.Int("event_times", len(points)),
	)
	return points, nil
}

// Sensitivity sweeps the detection window and threshold grid around the
// configured parameters and reports the β path for each combination.
func (c *Calculator) Sensitivity(ctx context.Context, p *panel.Panel, windows []int, thresholds []float64) ([]domain.SensitivityPoint, error) {
	if err := c.params.Validate(); err != nil {
		return nil, fmt.Errorf("validate parameters: %w", err)
	}
	return SensitivityGrid(ctx, p, c.params, windows, thresholds, c.logger)
}
