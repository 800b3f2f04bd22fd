package charts

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"vegcli/internal/config"
	"vegcli/pkg/contracts/domain"
)

const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 6 * vg.Inch
)

var (
	seriesColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	ruleColor   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// Renderer draws the study charts into the configured output directory.
type Renderer struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewRenderer creates a chart renderer rooted at the given paths.
func NewRenderer(paths *config.Paths, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{paths: paths, logger: logger}
}

// RenderAll draws every chart the paths know about and returns the files
// actually written. A chart without plottable data is skipped.
func (r *Renderer) RenderAll(sigma []domain.SigmaPoint, beta []domain.BetaPoint) ([]string, error) {
	var written []string

	ok, err := r.RenderSigmaPath(sigma)
	if err != nil {
		return written, fmt.Errorf("render sigma chart: %w", err)
	}
	if ok {
		written = append(written, r.paths.SigmaPathPNG)
	}

	ok, err = r.RenderBetaPath(beta)
	if err != nil {
		return written, fmt.Errorf("render beta chart: %w", err)
	}
	if ok {
		written = append(written, r.paths.BetaPathPNG)
	}

	ok, err = r.RenderHalfLife(beta)
	if err != nil {
		return written, fmt.Errorf("render half-life chart: %w", err)
	}
	if ok {
		written = append(written, r.paths.HalfLifePNG)
	}

	r.logger.Info("charts rendered", slog.Int("files", len(written)))
	return written, nil
}

// RenderSigmaPath draws the σ path with a vertical rule at the shock month.
// Returns false when no event time has a defined dispersion.
func (r *Renderer) RenderSigmaPath(path []domain.SigmaPoint) (bool, error) {
	pts := make(plotter.XYs, 0, len(path))
	for _, s := range path {
		if math.IsNaN(s.AvgSigma) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(s.EventTime), Y: s.AvgSigma})
	}
	if len(pts) == 0 {
		return false, nil
	}

	p := plot.New()
	p.Title.Text = "σ-convergence around shocks"
	p.X.Label.Text = "Event time (months)"
	p.Y.Label.Text = "Avg cross-sectional std (σ)"

	if err := addSeries(p, pts); err != nil {
		return false, err
	}
	addVerticalRule(p, 0, pts)

	return true, r.save(p, r.paths.SigmaPathPNG)
}

// RenderBetaPath draws the β path with rules at the shock month and at
// β = 0. Returns false when the path is empty.
func (r *Renderer) RenderBetaPath(path []domain.BetaPoint) (bool, error) {
	pts := make(plotter.XYs, 0, len(path))
	for _, b := range path {
		if math.IsNaN(b.Beta) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(b.EventTime), Y: b.Beta})
	}
	if len(pts) == 0 {
		return false, nil
	}

	p := plot.New()
	p.Title.Text = "β-convergence around shocks"
	p.X.Label.Text = "Event time (months)"
	p.Y.Label.Text = "Beta estimate"

	if err := addSeries(p, pts); err != nil {
		return false, err
	}
	addVerticalRule(p, 0, pts)
	addHorizontalRule(p, 0, pts)

	return true, r.save(p, r.paths.BetaPathPNG)
}

// RenderHalfLife draws the implied half-life by event time. Event times
// where β sits outside (-1, 0) have no half-life; when none remains the
// chart is skipped entirely.
func (r *Renderer) RenderHalfLife(path []domain.BetaPoint) (bool, error) {
	pts := make(plotter.XYs, 0, len(path))
	for _, b := range path {
		if math.IsNaN(b.HalfLifeMonths) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(b.EventTime), Y: b.HalfLifeMonths})
	}
	if len(pts) == 0 {
		return false, nil
	}

	p := plot.New()
	p.Title.Text = "Implied half-life by event time"
	p.X.Label.Text = "Event time (months)"
	p.Y.Label.Text = "Half-life (months)"

	if err := addSeries(p, pts); err != nil {
		return false, err
	}
	addVerticalRule(p, 0, pts)

	return true, r.save(p, r.paths.HalfLifePNG)
}

// addSeries draws the line with circle markers at each event time.
func addSeries(p *plot.Plot, pts plotter.XYs) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = seriesColor
	line.Width = vg.Points(2)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = seriesColor
	scatter.GlyphStyle.Radius = vg.Points(3)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}

	p.Add(plotter.NewGrid(), line, scatter)
	return nil
}

// addVerticalRule draws a dashed rule at x spanning the data's y-range.
func addVerticalRule(p *plot.Plot, x float64, pts plotter.XYs) {
	lo, hi := pts[0].Y, pts[0].Y
	for _, pt := range pts {
		lo = math.Min(lo, pt.Y)
		hi = math.Max(hi, pt.Y)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	rule, err := plotter.NewLine(plotter.XYs{{X: x, Y: lo}, {X: x, Y: hi}})
	if err != nil {
		return
	}
	rule.Color = ruleColor
	rule.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(rule)
}

// addHorizontalRule draws a dashed rule at y spanning the data's x-range.
func addHorizontalRule(p *plot.Plot, y float64, pts plotter.XYs) {
	lo, hi := pts[0].X, pts[0].X
	for _, pt := range pts {
		lo = math.Min(lo, pt.X)
		hi = math.Max(hi, pt.X)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	rule, err := plotter.NewLine(plotter.XYs{{X: lo, Y: y}, {X: hi, Y: y}})
	if err != nil {
		return
	}
	rule.Color = ruleColor
	rule.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(rule)
}

func (r *Renderer) save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}
