package eventstudy

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	apperrors "vegcli/internal/errors"
	"vegcli/internal/panel"
	"vegcli/pkg/contracts/domain"
)

// monthSeries is a date-indexed series with ascending dates.
type monthSeries struct {
	dates  []time.Time
	values []float64
}

// monthlyAggregate groups rows by exact date and averages the values the
// extractor yields. Dates with no usable values get NaN so gaps survive into
// the series.
func monthlyAggregate(rows []domain.PanelRow, value func(i int) (float64, bool)) monthSeries {
	type accum struct {
		date  time.Time
		sum   float64
		count int
	}
	groups := make(map[int64]*accum)
	for i, r := range rows {
		key := r.Date.Unix()
		g, ok := groups[key]
		if !ok {
			g = &accum{date: r.Date}
			groups[key] = g
		}
		if v, ok := value(i); ok {
			g.sum += v
			g.count++
		}
	}

	series := monthSeries{
		dates:  make([]time.Time, 0, len(groups)),
		values: make([]float64, 0, len(groups)),
	}
	keys := make([]int64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
	for _, k := range keys {
		g := groups[k]
		series.dates = append(series.dates, g.date)
		if g.count == 0 {
			series.values = append(series.values, math.NaN())
		} else {
			series.values = append(series.values, g.sum/float64(g.count))
		}
	}
	return series
}

// stateDiffs returns the positional first difference of Rel within each
// state, NaN for the first observation of a state. Rows must be sorted by
// state then date, which the loader guarantees.
func stateDiffs(rows []domain.PanelRow) []float64 {
	d := make([]float64, len(rows))
	for i := range rows {
		if i == 0 || rows[i].State != rows[i-1].State {
			d[i] = math.NaN()
			continue
		}
		d[i] = rows[i].Rel - rows[i-1].Rel
	}
	return d
}

// thresholdPick selects the dates whose series value exceeds
// mean + k*std of the non-NaN values.
func thresholdPick(series monthSeries, k float64) []domain.Shock {
	thr := nanMean(series.values) + k*nanStd(series.values)
	var shocks []domain.Shock
	for i, v := range series.values {
		if v > thr { // NaN never passes
			shocks = append(shocks, domain.Shock{Date: series.dates[i], Value: v})
		}
	}
	return shocks
}

// formatK renders the threshold multiplier the way it appears in the
// detection descriptions (1.5 not 1.500000).
func formatK(k float64) string {
	return strconv.FormatFloat(k, 'g', -1, 64)
}

// DetectShocks finds the shock months for the panel. Explicit months win
// over detection; otherwise the vegetable series is preferred and the
// cross-state |Δrel| proxy is the fallback. Auto-detected shocks beyond
// MaxShocks are dropped, keeping the largest detection values.
func DetectShocks(p *panel.Panel, params Params, logger *slog.Logger) (domain.ShockSet, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if len(params.ExplicitShocks) > 0 {
		shocks := make([]domain.Shock, 0, len(params.ExplicitShocks))
		for _, s := range params.ExplicitShocks {
			date, err := time.Parse("2006-01", s)
			if err != nil {
				return domain.ShockSet{}, fmt.Errorf("explicit shock %q is not a YYYY-MM month", s)
			}
			shocks = append(shocks, domain.Shock{Date: date, Value: math.NaN()})
		}
		return domain.ShockSet{Shocks: shocks, Source: "User-specified shock months"}, nil
	}

	var set domain.ShockSet
	if params.PerState {
		set = detectPerState(p, params)
	} else {
		set = detectNational(p, params)
	}

	if len(set.Shocks) > params.MaxShocks {
		sort.SliceStable(set.Shocks, func(a, b int) bool {
			return set.Shocks[a].Value > set.Shocks[b].Value
		})
		set.Shocks = set.Shocks[:params.MaxShocks]
	}

	if len(set.Shocks) == 0 {
		return set, fmt.Errorf("%w: consider explicit shock months or a lower threshold", apperrors.ErrNoShocksDetected)
	}

	logger.Info("shocks detected",
		slog.Int("count", len(set.Shocks)),
		slog.String("source", set.Source),
		slog.Bool("per_state", set.PerState))

	return set, nil
}

// detectNational thresholds a single country-wide detection series.
func detectNational(p *panel.Panel, params Params) domain.ShockSet {
	if len(p.Meta.Columns.Veg) > 0 {
		chosen := p.Meta.Columns.Veg[0]
		series := monthlyAggregate(p.Rows, func(i int) (float64, bool) {
			return p.Rows[i].Veg, p.Rows[i].HasVeg
		})
		mom := monthSeries{dates: series.dates, values: pctChange(series.values)}
		return domain.ShockSet{
			Shocks: thresholdPick(mom, params.ThresholdK),
			Source: fmt.Sprintf("Vegetables series '%s' (mean + %s*std MoM)", chosen, formatK(params.ThresholdK)),
		}
	}

	diffs := stateDiffs(p.Rows)
	series := monthlyAggregate(p.Rows, func(i int) (float64, bool) {
		if math.IsNaN(diffs[i]) {
			return 0, false
		}
		return math.Abs(diffs[i]), true
	})
	return domain.ShockSet{
		Shocks: thresholdPick(series, params.ThresholdK),
		Source: fmt.Sprintf("Proxy on cross-state Δ%s (mean + %s*std)", p.Meta.Columns.Rel, formatK(params.ThresholdK)),
	}
}

// detectPerState thresholds each state's own series, attributing shocks to
// the state that produced them.
func detectPerState(p *panel.Panel, params Params) domain.ShockSet {
	byState := make(map[string][]domain.PanelRow)
	for _, r := range p.Rows {
		byState[r.State] = append(byState[r.State], r)
	}
	states := make([]string, 0, len(byState))
	for s := range byState {
		states = append(states, s)
	}
	sort.Strings(states)

	useVeg := len(p.Meta.Columns.Veg) > 0
	var shocks []domain.Shock
	for _, state := range states {
		rows := byState[state]

		var series monthSeries
		if useVeg {
			base := monthlyAggregate(rows, func(i int) (float64, bool) {
				return rows[i].Veg, rows[i].HasVeg
			})
			series = monthSeries{dates: base.dates, values: pctChange(base.values)}
		} else {
			diffs := stateDiffs(rows)
			series = monthlyAggregate(rows, func(i int) (float64, bool) {
				if math.IsNaN(diffs[i]) {
					return 0, false
				}
				return math.Abs(diffs[i]), true
			})
		}

		for _, s := range thresholdPick(series, params.ThresholdK) {
			s.State = state
			shocks = append(shocks, s)
		}
	}

	source := fmt.Sprintf("Per-state proxy on Δ%s (mean + %s*std)", p.Meta.Columns.Rel, formatK(params.ThresholdK))
	if useVeg {
		source = fmt.Sprintf("Per-state vegetables series '%s' (mean + %s*std MoM)", p.Meta.Columns.Veg[0], formatK(params.ThresholdK))
	}
	return domain.ShockSet{Shocks: shocks, Source: source, PerState: true}
}
