package eventstudy

import (
	"vegcli/pkg/contracts/domain"
)

// BetaPath estimates the β-convergence path: for every event time with at
// least minObs usable observations, the regression Δrel = α + β·rel_lag
// with HC1 standard errors. Event times with too few observations are
// skipped entirely.
func BetaPath(obs []EventObs, minObs int) []domain.BetaPoint {
	taus, groups := groupByEventTime(obs)

	path := make([]domain.BetaPoint, 0, len(taus))
	for _, tau := range taus {
		g := usable(groups[tau])
		if len(g) < minObs {
			continue
		}

		x := make([]float64, len(g))
		y := make([]float64, len(g))
		for i, o := range g {
			x[i] = o.LagRel
			y[i] = o.DRel
		}

		fit, err := fitOLS(x, y)
		if err != nil {
			continue
		}

		path = append(path, domain.BetaPoint{
			EventTime:      tau,
			Beta:           fit.Beta,
			SE:             fit.SEHC1(),
			HalfLifeMonths: halfLife(fit.Beta),
			N:              len(g),
		})
	}
	return path
}
