package eventstudy

import (
	"math"

	"vegcli/pkg/contracts/domain"
)

// RobustPath re-estimates the β path under three standard-error estimators:
// HC1, cluster-robust by state (CR1), and Newey-West HAC with a Bartlett
// kernel. Unlike BetaPath, event times with too few observations are kept
// as NaN rows so the table covers the whole window, and an estimator that
// fails degrades to NaN without dropping the row.
func RobustPath(obs []EventObs, minObs, hacLags int) []domain.RobustPoint {
	taus, groups := groupByEventTime(obs)

	nan := math.NaN()
	path := make([]domain.RobustPoint, 0, len(taus))
	for _, tau := range taus {
		g := usable(groups[tau])
		point := domain.RobustPoint{
			EventTime:   tau,
			NObs:        len(g),
			BetaHC1:     nan,
			SEHC1:       nan,
			BetaCluster: nan,
			SECluster:   nan,
			BetaHAC:     nan,
			SEHAC:       nan,
		}

		if len(g) < minObs {
			path = append(path, point)
			continue
		}

		x := make([]float64, len(g))
		y := make([]float64, len(g))
		states := make([]string, len(g))
		for i, o := range g {
			x[i] = o.LagRel
			y[i] = o.DRel
			states[i] = o.State
		}

		fit, err := fitOLS(x, y)
		if err != nil {
			path = append(path, point)
			continue
		}

		point.BetaHC1 = fit.Beta
		point.SEHC1 = fit.SEHC1()

		if se, err := fit.SECluster(states); err == nil {
			point.BetaCluster = fit.Beta
			point.SECluster = se
		}

		if se, err := fit.SEHAC(hacLags); err == nil {
			point.BetaHAC = fit.Beta
			point.SEHAC = se
		}

		path = append(path, point)
	}
	return path
}
