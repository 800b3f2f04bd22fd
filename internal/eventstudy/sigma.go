package eventstudy

import (
	"sort"
	"time"

	"vegcli/pkg/contracts/domain"
)

// SigmaPath computes the σ-convergence path: for every (shock, event time)
// cell the cross-state sample standard deviation of the convergence
// variable, then the average of those cells per event time. Cells with a
// single observation contribute NaN and are skipped by the average.
func SigmaPath(obs []EventObs) []domain.SigmaPoint {
	type cellKey struct {
		shock time.Time
		tau   int
	}
	cells := make(map[cellKey][]float64)
	for _, o := range obs {
		k := cellKey{shock: o.ShockDate, tau: o.EventTime}
		cells[k] = append(cells[k], o.Rel)
	}

	byTau := make(map[int][]float64)
	for k, rels := range cells {
		byTau[k.tau] = append(byTau[k.tau], nanStd(rels))
	}

	taus := make([]int, 0, len(byTau))
	for tau := range byTau {
		taus = append(taus, tau)
	}
	sort.Ints(taus)

	path := make([]domain.SigmaPoint, 0, len(taus))
	for _, tau := range taus {
		path = append(path, domain.SigmaPoint{
			EventTime: tau,
			AvgSigma:  nanMean(byTau[tau]),
		})
	}
	return path
}
