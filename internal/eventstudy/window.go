package eventstudy

import (
	"fmt"
	"sort"
	"time"

	apperrors "vegcli/internal/errors"
	"vegcli/internal/panel"
	"vegcli/pkg/contracts/domain"
)

// BuildEventWindows stacks a ±window month slice of the panel around every
// shock month and computes the positional lag and first difference of the
// convergence variable within each (state, shock) group. The result is
// sorted by state, shock date, then date, which is the observation order
// the HAC standard errors depend on.
func BuildEventWindows(rows []domain.PanelRow, months []time.Time, window int) ([]EventObs, error) {
	var obs []EventObs
	for _, shock := range months {
		lo := shock.AddDate(0, -window, 0)
		hi := shock.AddDate(0, window, 0)
		for _, r := range rows {
			if r.Date.Before(lo) || r.Date.After(hi) {
				continue
			}
			obs = append(obs, EventObs{
				State:     r.State,
				ShockDate: shock,
				Date:      r.Date,
				EventTime: panel.MonthDiff(r.Date, shock),
				Rel:       r.Rel,
			})
		}
	}

	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: no event windows constructed, check the date range and shocks", apperrors.ErrInsufficientObs)
	}

	sort.SliceStable(obs, func(a, b int) bool {
		if obs[a].State != obs[b].State {
			return obs[a].State < obs[b].State
		}
		if !obs[a].ShockDate.Equal(obs[b].ShockDate) {
			return obs[a].ShockDate.Before(obs[b].ShockDate)
		}
		return obs[a].Date.Before(obs[b].Date)
	})

	for i := range obs {
		if i == 0 || obs[i].State != obs[i-1].State || !obs[i].ShockDate.Equal(obs[i-1].ShockDate) {
			continue
		}
		obs[i].LagRel = obs[i-1].Rel
		obs[i].DRel = obs[i].Rel - obs[i-1].Rel
		obs[i].HasLag = true
	}

	return obs, nil
}

// groupByEventTime splits observations by event time, preserving the input
// order within each group. Event times come back sorted ascending.
func groupByEventTime(obs []EventObs) (taus []int, groups map[int][]EventObs) {
	groups = make(map[int][]EventObs)
	for _, o := range obs {
		groups[o.EventTime] = append(groups[o.EventTime], o)
	}
	taus = make([]int, 0, len(groups))
	for tau := range groups {
		taus = append(taus, tau)
	}
	sort.Ints(taus)
	return taus, groups
}

// usable filters a group to the observations with a defined lag and diff.
func usable(group []EventObs) []EventObs {
	out := make([]EventObs, 0, len(group))
	for _, o := range group {
		if o.HasLag {
			out = append(out, o)
		}
	}
	return out
}
