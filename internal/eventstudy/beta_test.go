package eventstudy

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fitGroup builds n usable observations at one event time, one state each,
// with lag and diff produced by f(i) for i = 1..n.
func fitGroup(tau, n int, f func(i int) (lag, diff float64)) []EventObs {
	shock := month(2015, time.June)
	obs := make([]EventObs, 0, n)
	for i := 1; i <= n; i++ {
		lag, diff := f(i)
		obs = append(obs, EventObs{
			State:     fmt.Sprintf("S%02d", i),
			ShockDate: shock,
			EventTime: tau,
			Rel:       lag + diff,
			LagRel:    lag,
			DRel:      diff,
			HasLag:    true,
		})
	}
	return obs
}

// TestBetaPath recovers a known convergence coefficient: with
// Δrel = 0.2 - 0.5*lag exactly, β = -0.5 and the implied half-life is one
// month.
func TestBetaPath(t *testing.T) {
	obs := fitGroup(0, 30, func(i int) (float64, float64) {
		lag := float64(i)
		return lag, 0.2 - 0.5*lag
	})

	path := BetaPath(obs, 30)
	require.Len(t, path, 1)

	point := path[0]
	assert.Equal(t, 0, point.EventTime)
	assert.Equal(t, 30, point.N)
	assert.InDelta(t, -0.5, point.Beta, 1e-9)
	assert.InDelta(t, 0.0, point.SE, 1e-9)
	assert.InDelta(t, 1.0, point.HalfLifeMonths, 1e-9)
}

// TestBetaPathMinObs drops event times that cannot support a regression.
func TestBetaPathMinObs(t *testing.T) {
	obs := fitGroup(0, 30, func(i int) (float64, float64) {
		lag := float64(i)
		return lag, 0.2 - 0.5*lag
	})
	obs = append(obs, fitGroup(1, 5, func(i int) (float64, float64) {
		lag := float64(i)
		return lag, 0.1 - 0.4*lag
	})...)

	path := BetaPath(obs, 30)
	require.Len(t, path, 1, "the 5-observation event time is skipped")
	assert.Equal(t, 0, path[0].EventTime)

	path = BetaPath(obs, 5)
	require.Len(t, path, 2, "lowering the floor admits the small group")
	assert.Equal(t, 1, path[1].EventTime)
	assert.InDelta(t, -0.4, path[1].Beta, 1e-9)
}

// TestBetaPathDivergentSlope: a positive β has no half-life.
func TestBetaPathDivergentSlope(t *testing.T) {
	obs := fitGroup(-1, 30, func(i int) (float64, float64) {
		lag := float64(i)
		return lag, 0.1 * lag
	})

	path := BetaPath(obs, 30)
	require.Len(t, path, 1)
	assert.InDelta(t, 0.1, path[0].Beta, 1e-9)
	assert.True(t, math.IsNaN(path[0].HalfLifeMonths))
}

// TestBetaPathIgnoresLaglessRows: rows without a defined lag never reach the
// regression, so a group of window-start rows contributes nothing.
func TestBetaPathIgnoresLaglessRows(t *testing.T) {
	shock := month(2015, time.June)
	var obs []EventObs
	for i := 0; i < 40; i++ {
		obs = append(obs, EventObs{
			State:     fmt.Sprintf("S%02d", i),
			ShockDate: shock,
			EventTime: -6,
			Rel:       float64(i),
		})
	}

	assert.Empty(t, BetaPath(obs, 30))
}

// TestBetaPathSingularGroup: a constant lag cannot identify a slope, so the
// event time is skipped rather than reported with garbage.
func TestBetaPathSingularGroup(t *testing.T) {
	obs := fitGroup(0, 30, func(i int) (float64, float64) {
		return 7.0, float64(i)
	})

	assert.Empty(t, BetaPath(obs, 30))
}
