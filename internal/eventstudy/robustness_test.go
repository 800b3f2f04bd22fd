package eventstudy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRobustPath checks that all three estimators agree on the point
// estimate and that an exact fit drives every standard error to zero.
func TestRobustPath(t *testing.T) {
	obs := fitGroup(0, 30, func(i int) (float64, float64) {
		lag := float64(i)
		return lag, 0.2 - 0.5*lag
	})

	path := RobustPath(obs, 30, 1)
	require.Len(t, path, 1)

	point := path[0]
	assert.Equal(t, 0, point.EventTime)
	assert.Equal(t, 30, point.NObs)
	assert.InDelta(t, -0.5, point.BetaHC1, 1e-9)
	assert.InDelta(t, -0.5, point.BetaCluster, 1e-9)
	assert.InDelta(t, -0.5, point.BetaHAC, 1e-9)
	assert.InDelta(t, 0.0, point.SEHC1, 1e-9)
	assert.InDelta(t, 0.0, point.SECluster, 1e-9)
	assert.InDelta(t, 0.0, point.SEHAC, 1e-9)
}

// TestRobustPathKeepsThinRows: unlike the β path, event times below the
// observation floor stay in the table as NaN rows so the window is covered
// end to end.
func TestRobustPathKeepsThinRows(t *testing.T) {
	obs := fitGroup(0, 30, func(i int) (float64, float64) {
		lag := float64(i)
		return lag, 0.2 - 0.5*lag
	})
	obs = append(obs, fitGroup(1, 4, func(i int) (float64, float64) {
		lag := float64(i)
		return lag, -0.3 * lag
	})...)

	path := RobustPath(obs, 30, 1)
	require.Len(t, path, 2)

	thin := path[1]
	assert.Equal(t, 1, thin.EventTime)
	assert.Equal(t, 4, thin.NObs)
	assert.True(t, math.IsNaN(thin.BetaHC1))
	assert.True(t, math.IsNaN(thin.SECluster))
	assert.True(t, math.IsNaN(thin.SEHAC))
}

// TestRobustPathSingleClusterDegrades: with every observation in one state
// the cluster estimator cannot run, but HC1 and HAC still report.
func TestRobustPathSingleClusterDegrades(t *testing.T) {
	shock := month(2015, time.June)
	var obs []EventObs
	for i := 1; i <= 30; i++ {
		lag := float64(i)
		obs = append(obs, EventObs{
			State:     "A",
			ShockDate: shock,
			EventTime: 0,
			LagRel:    lag,
			DRel:      0.2 - 0.5*lag,
			HasLag:    true,
		})
	}

	path := RobustPath(obs, 30, 1)
	require.Len(t, path, 1)

	point := path[0]
	assert.InDelta(t, -0.5, point.BetaHC1, 1e-9)
	assert.False(t, math.IsNaN(point.SEHC1))
	assert.True(t, math.IsNaN(point.BetaCluster), "one cluster is not enough")
	assert.True(t, math.IsNaN(point.SECluster))
	assert.False(t, math.IsNaN(point.SEHAC))
}

func TestRobustPathOrdering(t *testing.T) {
	fit := func(i int) (float64, float64) {
		lag := float64(i)
		return lag, 0.2 - 0.5*lag
	}
	obs := fitGroup(2, 5, fit)
	obs = append(obs, fitGroup(-3, 5, fit)...)
	obs = append(obs, fitGroup(0, 5, fit)...)

	path := RobustPath(obs, 3, 1)
	require.Len(t, path, 3)
	assert.Equal(t, -3, path[0].EventTime)
	assert.Equal(t, 0, path[1].EventTime)
	assert.Equal(t, 2, path[2].EventTime)
}
