package eventstudy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNanMean(t *testing.T) {
	nan := math.NaN()

	assert.InDelta(t, 2.0, nanMean([]float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 2.0, nanMean([]float64{1, nan, 3}), 1e-12, "NaN values are skipped")
	assert.True(t, math.IsNaN(nanMean(nil)))
	assert.True(t, math.IsNaN(nanMean([]float64{nan, nan})))
}

func TestNanStd(t *testing.T) {
	nan := math.NaN()

	// Sample std dev of {1,2,3} is 1 exactly.
	assert.InDelta(t, 1.0, nanStd([]float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 1.0, nanStd([]float64{1, nan, 2, 3}), 1e-12)
	assert.True(t, math.IsNaN(nanStd([]float64{5})), "one value has no sample std dev")
	assert.True(t, math.IsNaN(nanStd(nil)))
}

// TestPctChange verifies the month-over-month changes including the
// forward-fill over gaps: a month restored from the previous value produces
// a zero change, not NaN.
func TestPctChange(t *testing.T) {
	nan := math.NaN()

	t.Run("plain series", func(t *testing.T) {
		got := pctChange([]float64{100, 110, 99})
		assert.True(t, math.IsNaN(got[0]), "first change is undefined")
		assert.InDelta(t, 0.10, got[1], 1e-12)
		assert.InDelta(t, -0.10, got[2], 1e-12)
	})

	t.Run("gap is forward-filled", func(t *testing.T) {
		got := pctChange([]float64{100, nan, 120})
		assert.True(t, math.IsNaN(got[0]))
		assert.InDelta(t, 0.0, got[1], 1e-12, "filled month keeps the previous level")
		assert.InDelta(t, 0.20, got[2], 1e-12, "change is taken against the filled level")
	})

	t.Run("leading gap stays undefined", func(t *testing.T) {
		got := pctChange([]float64{nan, nan, 100, 150})
		assert.True(t, math.IsNaN(got[0]))
		assert.True(t, math.IsNaN(got[1]))
		assert.True(t, math.IsNaN(got[2]), "no previous level to compare against")
		assert.InDelta(t, 0.50, got[3], 1e-12)
	})
}

func TestDropNaN(t *testing.T) {
	got := dropNaN([]float64{1, math.NaN(), 2, math.NaN()})
	assert.Equal(t, []float64{1, 2}, got)
	assert.Empty(t, dropNaN([]float64{math.NaN()}))
}
