package eventstudy

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// dropNaN returns the values that are neither NaN nor missing.
func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// nanMean averages the non-NaN values; NaN when none remain.
func nanMean(values []float64) float64 {
	vs := dropNaN(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	return stat.Mean(vs, nil)
}

// nanStd is the sample standard deviation (ddof=1) of the non-NaN values.
// NaN when fewer than two remain, matching the degrees-of-freedom blowup.
func nanStd(values []float64) float64 {
	vs := dropNaN(values)
	if len(vs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(vs, nil)
}

// pctChange returns month-over-month relative changes of a series that has
// been forward-filled over NaN gaps. The first element is always NaN.
func pctChange(values []float64) []float64 {
	filled := make([]float64, len(values))
	last := math.NaN()
	for i, v := range values {
		if !math.IsNaN(v) {
			last = v
		}
		filled[i] = last
	}

	out := make([]float64, len(values))
	out[0] = math.NaN()
	for i := 1; i < len(filled); i++ {
		prev := filled[i-1]
		if math.IsNaN(prev) || math.IsNaN(filled[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (filled[i] - prev) / prev
	}
	return out
}
