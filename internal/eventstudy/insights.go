package eventstudy

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"vegcli/pkg/contracts/domain"
)

// BuildInsights condenses the σ and β paths into the headline findings the
// dashboard surfaces: whether convergence speeds up after shocks, whether
// short-run dispersion rises, and whether the τ=+1 slope is statistically
// distinguishable from zero. Pre covers event times before the shock month,
// post covers event times after it; the shock month itself belongs to
// neither side.
func BuildInsights(sigma []domain.SigmaPoint, beta []domain.BetaPoint) domain.Insights {
	var sigmaPre, sigmaPost []float64
	for _, s := range sigma {
		switch {
		case s.EventTime < 0:
			sigmaPre = append(sigmaPre, s.AvgSigma)
		case s.EventTime > 0:
			sigmaPost = append(sigmaPost, s.AvgSigma)
		}
	}

	var betaPre, betaPost []float64
	var hlPre []float64
	for _, b := range beta {
		switch {
		case b.EventTime < 0:
			betaPre = append(betaPre, b.Beta)
			hlPre = append(hlPre, b.HalfLifeMonths)
		case b.EventTime > 0:
			betaPost = append(betaPost, b.Beta)
		}
	}

	ins := domain.Insights{
		BetaPreMean:     nanMean(betaPre),
		BetaPostMean:    nanMean(betaPost),
		SigmaPreMean:    nanMean(sigmaPre),
		SigmaPostMean:   nanMean(sigmaPost),
		HalfLifePre:     nanMean(hlPre),
		HalfLifePost:    earliestPostHalfLife(beta),
		PostSlopePValue: math.NaN(),
	}

	if b, ok := slopeAt(beta, 1); ok {
		ins.PostSlopePValue = slopePValue(b)
		ins.PostSlopeSignif = ins.PostSlopePValue < 0.05
	}

	ins.FasterConvergence = ins.BetaPostMean < ins.BetaPreMean
	ins.HigherVolatility = ins.SigmaPostMean > ins.SigmaPreMean
	return ins
}

// earliestPostHalfLife returns the half-life at the earliest τ>0 point
// where it is defined, NaN when no post-shock point implies convergence.
func earliestPostHalfLife(beta []domain.BetaPoint) float64 {
	for _, b := range beta {
		if b.EventTime <= 0 {
			continue
		}
		if !math.IsNaN(b.HalfLifeMonths) {
			return b.HalfLifeMonths
		}
	}
	return math.NaN()
}

// slopeAt finds the β estimate at the given event time.
func slopeAt(beta []domain.BetaPoint, tau int) (domain.BetaPoint, bool) {
	for _, b := range beta {
		if b.EventTime == tau {
			return b, true
		}
	}
	return domain.BetaPoint{}, false
}

// slopePValue is the two-sided p-value of β against zero using the point's
// standard error and a Student's t with n-2 degrees of freedom.
func slopePValue(b domain.BetaPoint) float64 {
	if math.IsNaN(b.Beta) || math.IsNaN(b.SE) || b.SE <= 0 || b.N <= regressors {
		return math.NaN()
	}
	t := math.Abs(b.Beta / b.SE)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(b.N - regressors)}
	return 2 * (1 - dist.CDF(t))
}
