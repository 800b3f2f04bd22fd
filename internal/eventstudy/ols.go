package eventstudy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// olsFit is a fitted bivariate regression y = alpha + beta*x with the pieces
// the sandwich estimators need.
type olsFit struct {
	Alpha float64
	Beta  float64

	x      []float64
	resid  []float64
	invXtX *mat.Dense // (X'X)^-1, 2x2
	n      int
}

const regressors = 2 // intercept + slope

// fitOLS estimates y = alpha + beta*x by least squares via the normal
// equations (X'X)^-1 X'y.
func fitOLS(x, y []float64) (*olsFit, error) {
	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("length mismatch: %d x values, %d y values", n, len(y))
	}
	if n < regressors {
		return nil, fmt.Errorf("need at least %d observations, got %d", regressors, n)
	}

	X := mat.NewDense(n, regressors, nil)
	yVec := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		X.Set(i, 1, x[i])
		yVec.SetVec(i, y[i])
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("singular design matrix: %w", err)
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), yVec)

	var coef mat.VecDense
	coef.MulVec(&inv, &xty)

	alpha, beta := coef.AtVec(0), coef.AtVec(1)
	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = y[i] - alpha - beta*x[i]
	}

	return &olsFit{
		Alpha:  alpha,
		Beta:   beta,
		x:      append([]float64(nil), x...),
		resid:  resid,
		invXtX: &inv,
		n:      n,
	}, nil
}

// sandwich evaluates (X'X)^-1 B (X'X)^-1 * scale and returns the slope
// standard error.
func (f *olsFit) sandwich(meat *mat.Dense, scale float64) float64 {
	var tmp, cov mat.Dense
	tmp.Mul(f.invXtX, meat)
	cov.Mul(&tmp, f.invXtX)
	v := cov.At(1, 1) * scale
	if v < 0 {
		return math.NaN()
	}
	return math.Sqrt(v)
}

// scoreAt returns x_i * e_i as a 2-vector (intercept and slope scores).
func (f *olsFit) scoreAt(i int) (s0, s1 float64) {
	return f.resid[i], f.x[i] * f.resid[i]
}

// SEHC1 is the heteroskedasticity-consistent HC1 standard error of the
// slope: White's estimator with the n/(n-k) small-sample scaling.
func (f *olsFit) SEHC1() float64 {
	meat := mat.NewDense(regressors, regressors, nil)
	for i := 0; i < f.n; i++ {
		s0, s1 := f.scoreAt(i)
		meat.Set(0, 0, meat.At(0, 0)+s0*s0)
		meat.Set(0, 1, meat.At(0, 1)+s0*s1)
		meat.Set(1, 0, meat.At(1, 0)+s1*s0)
		meat.Set(1, 1, meat.At(1, 1)+s1*s1)
	}
	scale := float64(f.n) / float64(f.n-regressors)
	return f.sandwich(meat, scale)
}

// SECluster is the cluster-robust (CR1) standard error of the slope, with
// the G/(G-1) * (n-1)/(n-k) small-sample scaling. Needs at least two
// clusters.
func (f *olsFit) SECluster(groups []string) (float64, error) {
	if len(groups) != f.n {
		return math.NaN(), fmt.Errorf("length mismatch: %d groups for %d observations", len(groups), f.n)
	}

	sums := make(map[string][2]float64)
	for i := 0; i < f.n; i++ {
		s0, s1 := f.scoreAt(i)
		s := sums[groups[i]]
		s[0] += s0
		s[1] += s1
		sums[groups[i]] = s
	}

	g := len(sums)
	if g < 2 {
		return math.NaN(), fmt.Errorf("clustered errors need at least 2 clusters, got %d", g)
	}

	meat := mat.NewDense(regressors, regressors, nil)
	for _, s := range sums {
		meat.Set(0, 0, meat.At(0, 0)+s[0]*s[0])
		meat.Set(0, 1, meat.At(0, 1)+s[0]*s[1])
		meat.Set(1, 0, meat.At(1, 0)+s[1]*s[0])
		meat.Set(1, 1, meat.At(1, 1)+s[1]*s[1])
	}

	scale := float64(g) / float64(g-1) * float64(f.n-1) / float64(f.n-regressors)
	return f.sandwich(meat, scale), nil
}

// SEHAC is the Newey-West HAC standard error of the slope with a Bartlett
// kernel, w_l = 1 - l/(L+1), over the observations in their given order.
func (f *olsFit) SEHAC(lags int) (float64, error) {
	if lags < 0 {
		return math.NaN(), fmt.Errorf("lags must not be negative, got %d", lags)
	}

	meat := mat.NewDense(regressors, regressors, nil)
	for i := 0; i < f.n; i++ {
		s0, s1 := f.scoreAt(i)
		meat.Set(0, 0, meat.At(0, 0)+s0*s0)
		meat.Set(0, 1, meat.At(0, 1)+s0*s1)
		meat.Set(1, 0, meat.At(1, 0)+s1*s0)
		meat.Set(1, 1, meat.At(1, 1)+s1*s1)
	}

	for l := 1; l <= lags && l < f.n; l++ {
		w := 1 - float64(l)/float64(lags+1)
		var g00, g01, g10, g11 float64
		for t := l; t < f.n; t++ {
			a0, a1 := f.scoreAt(t)
			b0, b1 := f.scoreAt(t - l)
			g00 += a0 * b0
			g01 += a0 * b1
			g10 += a1 * b0
			g11 += a1 * b1
		}
		// Gamma_l + Gamma_l' keeps the meat symmetric.
		meat.Set(0, 0, meat.At(0, 0)+w*(g00+g00))
		meat.Set(0, 1, meat.At(0, 1)+w*(g01+g10))
		meat.Set(1, 0, meat.At(1, 0)+w*(g10+g01))
		meat.Set(1, 1, meat.At(1, 1)+w*(g11+g11))
	}

	return f.sandwich(meat, 1), nil
}

// halfLife converts a convergence coefficient to the implied half-life in
// months, defined only for beta in (-1, 0).
func halfLife(beta float64) float64 {
	if math.IsNaN(beta) || beta <= -1 || beta >= 0 {
		return math.NaN()
	}
	return math.Log(0.5) / math.Log(1+beta)
}
