package domain

import (
	"time"
)

// Shock is a detected shock month. State is empty in national mode and
// carries the originating state in per-state mode.
type Shock struct {
	Date  time.Time `json:"date"`
	State string    `json:"state,omitempty"`
	Value float64   `json:"value"` // detection-series value used for ranking
}

// Month renders the shock month in the YYYY-MM form used across outputs.
func (s Shock) Month() string {
	return s.Date.Format("2006-01")
}

// ShockSet is the result of shock detection.
type ShockSet struct {
	Shocks  []Shock `json:"shocks"`
	Source  string  `json:"source"`   // human-readable detection description
	PerState bool   `json:"per_state"`
}

// Months returns the distinct shock months in first-appearance order, which
// is chronological for detected shocks and list order for explicit ones.
// Per-state detection may attribute the same month to several states;
// window construction works on the distinct months.
func (ss ShockSet) Months() []time.Time {
	seen := make(map[time.Time]bool, len(ss.Shocks))
	var months []time.Time
	for _, s := range ss.Shocks {
		if !seen[s.Date] {
			seen[s.Date] = true
			months = append(months, s.Date)
		}
	}
	return months
}

// SigmaPoint is one row of the σ-convergence path: the average (across
// shocks) cross-state standard deviation of the convergence variable at a
// given event time.
type SigmaPoint struct {
	EventTime int     `json:"event_time"`
	AvgSigma  float64 `json:"avg_sigma"`
}

// BetaPoint is one row of the β-convergence path.
type BetaPoint struct {
	EventTime      int     `json:"event_time"`
	Beta           float64 `json:"beta"`
	SE             float64 `json:"se"`
	HalfLifeMonths float64 `json:"half_life_months"` // NaN when β is outside (-1, 0)
	N              int     `json:"n"`
}

// RobustPoint is one row of the robustness table: the β estimate under the
// three standard-error estimators. Estimates are NaN when the cell could not
// be computed (too few observations, degenerate clustering).
type RobustPoint struct {
	EventTime   int     `json:"event_time"`
	NObs        int     `json:"n_obs"`
	BetaHC1     float64 `json:"beta_hc1"`
	SEHC1       float64 `json:"se_hc1"`
	BetaCluster float64 `json:"beta_cluster"`
	SECluster   float64 `json:"se_cluster"`
	BetaHAC     float64 `json:"beta_hac"`
	SEHAC       float64 `json:"se_hac"`
}

// SensitivityPoint is one row of the parameter-sensitivity grid: the β path
// recomputed under an alternative window/threshold combination.
type SensitivityPoint struct {
	Window         int     `json:"window"`
	Threshold      float64 `json:"threshold"`
	EventTime      int     `json:"event_time"`
	Beta           float64 `json:"beta"`
	SE             float64 `json:"se"`
	HalfLifeMonths float64 `json:"half_life_months"`
	N              int     `json:"n"`
	NumShocks      int     `json:"n_shocks"`
}

// StudySummary mirrors the summary.txt fields.
type StudySummary struct {
	States      int    `json:"states"`
	RelColumn   string `json:"rel_column"`
	ShockSource string `json:"shock_source"`
	NumShocks   int    `json:"num_shocks"`
	Window      int    `json:"window"`
}

// Insights are the derived key findings shown on the dashboard.
type Insights struct {
	BetaPreMean      float64 `json:"beta_pre_mean"`
	BetaPostMean     float64 `json:"beta_post_mean"`
	SigmaPreMean     float64 `json:"sigma_pre_mean"`
	SigmaPostMean    float64 `json:"sigma_post_mean"`
	HalfLifePre      float64 `json:"half_life_pre"`  // NaN when no valid pre-shock half-life
	HalfLifePost     float64 `json:"half_life_post"` // NaN when no valid post-shock half-life
	PostSlopePValue  float64 `json:"post_slope_p_value"`
	PostSlopeSignif  bool    `json:"post_slope_significant"`
	FasterConvergence bool   `json:"faster_convergence"`
	HigherVolatility  bool   `json:"higher_volatility"`
}
