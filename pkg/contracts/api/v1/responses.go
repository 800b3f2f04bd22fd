package api

import (
	"encoding/json"
	"math"
)

// JSONFloat is a float64 that renders NaN and infinities as null. The
// estimators leave cells as NaN when they cannot be computed, and
// encoding/json refuses to marshal those.
type JSONFloat float64

// MarshalJSON implements json.Marshaler.
func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler. null becomes NaN.
func (f *JSONFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = JSONFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}

// SigmaPathEntry is one event-time row of the sigma-convergence path.
type SigmaPathEntry struct {
	EventTime int       `json:"event_time"`
	AvgSigma  JSONFloat `json:"avg_sigma"`
}

// BetaPathEntry is one event-time row of the beta-convergence path.
type BetaPathEntry struct {
	EventTime      int       `json:"event_time"`
	Beta           JSONFloat `json:"beta"`
	SE             JSONFloat `json:"se"`
	HalfLifeMonths JSONFloat `json:"half_life_months"`
	N              int       `json:"n"`
}

// RobustnessEntry is one event-time row of the robustness table. Cells the
// estimator could not compute are null.
type RobustnessEntry struct {
	EventTime   int       `json:"event_time"`
	NObs        int       `json:"n_obs"`
	BetaHC1     JSONFloat `json:"beta_hc1"`
	SEHC1       JSONFloat `json:"se_hc1"`
	BetaCluster JSONFloat `json:"beta_cluster"`
	SECluster   JSONFloat `json:"se_cluster"`
	BetaHAC     JSONFloat `json:"beta_hac"`
	SEHAC       JSONFloat `json:"se_hac"`
}

// SensitivityEntry is one row of the window/threshold sensitivity grid.
type SensitivityEntry struct {
	Window         int       `json:"window"`
	Threshold      float64   `json:"threshold"`
	EventTime      int       `json:"event_time"`
	Beta           JSONFloat `json:"beta"`
	SE             JSONFloat `json:"se"`
	HalfLifeMonths JSONFloat `json:"half_life_months"`
	N              int       `json:"n"`
	NumShocks      int       `json:"n_shocks"`
}

// InsightsResponse carries the derived key findings for the dashboard.
type InsightsResponse struct {
	BetaPreMean       JSONFloat `json:"beta_pre_mean"`
	BetaPostMean      JSONFloat `json:"beta_post_mean"`
	SigmaPreMean      JSONFloat `json:"sigma_pre_mean"`
	SigmaPostMean     JSONFloat `json:"sigma_post_mean"`
	HalfLifePre       JSONFloat `json:"half_life_pre"`
	HalfLifePost      JSONFloat `json:"half_life_post"`
	PostSlopePValue   JSONFloat `json:"post_slope_p_value"`
	PostSlopeSignif   bool      `json:"post_slope_significant"`
	FasterConvergence bool      `json:"faster_convergence"`
	HigherVolatility  bool      `json:"higher_volatility"`
}
