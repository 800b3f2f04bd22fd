package eventstudy

import (
	"fmt"
	"time"
)

// Default parameter values shared by the CLI, the server, and the grid.
const (
	// DefaultWindow is the half-width of the event window in months.
	DefaultWindow = 6
	// DefaultThresholdK is the std-dev multiplier for shock detection.
	DefaultThresholdK = 1.5
	// DefaultMaxShocks caps auto-detected shocks, ranked by detection value.
	DefaultMaxShocks = 24
	// DefaultMinObs is the minimum observations per event time for a fit.
	DefaultMinObs = 30
	// DefaultHACLags is the Newey-West lag order for monthly data.
	DefaultHACLags = 1
)

// Params configures one event-study run.
type Params struct {
	// Window is the half-width of the event window in months.
	Window int
	// ThresholdK multiplies the detection-series std dev: a month is a
	// shock when its value exceeds mean + ThresholdK*std.
	ThresholdK float64
	// MaxShocks caps auto-detected shocks; the largest detection values
	// win. Explicit shock lists are never capped.
	MaxShocks int
	// MinObs is the minimum number of usable observations an event time
	// needs before a regression is attempted.
	MinObs int
	// HACLags is the Newey-West maximum lag order.
	HACLags int
	// ExplicitShocks lists shock months as YYYY-MM strings. When set,
	// detection is skipped entirely.
	ExplicitShocks []string
	// PerState detects shocks within each state's own series instead of
	// the national aggregate.
	PerState bool
}

// DefaultParams returns the standard configuration.
func DefaultParams() Params {
	return Params{
		Window:     DefaultWindow,
		ThresholdK: DefaultThresholdK,
		MaxShocks:  DefaultMaxShocks,
		MinObs:     DefaultMinObs,
		HACLags:    DefaultHACLags,
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.Window < 1 {
		return fmt.Errorf("window must be at least 1 month, got %d", p.Window)
	}
	if p.ThresholdK <= 0 {
		return fmt.Errorf("threshold multiplier must be positive, got %g", p.ThresholdK)
	}
	if p.MaxShocks < 1 {
		return fmt.Errorf("max shocks must be at least 1, got %d", p.MaxShocks)
	}
	if p.MinObs < 3 {
		return fmt.Errorf("min observations must be at least 3, got %d", p.MinObs)
	}
	if p.HACLags < 0 {
		return fmt.Errorf("hac lags must not be negative, got %d", p.HACLags)
	}
	for _, s := range p.ExplicitShocks {
		if _, err := time.Parse("2006-01", s); err != nil {
			return fmt.Errorf("explicit shock %q is not a YYYY-MM month", s)
		}
	}
	return nil
}
