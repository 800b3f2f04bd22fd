package eventstudy

import (
	"time"

	"vegcli/pkg/contracts/domain"
)

// EventObs is one state-month observation inside an event window. LagRel and
// DRel are positional within the (state, shock) group: a missing month means
// the lag refers to the previous available observation, not the previous
// calendar month.
type EventObs struct {
	State     string
	ShockDate time.Time
	Date      time.Time
	EventTime int
	Rel       float64
	LagRel    float64
	DRel      float64
	HasLag    bool
}

// StudyResult bundles everything one event-study run produces.
type StudyResult struct {
	Meta     domain.PanelMeta
	Shocks   domain.ShockSet
	Sigma    []domain.SigmaPoint
	Beta     []domain.BetaPoint
	Summary  domain.StudySummary
	Insights domain.Insights
}
