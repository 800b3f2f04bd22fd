package eventstudy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, 6, p.Window)
	assert.InDelta(t, 1.5, p.ThresholdK, 1e-12)
	assert.Equal(t, 24, p.MaxShocks)
	assert.Equal(t, 30, p.MinObs)
	assert.Equal(t, 1, p.HACLags)
	assert.False(t, p.PerState)
	assert.Empty(t, p.ExplicitShocks)
	assert.NoError(t, p.Validate())
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr string
	}{
		{
			name:    "zero window",
			mutate:  func(p *Params) { p.Window = 0 },
			wantErr: "window",
		},
		{
			name:    "negative threshold",
			mutate:  func(p *Params) { p.ThresholdK = -1 },
			wantErr: "threshold",
		},
		{
			name:    "zero threshold",
			mutate:  func(p *Params) { p.ThresholdK = 0 },
			wantErr: "threshold",
		},
		{
			name:    "zero max shocks",
			mutate:  func(p *Params) { p.MaxShocks = 0 },
			wantErr: "max shocks",
		},
		{
			name:    "min obs below regression floor",
			mutate:  func(p *Params) { p.MinObs = 2 },
			wantErr: "min observations",
		},
		{
			name:    "negative hac lags",
			mutate:  func(p *Params) { p.HACLags = -1 },
			wantErr: "hac lags",
		},
		{
			name:    "malformed explicit shock",
			mutate:  func(p *Params) { p.ExplicitShocks = []string{"2015-06", "nope"} },
			wantErr: "YYYY-MM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)

			err := p.Validate()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParamsValidateExplicitShocks(t *testing.T) {
	p := DefaultParams()
	p.ExplicitShocks = []string{"2015-01", "2016-12"}
	assert.NoError(t, p.Validate())
}
