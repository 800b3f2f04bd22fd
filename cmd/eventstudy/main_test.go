package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "single month",
			input: "2021-03",
			want:  []string{"2021-03"},
		},
		{
			name:  "multiple months",
			input: "2020-04,2021-03,2022-06",
			want:  []string{"2020-04", "2021-03", "2022-06"},
		},
		{
			name:  "whitespace and empty entries",
			input: " 2020-04 , ,2021-03,",
			want:  []string{"2020-04", "2021-03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.input))
		})
	}
}

func TestFormatHalfLife(t *testing.T) {
	assert.Equal(t, "4.3 months", formatHalfLife(4.31))
	assert.Equal(t, "n/a", formatHalfLife(math.NaN()))
	assert.Equal(t, "n/a", formatHalfLife(math.Inf(1)))
}
