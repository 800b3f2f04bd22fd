package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "numeric", input: "9", want: 9},
		{name: "full name", input: "September", want: 9},
		{name: "lowercase name", input: "january", want: 1},
		{name: "padded name", input: "  March  ", want: 3},
		{name: "float formatted", input: "12.0", want: 12},
		{name: "abbreviation rejected", input: "Sep", wantErr: true},
		{name: "out of range", input: "13", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDate(t *testing.T) {
	got, err := BuildDate("2013", "September")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = BuildDate("2019", "9")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = BuildDate("twenty13", "9")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2013-09-01", time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"2013-09", time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"2013/09/01", time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, err := ParseDate("not a date")
	assert.Error(t, err)
}

func TestMonthDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{
			name: "same month",
			a:    time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC),
			want: 0,
		},
		{
			name: "six months after",
			a:    time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC),
			want: 6,
		},
		{
			name: "six months before",
			a:    time.Date(2013, 3, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC),
			want: -6,
		},
		{
			name: "year boundary",
			a:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2019, 11, 1, 0, 0, 0, 0, time.UTC),
			want: 2,
		},
		{
			name: "days ignored",
			a:    time.Date(2013, 10, 31, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2013, 9, 1, 0, 0, 0, 0, time.UTC),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthDiff(tt.a, tt.b))
		})
	}
}
