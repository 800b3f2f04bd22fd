package exporter

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// formatFloat renders a statistic with full round-trip precision. Missing
// values become empty cells, the same convention the readers reverse.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatInt formats an integer value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatMonth renders a shock month as YYYY-MM.
func formatMonth(t time.Time) string {
	return t.Format("2006-01")
}

// parseCell parses a float cell, mapping empty (and "NaN") cells back to NaN.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseIntCell parses an integer cell, zero when empty.
func parseIntCell(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
