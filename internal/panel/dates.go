package panel

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// monthNames maps full English month names to month numbers.
var monthNames = map[string]int{
	"january":   1,
	"february":  2,
	"march":     3,
	"april":     4,
	"may":       5,
	"june":      6,
	"july":      7,
	"august":    8,
	"september": 9,
	"october":   10,
	"november":  11,
	"december":  12,
}

// dateLayouts are tried in order when parsing a date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"Jan-06",
	"2-Jan-06",
	"01-02-06",
}

// ParseDate parses a date cell using the supported layouts.
func ParseDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// ParseMonth converts a month cell to a month number. The cell may hold a
// number (1-12) or a full English month name in any case.
func ParseMonth(value string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return 0, fmt.Errorf("empty month")
	}
	if m, ok := monthNames[v]; ok {
		return m, nil
	}
	m, err := strconv.Atoi(v)
	if err != nil {
		// Float-formatted months ("9.0") show up in Excel exports.
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("unrecognized month %q", value)
		}
		m = int(f)
	}
	if m < 1 || m > 12 {
		return 0, fmt.Errorf("month %d out of range", m)
	}
	return m, nil
}

// BuildDate assembles a first-of-month date from year and month cells.
func BuildDate(yearCell, monthCell string) (time.Time, error) {
	y := strings.TrimSpace(yearCell)
	year, err := strconv.Atoi(y)
	if err != nil {
		f, ferr := strconv.ParseFloat(y, 64)
		if ferr != nil || f != float64(int(f)) {
			return time.Time{}, fmt.Errorf("unrecognized year %q", yearCell)
		}
		year = int(f)
	}
	month, err := ParseMonth(monthCell)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// MonthDiff returns the whole-month difference a - b, ignoring days.
func MonthDiff(a, b time.Time) int {
	return (a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month())
}
