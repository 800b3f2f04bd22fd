package panel

import (
	"fmt"
	"strings"

	apperrors "vegcli/internal/errors"
	"vegcli/pkg/contracts/domain"
)

// stateCandidates are the column names accepted for the state identifier.
var stateCandidates = []string{"state", "state_name", "statename", "st_name", "states"}

// relPriority is the preference order for the convergence variable.
var relPriority = []string{"relc", "relu", "relr"}

// DetectColumns identifies the state, date, convergence, and vegetable
// columns of a raw table. It returns ErrColumnDetection-wrapped errors when
// a required role cannot be resolved.
func DetectColumns(t *Table) (domain.ColumnMapping, error) {
	var m domain.ColumnMapping

	for _, c := range stateCandidates {
		if t.ColumnIndex(c) >= 0 {
			m.State = c
			break
		}
	}

	if t.ColumnIndex("year") >= 0 {
		m.Year = "year"
	}
	if t.ColumnIndex("month") >= 0 {
		m.Month = "month"
	}
	if t.ColumnIndex("date") >= 0 {
		m.Date = "date"
	}

	for _, c := range relPriority {
		if t.ColumnIndex(c) >= 0 {
			m.Rel = c
			break
		}
	}
	if m.Rel == "" {
		for i, c := range t.Columns {
			if strings.HasPrefix(c, "rel") && t.IsNumeric(i) {
				m.Rel = c
				break
			}
		}
	}

	for _, c := range t.Columns {
		if strings.Contains(c, "veg") {
			m.Veg = append(m.Veg, c)
		}
	}

	// State fallback: a non-numeric column with a state-panel cardinality.
	// Indian state panels run 28-40 entities depending on UT treatment.
	if m.State == "" {
		for i, c := range t.Columns {
			if c == m.Date || c == m.Year || c == m.Month {
				continue
			}
			if t.IsNumeric(i) {
				continue
			}
			if n := t.DistinctValues(i); n >= 28 && n <= 40 {
				m.State = c
				break
			}
		}
	}
	if m.State == "" {
		return m, fmt.Errorf("%w: couldn't detect the state column, rename it to 'state' (or similar)", apperrors.ErrColumnDetection)
	}

	if m.Date == "" && (m.Year == "" || m.Month == "") {
		return m, fmt.Errorf("%w: need either a 'date' column or ('year' + 'month') columns", apperrors.ErrColumnDetection)
	}

	// Convergence fallback: the first numeric column that is not a key.
	if m.Rel == "" {
		for i, c := range t.Columns {
			if c == m.State || c == m.Date || c == m.Year || c == m.Month {
				continue
			}
			if t.IsNumeric(i) {
				m.Rel = c
				break
			}
		}
	}
	if m.Rel == "" {
		return m, fmt.Errorf("%w: no numeric series found for convergence analysis", apperrors.ErrColumnDetection)
	}

	return m, nil
}
