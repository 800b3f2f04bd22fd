package panel

import (
	"strconv"
	"strings"
)

// Table is a raw view of an input file: lowercased, trimmed column names
// plus string cells exactly as read from the CSV or workbook.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable builds a Table from a header row and data rows. Column names are
// lowercased and trimmed so detection can match on canonical names.
func NewTable(header []string, rows [][]string) *Table {
	cols := make([]string, len(header))
	for i, c := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return &Table{Columns: cols, Rows: rows}
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed cell at (row, col), or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// parseFloat parses a numeric cell, tolerating thousands separators.
func parseFloat(cell string) (float64, bool) {
	v := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsNumeric reports whether every non-empty cell in the column parses as a
// number. Columns with no values at all are not numeric.
func (t *Table) IsNumeric(col int) bool {
	seen := false
	for i := range t.Rows {
		cell := t.Cell(i, col)
		if cell == "" {
			continue
		}
		if _, ok := parseFloat(cell); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// DistinctValues counts the distinct non-empty values in the column.
func (t *Table) DistinctValues(col int) int {
	seen := make(map[string]struct{})
	for i := range t.Rows {
		cell := t.Cell(i, col)
		if cell == "" {
			continue
		}
		seen[cell] = struct{}{}
	}
	return len(seen)
}
