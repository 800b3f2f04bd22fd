package panel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "vegcli/internal/errors"
	"vegcli/pkg/contracts/domain"
)

// Panel is the cleaned long-format panel plus its metadata.
type Panel struct {
	Rows []domain.PanelRow
	Meta domain.PanelMeta
}

// States returns the distinct state names in first-seen order.
func (p *Panel) States() []string {
	seen := make(map[string]struct{})
	var states []string
	for _, r := range p.Rows {
		if _, ok := seen[r.State]; !ok {
			seen[r.State] = struct{}{}
			states = append(states, r.State)
		}
	}
	return states
}

// Loader reads panel files and normalizes them for analysis.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a panel loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With(slog.String("component", "panel_loader"))}
}

// Load reads the panel at path. Excel workbooks use the given sheet name;
// CSV files ignore it.
func (l *Loader) Load(ctx context.Context, path, sheet string) (*Panel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: cannot find %s", apperrors.ErrPanelNotFound, path)
	}

	var (
		table *Table
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		table, err = readCSV(path)
	case ".xlsx", ".xlsm", ".xls":
		table, err = readWorkbook(path, sheet)
	default:
		return nil, fmt.Errorf("unsupported panel format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mapping, err := DetectColumns(table)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "panel columns detected",
		slog.String("state", mapping.State),
		slog.String("date", mapping.Date),
		slog.String("year", mapping.Year),
		slog.String("month", mapping.Month),
		slog.String("rel", mapping.Rel),
		slog.Any("veg", mapping.Veg))

	p, err := buildPanel(table, mapping)
	if err != nil {
		return nil, err
	}

	p.Meta.Source = path
	p.Meta.Sheet = sheet
	l.logger.InfoContext(ctx, "panel loaded",
		slog.String("source", path),
		slog.Int("rows", p.Meta.Rows),
		slog.Int("states", p.Meta.States),
		slog.Time("first_date", p.Meta.FirstDate),
		slog.Time("last_date", p.Meta.LastDate))

	return p, nil
}

// readCSV reads a CSV file into a raw table.
func readCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", apperrors.ErrNoPanelRows, path)
	}

	return NewTable(records[0], records[1:]), nil
}

// readWorkbook reads one sheet of an Excel workbook into a raw table.
func readWorkbook(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: sheet %q not found, available: %v",
			apperrors.ErrSheetNotFound, sheet, f.GetSheetList())
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", apperrors.ErrNoPanelRows, sheet)
	}

	return NewTable(rows[0], rows[1:]), nil
}

// buildPanel converts a raw table into clean rows using the detected
// mapping. Rows missing the state, date, or convergence value are dropped;
// a non-empty but unparseable date is an error.
func buildPanel(t *Table, mapping domain.ColumnMapping) (*Panel, error) {
	stateIdx := t.ColumnIndex(mapping.State)
	relIdx := t.ColumnIndex(mapping.Rel)
	dateIdx, yearIdx, monthIdx := -1, -1, -1
	if mapping.Date != "" {
		dateIdx = t.ColumnIndex(mapping.Date)
	} else {
		yearIdx = t.ColumnIndex(mapping.Year)
		monthIdx = t.ColumnIndex(mapping.Month)
	}
	vegIdx := -1
	if len(mapping.Veg) > 0 {
		vegIdx = t.ColumnIndex(mapping.Veg[0])
	}

	rows := make([]domain.PanelRow, 0, len(t.Rows))
	for i := range t.Rows {
		state := t.Cell(i, stateIdx)
		if state == "" {
			continue
		}

		var (
			date time.Time
			err  error
		)
		if dateIdx >= 0 {
			cell := t.Cell(i, dateIdx)
			if cell == "" {
				continue
			}
			date, err = ParseDate(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
		} else {
			yearCell, monthCell := t.Cell(i, yearIdx), t.Cell(i, monthIdx)
			if yearCell == "" || monthCell == "" {
				continue
			}
			date, err = BuildDate(yearCell, monthCell)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
		}

		rel, ok := parseFloat(t.Cell(i, relIdx))
		if !ok {
			continue
		}

		row := domain.PanelRow{State: state, Date: date, Rel: rel}
		if vegIdx >= 0 {
			if veg, ok := parseFloat(t.Cell(i, vegIdx)); ok {
				row.Veg = veg
				row.HasVeg = true
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows with state, date, and %s", apperrors.ErrNoPanelRows, mapping.Rel)
	}

	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].State != rows[b].State {
			return rows[a].State < rows[b].State
		}
		return rows[a].Date.Before(rows[b].Date)
	})

	meta := domain.PanelMeta{
		Columns:   mapping,
		Rows:      len(rows),
		FirstDate: rows[0].Date,
		LastDate:  rows[0].Date,
	}
	states := make(map[string]struct{})
	for _, r := range rows {
		states[r.State] = struct{}{}
		if r.Date.Before(meta.FirstDate) {
			meta.FirstDate = r.Date
		}
		if r.Date.After(meta.LastDate) {
			meta.LastDate = r.Date
		}
	}
	meta.States = len(states)

	return &Panel{Rows: rows, Meta: meta}, nil
}
