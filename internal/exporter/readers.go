package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "vegcli/internal/errors"
	"vegcli/pkg/contracts/domain"
)

// resultTable is a parsed result CSV with name-addressable columns.
type resultTable struct {
	index map[string]int
	rows  [][]string
}

func (t *resultTable) cell(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (t *resultTable) float(row []string, column string) (float64, error) {
	v, err := parseCell(t.cell(row, column))
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", column, err)
	}
	return v, nil
}

func (t *resultTable) int(row []string, column string) (int, error) {
	v, err := parseIntCell(t.cell(row, column))
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", column, err)
	}
	return v, nil
}

// readTable loads a result CSV, strips the BOM and normalizes headers.
func readTable(path string) (*resultTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrResultsMissing, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", apperrors.ErrResultsMissing, path)
	}

	index := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return &resultTable{index: index, rows: records[1:]}, nil
}

// ReadShockDates loads the exported shock months. Rows keep their file
// order; a state column is picked up when present.
func ReadShockDates(path string) (domain.ShockSet, error) {
	table, err := readTable(path)
	if err != nil {
		return domain.ShockSet{}, err
	}
	if _, ok := table.index["shock_date"]; !ok {
		return domain.ShockSet{}, fmt.Errorf("%s has no shock_date column", path)
	}

	_, perState := table.index["state"]
	set := domain.ShockSet{PerState: perState}
	for i, row := range table.rows {
		raw := strings.TrimSpace(table.cell(row, "shock_date"))
		if raw == "" {
			continue
		}
		date, err := time.Parse("2006-01", raw)
		if err != nil {
			return domain.ShockSet{}, fmt.Errorf("row %d: shock_date %q is not a YYYY-MM month", i+2, raw)
		}
		set.Shocks = append(set.Shocks, domain.Shock{Date: date, State: table.cell(row, "state")})
	}
	return set, nil
}

// ReadSigmaPath loads the σ-convergence path.
func ReadSigmaPath(path string) ([]domain.SigmaPoint, error) {
	table, err := readTable(path)
	if err != nil {
		return nil, err
	}

	points := make([]domain.SigmaPoint, 0, len(table.rows))
	for i, row := range table.rows {
		tau, err := table.int(row, "event_time")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		sigma, err := table.float(row, "avg_sigma")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		points = append(points, domain.SigmaPoint{EventTime: tau, AvgSigma: sigma})
	}
	return points, nil
}

// ReadBetaPath loads the β-convergence path.
func ReadBetaPath(path string) ([]domain.BetaPoint, error) {
	table, err := readTable(path)
	if err != nil {
		return nil, err
	}

	points := make([]domain.BetaPoint, 0, len(table.rows))
	for i, row := range table.rows {
		p := domain.BetaPoint{}
		if p.EventTime, err = table.int(row, "event_time"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.Beta, err = table.float(row, "beta"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.SE, err = table.float(row, "se"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.HalfLifeMonths, err = table.float(row, "half_life_months"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.N, err = table.int(row, "n"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		points = append(points, p)
	}
	return points, nil
}

// ReadRobustPath loads the robustness table.
func ReadRobustPath(path string) ([]domain.RobustPoint, error) {
	table, err := readTable(path)
	if err != nil {
		return nil, err
	}

	points := make([]domain.RobustPoint, 0, len(table.rows))
	for i, row := range table.rows {
		p := domain.RobustPoint{}
		fields := []struct {
			dst    *float64
			column string
		}{
			{&p.BetaHC1, "beta_hc1"},
			{&p.SEHC1, "se_hc1"},
			{&p.BetaCluster, "beta_cluster"},
			{&p.SECluster, "se_cluster"},
			{&p.BetaHAC, "beta_hac"},
			{&p.SEHAC, "se_hac"},
		}

		if p.EventTime, err = table.int(row, "event_time"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.NObs, err = table.int(row, "n_obs"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		for _, f := range fields {
			if *f.dst, err = table.float(row, f.column); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
		}
		points = append(points, p)
	}
	return points, nil
}

// ReadSensitivityGrid loads the sensitivity grid.
func ReadSensitivityGrid(path string) ([]domain.SensitivityPoint, error) {
	table, err := readTable(path)
	if err != nil {
		return nil, err
	}

	points := make([]domain.SensitivityPoint, 0, len(table.rows))
	for i, row := range table.rows {
		p := domain.SensitivityPoint{}
		if p.Window, err = table.int(row, "window"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.Threshold, err = table.float(row, "threshold"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.EventTime, err = table.int(row, "event_time"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.Beta, err = table.float(row, "beta"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.SE, err = table.float(row, "se"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.HalfLifeMonths, err = table.float(row, "half_life_months"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.N, err = table.int(row, "n"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if p.NumShocks, err = table.int(row, "n_shocks"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		points = append(points, p)
	}
	return points, nil
}

// ReadSummary parses the five-line summary file back into its fields.
func ReadSummary(path string) (domain.StudySummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.StudySummary{}, fmt.Errorf("%w: %s", apperrors.ErrResultsMissing, path)
		}
		return domain.StudySummary{}, fmt.Errorf("read %s: %w", path, err)
	}

	s := domain.StudySummary{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "States":
			s.States, _ = strconv.Atoi(value)
		case "Convergence variable":
			s.RelColumn = value
		case "Shock source":
			s.ShockSource = value
		case "Num shocks":
			s.NumShocks, _ = strconv.Atoi(value)
		case "Window":
			value = strings.TrimSuffix(strings.TrimPrefix(value, "±"), " months")
			s.Window, _ = strconv.Atoi(value)
		}
	}
	return s, nil
}
