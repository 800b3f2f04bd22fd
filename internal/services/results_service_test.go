package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegcli/internal/config"
	"vegcli/internal/exporter"
	"vegcli/pkg/contracts/domain"
)

func newResultsFixture(t *testing.T) (*ResultsService, *config.Paths, *exporter.StudyExporter) {
	t.Helper()

	base := t.TempDir()
	paths := config.NewPaths(base,
		filepath.Join(base, "data"),
		filepath.Join(base, "output"),
		filepath.Join(base, "logs"))
	require.NoError(t, paths.EnsureDirectories())

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewResultsService(paths, logger), paths, exporter.NewStudyExporter(paths, logger)
}

func writeInputFile(t *testing.T, dir, name string, modified time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("state,date,price\n"), 0o644))
	require.NoError(t, os.Chtimes(path, modified, modified))
}

func TestListInputsEmpty(t *testing.T) {
	svc, _, _ := newResultsFixture(t)

	_, err := svc.ListInputs(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInputFiles))
}

func TestListInputsNewestFirst(t *testing.T) {
	svc, paths, _ := newResultsFixture(t)

	now := time.Now()
	writeInputFile(t, paths.DataDir, "legacy.csv", now.Add(-time.Hour))
	writeInputFile(t, paths.DataDir, "prices.xlsx", now)
	writeInputFile(t, paths.DataDir, "notes.txt", now)

	inputs, err := svc.ListInputs(context.Background())
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "prices.xlsx", inputs[0].Name)
	assert.Equal(t, "xlsx", inputs[0].Kind)
	assert.Equal(t, "legacy.csv", inputs[1].Name)
	assert.Equal(t, "csv", inputs[1].Kind)
}

func TestShocksMissing(t *testing.T) {
	svc, _, _ := newResultsFixture(t)

	_, err := svc.Shocks(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResultsNotAvailable))
}

func TestShocksRoundTrip(t *testing.T) {
	svc, _, e := newResultsFixture(t)

	set := domain.ShockSet{
		Shocks: []domain.Shock{
			{Date: time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC), Value: 2.1},
			{Date: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), Value: -1.8},
		},
		Source: "national |z| > 1.5",
	}
	require.NoError(t, e.WriteShockDates(set))

	got, err := svc.Shocks(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Shocks, 2)
	assert.Equal(t, "2015-07", got.Shocks[0].Month())
	assert.Equal(t, "2016-01", got.Shocks[1].Month())
	assert.False(t, got.PerState)
}

func TestSigmaPath(t *testing.T) {
	svc, _, e := newResultsFixture(t)

	_, err := svc.SigmaPath(context.Background())
	assert.True(t, errors.Is(err, ErrResultsNotAvailable))

	require.NoError(t, e.WriteSigmaPath([]domain.SigmaPoint{
		{EventTime: -1, AvgSigma: 0.10},
		{EventTime: 0, AvgSigma: 0.14},
		{EventTime: 1, AvgSigma: 0.18},
	}))

	entries, err := svc.SigmaPath(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, -1, entries[0].EventTime)
	assert.InDelta(t, 0.10, float64(entries[0].AvgSigma), 1e-9)
	assert.Equal(t, 1, entries[2].EventTime)
}

func TestBetaPathRendersNaNAsNull(t *testing.T) {
	svc, _, e := newResultsFixture(t)

	require.NoError(t, e.WriteBetaPath([]domain.BetaPoint{
		{EventTime: -1, Beta: -0.10, SE: 0.05, HalfLifeMonths: 6.5, N: 30},
		{EventTime: 0, Beta: 0.02, SE: 0.04, HalfLifeMonths: math.NaN(), N: 30},
		{EventTime: 1, Beta: -0.30, SE: 0.05, HalfLifeMonths: 2.0, N: 30},
	}))

	entries, err := svc.BetaPath(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.InDelta(t, 2.0, float64(entries[2].HalfLifeMonths), 1e-9)
	assert.True(t, math.IsNaN(float64(entries[1].HalfLifeMonths)))

	data, err := json.Marshal(entries)
	require.NoError(t, err, "NaN cells must not break JSON encoding")
	assert.Contains(t, string(data), `"half_life_months":null`)
}

func TestRobustness(t *testing.T) {
	svc, _, e := newResultsFixture(t)

	_, err := svc.Robustness(context.Background())
	assert.True(t, errors.Is(err, ErrResultsNotAvailable))

	require.NoError(t, e.WriteRobustPath([]domain.RobustPoint{
		{
			EventTime: 1, NObs: 30,
			BetaHC1: -0.30, SEHC1: 0.05,
			BetaCluster: math.NaN(), SECluster: math.NaN(),
			BetaHAC: -0.28, SEHAC: 0.06,
		},
	}))

	entries, err := svc.Robustness(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 30, entries[0].NObs)
	assert.InDelta(t, -0.30, float64(entries[0].BetaHC1), 1e-9)

	data, err := json.Marshal(entries)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"beta_cluster":null`)
}

func TestSensitivity(t *testing.T) {
	svc, _, e := newResultsFixture(t)

	_, err := svc.Sensitivity(context.Background())
	assert.True(t, errors.Is(err, ErrResultsNotAvailable))

	require.NoError(t, e.WriteSensitivityGrid([]domain.SensitivityPoint{
		{Window: 3, Threshold: 1.0, EventTime: 1, Beta: -0.25, SE: 0.06, HalfLifeMonths: 2.4, N: 28, NumShocks: 9},
		{Window: 6, Threshold: 2.0, EventTime: 1, Beta: -0.31, SE: 0.05, HalfLifeMonths: 1.9, N: 30, NumShocks: 4},
	}))

	entries, err := svc.Sensitivity(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].Window)
	assert.Equal(t, 1.0, entries[0].Threshold)
	assert.Equal(t, 4, entries[1].NumShocks)
	assert.InDelta(t, -0.31, float64(entries[1].Beta), 1e-9)
}

func TestSummaryRoundTrip(t *testing.T) {
	svc, _, e := newResultsFixture(t)

	_, err := svc.Summary(context.Background())
	assert.True(t, errors.Is(err, ErrResultsNotAvailable))

	want := domain.StudySummary{
		States:      36,
		RelColumn:   "rel_price",
		ShockSource: "national |z| > 1.5",
		NumShocks:   7,
		Window:      6,
	}
	require.NoError(t, e.WriteSummary(want))

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestInsights(t *testing.T) {
	svc, _, e := newResultsFixture(t)

	_, err := svc.Insights(context.Background())
	assert.True(t, errors.Is(err, ErrResultsNotAvailable))

	require.NoError(t, e.WriteSigmaPath([]domain.SigmaPoint{
		{EventTime: -1, AvgSigma: 0.10},
		{EventTime: 0, AvgSigma: 0.14},
		{EventTime: 1, AvgSigma: 0.18},
	}))
	require.NoError(t, e.WriteBetaPath([]domain.BetaPoint{
		{EventTime: -1, Beta: -0.10, SE: 0.05, HalfLifeMonths: 6.5, N: 30},
		{EventTime: 0, Beta: 0.02, SE: 0.04, HalfLifeMonths: math.NaN(), N: 30},
		{EventTime: 1, Beta: -0.30, SE: 0.05, HalfLifeMonths: 2.0, N: 30},
	}))

	ins, err := svc.Insights(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, -0.10, float64(ins.BetaPreMean), 1e-9)
	assert.InDelta(t, -0.30, float64(ins.BetaPostMean), 1e-9)
	assert.InDelta(t, 0.10, float64(ins.SigmaPreMean), 1e-9)
	assert.InDelta(t, 0.18, float64(ins.SigmaPostMean), 1e-9)
	assert.InDelta(t, 2.0, float64(ins.HalfLifePost), 1e-9)
	assert.True(t, ins.FasterConvergence, "post beta below pre beta means faster convergence")
	assert.True(t, ins.HigherVolatility, "post sigma above pre sigma means higher dispersion")
	assert.True(t, ins.PostSlopeSignif, "a 6-sigma slope at tau=+1 should be significant")
	assert.Less(t, float64(ins.PostSlopePValue), 0.05)
}

func TestHasResults(t *testing.T) {
	svc, _, e := newResultsFixture(t)

	assert.False(t, svc.HasResults(context.Background()))

	require.NoError(t, e.WriteShockDates(domain.ShockSet{
		Shocks: []domain.Shock{{Date: time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC)}},
	}))
	require.NoError(t, e.WriteSigmaPath([]domain.SigmaPoint{{EventTime: 0, AvgSigma: 0.1}}))
	assert.False(t, svc.HasResults(context.Background()), "beta path still missing")

	require.NoError(t, e.WriteBetaPath([]domain.BetaPoint{{EventTime: 0, Beta: -0.1, SE: 0.05, N: 10}}))
	assert.True(t, svc.HasResults(context.Background()))
}

func TestListResultsPipelineOrder(t *testing.T) {
	svc, paths, e := newResultsFixture(t)

	assert.Empty(t, svc.ListResults(context.Background()))

	require.NoError(t, e.WriteShockDates(domain.ShockSet{
		Shocks: []domain.Shock{{Date: time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC)}},
	}))
	require.NoError(t, e.WriteSigmaPath([]domain.SigmaPoint{{EventTime: 0, AvgSigma: 0.1}}))
	require.NoError(t, e.WriteBetaPath([]domain.BetaPoint{{EventTime: 0, Beta: -0.1, SE: 0.05, N: 10}}))
	require.NoError(t, e.WriteSummary(domain.StudySummary{States: 36, Window: 6}))

	results := svc.ListResults(context.Background())
	require.Len(t, results, 4)

	var names []string
	for _, rf := range results {
		names = append(names, rf.Name)
		assert.Greater(t, rf.Size, int64(0))
	}
	assert.Equal(t, []string{
		filepath.Base(paths.ShockDatesCSV),
		filepath.Base(paths.SigmaPathCSV),
		filepath.Base(paths.BetaPathCSV),
		filepath.Base(paths.SummaryTXT),
	}, names)
}

func TestDownloadFileUnknown(t *testing.T) {
	svc, _, _ := newResultsFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/results/download/other.csv", nil)

	err := svc.DownloadFile(context.Background(), rec, req, "other.csv")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestDownloadFileRejectsTraversal(t *testing.T) {
	svc, _, _ := newResultsFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/results/download/x", nil)

	err := svc.DownloadFile(context.Background(), rec, req, "../shock_dates.csv")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestDownloadFileCSV(t *testing.T) {
	svc, paths, e := newResultsFixture(t)

	require.NoError(t, e.WriteSigmaPath([]domain.SigmaPoint{{EventTime: 0, AvgSigma: 0.1}}))

	name := filepath.Base(paths.SigmaPathCSV)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/results/download/"+name, nil)

	require.NoError(t, svc.DownloadFile(context.Background(), rec, req, name))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), name)
	assert.Contains(t, rec.Body.String(), "event_time")
}

func TestDownloadFilePNGInline(t *testing.T) {
	svc, paths, _ := newResultsFixture(t)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	require.NoError(t, os.WriteFile(paths.SigmaPathPNG, png, 0o644))

	name := filepath.Base(paths.SigmaPathPNG)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/results/download/"+name, nil)

	require.NoError(t, svc.DownloadFile(context.Background(), rec, req, name))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")
	assert.Equal(t, png, rec.Body.Bytes())
}
