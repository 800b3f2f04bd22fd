package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathsWellKnownFiles(t *testing.T) {
	out := filepath.FromSlash("/srv/veg/output/event_study_outputs")
	p := NewPaths("/srv/veg", "/srv/veg/data", out, "/srv/veg/logs")

	assert.Equal(t, filepath.Join(out, "shock_dates_used.csv"), p.ShockDatesCSV)
	assert.Equal(t, filepath.Join(out, "sigma_convergence_event_path.csv"), p.SigmaPathCSV)
	assert.Equal(t, filepath.Join(out, "beta_convergence_event_path.csv"), p.BetaPathCSV)
	assert.Equal(t, filepath.Join(out, "robust_se_by_event_time.csv"), p.RobustSECSV)
	assert.Equal(t, filepath.Join(out, "sensitivity_grid.csv"), p.SensitivityCSV)
	assert.Equal(t, filepath.Join(out, "summary.txt"), p.SummaryTXT)
	assert.Equal(t, filepath.Join(out, "half_life_by_event_time.png"), p.HalfLifePNG)
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	p := NewPaths(base,
		filepath.Join(base, "data"),
		filepath.Join(base, "output", "event_study_outputs"),
		filepath.Join(base, "logs"))

	require.NoError(t, p.EnsureDirectories())

	for _, dir := range []string{p.DataDir, p.OutputDir, p.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, "directory should exist: %s", dir)
		assert.True(t, info.IsDir())
	}

	// Idempotent on a second call.
	assert.NoError(t, p.EnsureDirectories())
}

func TestGetPaths(t *testing.T) {
	p, err := GetPaths()
	require.NoError(t, err)

	assert.NotEmpty(t, p.ExecutableDir)
	assert.True(t, filepath.IsAbs(p.ExecutableDir))
	assert.Equal(t, filepath.Join(p.ExecutableDir, "data"), p.DataDir)
	assert.Equal(t, filepath.Join(p.ExecutableDir, "logs"), p.LogsDir)
}

func TestGetOutputPath(t *testing.T) {
	p := NewPaths("/x", "/x/data", "/x/out", "/x/logs")
	assert.Equal(t, filepath.Join("/x/out", "beta_convergence_event_path.csv"), p.GetOutputPath(BetaPathFile))
}

func TestGetLogPath(t *testing.T) {
	p := NewPaths("/x", "/x/data", "/x/out", "/x/logs")
	assert.Equal(t, filepath.Join("/x/logs", "web.log"), p.GetLogPath("web.log"))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.csv")

	assert.False(t, FileExists(path))
	require.NoError(t, os.WriteFile(path, []byte("state,date,relc\n"), 0o644))
	assert.True(t, FileExists(path))
}
