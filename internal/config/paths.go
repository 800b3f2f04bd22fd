package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths.
// This is the single source of truth for ALL file paths in the application.
type Paths struct {
	ExecutableDir string
	DataDir       string
	OutputDir     string
	LogsDir       string

	// Well-known output files
	ShockDatesCSV  string
	SigmaPathCSV   string
	BetaPathCSV    string
	RobustSECSV    string
	SensitivityCSV string
	SummaryTXT     string
	SigmaPathPNG   string
	BetaPathPNG    string
	HalfLifePNG    string
}

// GetPaths returns the application paths relative to the executable location.
// All paths are ALWAYS relative to the executable directory, never the
// current working directory, so the binaries behave the same whether run
// from dev/ or dist/.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	exeDir := filepath.Dir(exe)

	// Directory structure:
	// dist/
	//   ├── data/                       (panel input files: .csv / .xlsx)
	//   ├── output/
	//   │   └── event_study_outputs/    (CSV, summary.txt, PNG charts)
	//   └── logs/                       (application logs)

	dataDir := filepath.Join(exeDir, "data")
	outputDir := filepath.Join(exeDir, "output", "event_study_outputs")

	return NewPaths(exeDir, dataDir, outputDir, filepath.Join(exeDir, "logs")), nil
}

// NewPaths builds a Paths set from explicit directories. CLIs use this when
// the user overrides the defaults with flags.
func NewPaths(exeDir, dataDir, outputDir, logsDir string) *Paths {
	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		OutputDir:     outputDir,
		LogsDir:       logsDir,

		ShockDatesCSV:  filepath.Join(outputDir, ShockDatesFile),
		SigmaPathCSV:   filepath.Join(outputDir, SigmaPathFile),
		BetaPathCSV:    filepath.Join(outputDir, BetaPathFile),
		RobustSECSV:    filepath.Join(outputDir, RobustSEFile),
		SensitivityCSV: filepath.Join(outputDir, SensitivityFile),
		SummaryTXT:     filepath.Join(outputDir, SummaryFile),
		SigmaPathPNG:   filepath.Join(outputDir, SigmaChartFile),
		BetaPathPNG:    filepath.Join(outputDir, BetaChartFile),
		HalfLifePNG:    filepath.Join(outputDir, HalfLifeChartFile),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.OutputDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}

		if logger != nil {
			logger.Debug("Ensured directory exists",
				slog.String("directory", dir))
		}
	}

	return nil
}

// GetRelativePath returns a path relative to the executable directory
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// GetLogPath returns the path of a log file inside the logs directory
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetOutputPath returns the path of a file inside the output directory
func (p *Paths) GetOutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
