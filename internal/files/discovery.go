package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vegcli/internal/config"
	apperrors "vegcli/internal/errors"
	"vegcli/pkg/contracts/domain"
)

// panelExtensions maps the input formats the panel loader accepts to the
// kind label reported over the API.
var panelExtensions = map[string]string{
	".csv":  "csv",
	".xlsx": "xlsx",
	".xlsm": "xlsx",
	".xls":  "xlsx",
}

// ResultFile describes a generated artifact under the output directory.
type ResultFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Discovery locates panel inputs in the data directory and result
// artifacts in the output directory.
type Discovery struct {
	paths *config.Paths
}

// NewDiscovery creates a Discovery rooted at the application paths.
func NewDiscovery(paths *config.Paths) *Discovery {
	return &Discovery{paths: paths}
}

// FindPanelInputs returns every panel input candidate in the data
// directory, newest first. A missing data directory yields an empty list
// rather than an error so a fresh install reports "no inputs" instead of
// failing.
func (d *Discovery) FindPanelInputs() ([]domain.InputFile, error) {
	entries, err := os.ReadDir(d.paths.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory %s: %w", d.paths.DataDir, err)
	}

	var inputs []domain.InputFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, ok := panelExtensions[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		inputs = append(inputs, domain.InputFile{
			Name:     entry.Name(),
			Path:     filepath.Join(d.paths.DataDir, entry.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
			Kind:     kind,
		})
	}

	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].Modified.Equal(inputs[j].Modified) {
			return inputs[i].Name < inputs[j].Name
		}
		return inputs[i].Modified.After(inputs[j].Modified)
	})

	return inputs, nil
}

// LatestPanelInput returns the most recently modified panel input.
func (d *Discovery) LatestPanelInput() (domain.InputFile, error) {
	inputs, err := d.FindPanelInputs()
	if err != nil {
		return domain.InputFile{}, err
	}
	if len(inputs) == 0 {
		return domain.InputFile{}, fmt.Errorf("%w: no panel files in %s", apperrors.ErrPanelNotFound, d.paths.DataDir)
	}
	return inputs[0], nil
}

// ResolvePanelInput resolves a user-supplied file reference. Bare names are
// looked up in the data directory, absolute and relative paths are used as
// given, and an empty name falls back to the newest discovered input.
func (d *Discovery) ResolvePanelInput(name string) (domain.InputFile, error) {
	if name == "" {
		return d.LatestPanelInput()
	}

	path := name
	if !filepath.IsAbs(path) && path == filepath.Base(path) {
		path = filepath.Join(d.paths.DataDir, path)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return domain.InputFile{}, fmt.Errorf("%w: cannot find %s", apperrors.ErrPanelNotFound, path)
	}

	kind, ok := panelExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return domain.InputFile{}, fmt.Errorf("unsupported panel format %q", filepath.Ext(path))
	}

	return domain.InputFile{
		Name:     filepath.Base(path),
		Path:     path,
		Size:     info.Size(),
		Modified: info.ModTime(),
		Kind:     kind,
	}, nil
}

// FindResultFiles reports which of the well-known output artifacts exist,
// in the order the pipeline writes them.
func (d *Discovery) FindResultFiles() []ResultFile {
	known := []string{
		d.paths.ShockDatesCSV,
		d.paths.SigmaPathCSV,
		d.paths.BetaPathCSV,
		d.paths.SummaryTXT,
		d.paths.RobustSECSV,
		d.paths.SensitivityCSV,
		d.paths.SigmaPathPNG,
		d.paths.BetaPathPNG,
		d.paths.HalfLifePNG,
	}

	var results []ResultFile
	for _, path := range known {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		results = append(results, ResultFile{
			Name:     filepath.Base(path),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return results
}

// LookupResultFile returns the result artifact with the given base name.
// Only the well-known artifact names resolve, which keeps download
// handlers from serving arbitrary paths.
func (d *Discovery) LookupResultFile(name string) (ResultFile, bool) {
	if name != filepath.Base(name) {
		return ResultFile{}, false
	}
	for _, rf := range d.FindResultFiles() {
		if rf.Name == name {
			return rf, true
		}
	}
	return ResultFile{}, false
}

// HasCoreResults reports whether the three artifacts every successful run
// produces (shock dates, σ-path, β-path) are all present.
func (d *Discovery) HasCoreResults() bool {
	for _, path := range []string{d.paths.ShockDatesCSV, d.paths.SigmaPathCSV, d.paths.BetaPathCSV} {
		if !config.FileExists(path) {
			return false
		}
	}
	return true
}
