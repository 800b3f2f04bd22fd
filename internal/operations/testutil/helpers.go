package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CreateTestFile creates a test file with content.
func CreateTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	return path
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads a file and returns its content.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	return string(data)
}

// AssertFileExists fails when the file is missing.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if !FileExists(path) {
		t.Errorf("file %s does not exist", path)
	}
}

// AssertFileNotExists fails when the file is present.
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if FileExists(path) {
		t.Errorf("file %s exists but should not", path)
	}
}

// WriteGridPanelCSV writes a synthetic monthly panel with five states at
// flat rel levels 10..14 across 2015 and a shared vegetable spike in July.
// The flat levels make every fitted slope an exact zero and the spike makes
// July the single detectable shock, so pipeline outcomes are deterministic.
func WriteGridPanelCSV(t *testing.T, dir, name string) string {
	t.Helper()

	states := []string{"A", "B", "C", "D", "E"}

	var b strings.Builder
	b.WriteString("state,date,rel_price,veg_price\n")
	for i, state := range states {
		rel := 10 + i
		for m := 1; m <= 12; m++ {
			veg := 100
			if m == 7 {
				veg = 200
			}
			fmt.Fprintf(&b, "%s,2015-%02d-01,%d,%d\n", state, m, rel, veg)
		}
	}

	return CreateTestFile(t, dir, name, b.String())
}
