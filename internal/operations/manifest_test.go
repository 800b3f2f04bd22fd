package operations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vegcli/internal/eventstudy"
)

func testSpec() RunSpec {
	params := eventstudy.DefaultParams()
	params.Window = 2
	return RunSpec{File: "prices.csv", Sheet: "panel", Params: params}
}

func TestNewRunManifest(t *testing.T) {
	m := NewRunManifest("op-1", testSpec())

	if m.OperationID != "op-1" {
		t.Errorf("operation ID = %s, want op-1", m.OperationID)
	}
	if m.Source != "prices.csv" || m.Sheet != "panel" {
		t.Errorf("source/sheet = %s/%s, want prices.csv/panel", m.Source, m.Sheet)
	}
	if m.Params.Window != 2 {
		t.Errorf("window = %d, want 2", m.Params.Window)
	}
	if m.Status != string(OperationStatusPending) {
		t.Errorf("status = %s, want pending", m.Status)
	}
	if len(m.Artifacts) != 0 || len(m.StepRuns) != 0 {
		t.Error("new manifest should have no artifacts or step runs")
	}
}

func TestRunManifestSetters(t *testing.T) {
	m := NewRunManifest("op-1", testSpec())

	m.SetSource("/data/panel.xlsx")
	if m.Source != "/data/panel.xlsx" {
		t.Errorf("source = %s, want /data/panel.xlsx", m.Source)
	}

	m.SetStatus(string(OperationStatusRunning))
	if m.Status != string(OperationStatusRunning) {
		t.Errorf("status = %s, want running", m.Status)
	}

	m.SetError(errors.New("boom"))
	if m.Status != string(OperationStatusFailed) {
		t.Errorf("status after SetError = %s, want failed", m.Status)
	}
	if m.Error != "boom" {
		t.Errorf("error = %s, want boom", m.Error)
	}
}

func TestRunManifestArtifacts(t *testing.T) {
	m := NewRunManifest("op-1", testSpec())

	dir := t.TempDir()
	path := filepath.Join(dir, "sigma_convergence_event_path.csv")
	if err := os.WriteFile(path, []byte("event_time,avg_sigma\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m.AddArtifact(path, "csv", StepIDConvergence)

	if !m.HasArtifact("sigma_convergence_event_path.csv") {
		t.Fatal("artifact not recorded")
	}

	artifacts := m.ArtifactList()
	if len(artifacts) != 1 {
		t.Fatalf("artifact count = %d, want 1", len(artifacts))
	}
	if artifacts[0].Kind != "csv" || artifacts[0].Step != StepIDConvergence {
		t.Errorf("artifact = %+v, want kind csv step convergence", artifacts[0])
	}
	if artifacts[0].Size == 0 {
		t.Error("artifact size should be read from disk")
	}

	// Re-adding the same name replaces the entry instead of duplicating.
	m.AddArtifact(path, "csv", StepIDConvergence)
	if got := len(m.ArtifactList()); got != 1 {
		t.Errorf("artifact count after re-add = %d, want 1", got)
	}

	// Missing files still get an entry, with zero size.
	m.AddArtifact(filepath.Join(dir, "missing.png"), "png", StepIDCharts)
	if !m.HasArtifact("missing.png") {
		t.Error("missing file should still be recorded")
	}

	names := m.ArtifactsFor(StepIDConvergence)
	if len(names) != 1 || names[0] != "sigma_convergence_event_path.csv" {
		t.Errorf("ArtifactsFor(convergence) = %v", names)
	}
}

func TestRunManifestStepRuns(t *testing.T) {
	m := NewRunManifest("op-1", testSpec())

	m.RecordStepStart(StepIDLoadPanel, StepNameLoadPanel)
	if len(m.StepRuns) != 1 {
		t.Fatalf("step runs = %d, want 1", len(m.StepRuns))
	}
	if m.StepRuns[0].Status != string(StepStatusActive) {
		t.Errorf("status = %s, want active", m.StepRuns[0].Status)
	}
	if m.IsStepCompleted(StepIDLoadPanel) {
		t.Error("step should not be completed yet")
	}

	// A retry reuses the existing entry.
	m.RecordStepStart(StepIDLoadPanel, StepNameLoadPanel)
	if len(m.StepRuns) != 1 {
		t.Errorf("step runs after retry = %d, want 1", len(m.StepRuns))
	}

	m.RecordStepCompletion(StepIDLoadPanel)
	if !m.IsStepCompleted(StepIDLoadPanel) {
		t.Error("step should be completed")
	}
	if m.StepRuns[0].Duration == "" {
		t.Error("completion should record a duration")
	}

	m.RecordStepStart(StepIDDetectShocks, StepNameDetectShocks)
	m.RecordStepFailure(StepIDDetectShocks, errors.New("no shocks"))
	if m.IsStepCompleted(StepIDDetectShocks) {
		t.Error("failed step must not count as completed")
	}
	if m.StepRuns[1].Error != "no shocks" {
		t.Errorf("failure error = %s, want no shocks", m.StepRuns[1].Error)
	}
}

func TestRunManifestCompletionCollectsArtifacts(t *testing.T) {
	m := NewRunManifest("op-1", testSpec())

	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		m.AddArtifact(path, "csv", StepIDConvergence)
	}

	m.RecordStepStart(StepIDConvergence, StepNameConvergence)
	m.RecordStepCompletion(StepIDConvergence)

	if got := len(m.StepRuns[0].Artifacts); got != 2 {
		t.Errorf("step artifacts = %d, want 2", got)
	}
}

func TestRunManifestSaveLoad(t *testing.T) {
	m := NewRunManifest("op-1", testSpec())
	m.SetStatus(string(OperationStatusCompleted))
	m.RecordStepStart(StepIDLoadPanel, StepNameLoadPanel)
	m.RecordStepCompletion(StepIDLoadPanel)

	path := filepath.Join(t.TempDir(), ManifestFileName)
	if err := m.SaveToFile(path); err != nil {
		t.Fatalf("save manifest: %v", err)
	}

	loaded, err := LoadManifestFromFile(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}

	if loaded.OperationID != "op-1" {
		t.Errorf("operation ID = %s, want op-1", loaded.OperationID)
	}
	if loaded.Status != string(OperationStatusCompleted) {
		t.Errorf("status = %s, want completed", loaded.Status)
	}
	if loaded.Params.Window != 2 {
		t.Errorf("window = %d, want 2", loaded.Params.Window)
	}
	if !loaded.IsStepCompleted(StepIDLoadPanel) {
		t.Error("loaded manifest lost the completed step")
	}
}

func TestLoadManifestFromFileErrors(t *testing.T) {
	if _, err := LoadManifestFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should error")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifestFromFile(bad); err == nil {
		t.Error("malformed JSON should error")
	}
}
