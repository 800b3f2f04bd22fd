package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vegcli/internal/eventstudy"
	"vegcli/pkg/contracts/domain"
)

// ManifestFileName is the manifest written next to the run outputs.
const ManifestFileName = "run_manifest.json"

// RunManifest records what one run produced: which steps executed, in what
// order, and every artifact they wrote. It is saved as run_manifest.json in
// the output directory so a finished run can be inspected without the server.
type RunManifest struct {
	mu sync.RWMutex

	ID          string    `json:"id"`
	OperationID string    `json:"operation_id"`
	StartTime   time.Time `json:"start_time"`

	Source string            `json:"source,omitempty"`
	Sheet  string            `json:"sheet,omitempty"`
	Params eventstudy.Params `json:"params"`

	Artifacts []domain.Artifact `json:"artifacts"`
	StepRuns  []StepRun         `json:"step_runs"`

	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
	Error       string    `json:"error,omitempty"`
}

// StepRun tracks the execution of a single step within the run.
type StepRun struct {
	StepID    string    `json:"step_id"`
	StepName  string    `json:"step_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Status    string    `json:"status"`
	Artifacts []string  `json:"artifacts,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewRunManifest creates a manifest for one run.
func NewRunManifest(operationID string, spec RunSpec) *RunManifest {
	return &RunManifest{
		ID:          fmt.Sprintf("manifest-%d", time.Now().Unix()),
		OperationID: operationID,
		StartTime:   time.Now(),
		Source:      spec.File,
		Sheet:       spec.Sheet,
		Params:      spec.Params,
		Artifacts:   []domain.Artifact{},
		StepRuns:    []StepRun{},
		Status:      string(OperationStatusPending),
		LastUpdated: time.Now(),
	}
}

// SetSource records the resolved input file once the load step picked it.
func (m *RunManifest) SetSource(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Source = path
	m.LastUpdated = time.Now()
}

// SetStatus updates the run status.
func (m *RunManifest) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Status = status
	m.LastUpdated = time.Now()
}

// SetError records a run-level failure.
func (m *RunManifest) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Status = string(OperationStatusFailed)
	if err != nil {
		m.Error = err.Error()
	}
	m.LastUpdated = time.Now()
}

// AddArtifact records a file written by a step. Size is read from disk; a
// missing file still gets an entry so failures stay diagnosable.
func (m *RunManifest) AddArtifact(path, kind, stepID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	artifact := domain.Artifact{
		Name:      filepath.Base(path),
		Path:      path,
		Kind:      kind,
		Step:      stepID,
		CreatedAt: time.Now(),
	}
	if info, err := os.Stat(path); err == nil {
		artifact.Size = info.Size()
	}

	for i, existing := range m.Artifacts {
		if existing.Name == artifact.Name {
			m.Artifacts[i] = artifact
			m.LastUpdated = time.Now()
			return
		}
	}

	m.Artifacts = append(m.Artifacts, artifact)
	m.LastUpdated = time.Now()
}

// HasArtifact reports whether the run produced a file with the given name.
func (m *RunManifest) HasArtifact(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, artifact := range m.Artifacts {
		if artifact.Name == name {
			return true
		}
	}
	return false
}

// ArtifactList returns a copy of the recorded artifacts.
func (m *RunManifest) ArtifactList() []domain.Artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	artifacts := make([]domain.Artifact, len(m.Artifacts))
	copy(artifacts, m.Artifacts)
	return artifacts
}

// ArtifactsFor returns the names of artifacts a specific step wrote.
func (m *RunManifest) ArtifactsFor(stepID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for _, artifact := range m.Artifacts {
		if artifact.Step == stepID {
			names = append(names, artifact.Name)
		}
	}
	return names
}

// RecordStepStart records the start of a step execution. Retried steps
// update their existing entry instead of appending a duplicate.
func (m *RunManifest) RecordStepStart(stepID, stepName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, run := range m.StepRuns {
		if run.StepID == stepID {
			m.StepRuns[i].StartTime = time.Now()
			m.StepRuns[i].Status = string(StepStatusActive)
			m.StepRuns[i].Error = ""
			m.LastUpdated = time.Now()
			return
		}
	}

	m.StepRuns = append(m.StepRuns, StepRun{
		StepID:    stepID,
		StepName:  stepName,
		StartTime: time.Now(),
		Status:    string(StepStatusActive),
	})
	m.LastUpdated = time.Now()
}

// RecordStepCompletion records a successful step along with its artifacts.
func (m *RunManifest) RecordStepCompletion(stepID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for _, artifact := range m.Artifacts {
		if artifact.Step == stepID {
			names = append(names, artifact.Name)
		}
	}

	for i, run := range m.StepRuns {
		if run.StepID == stepID {
			m.StepRuns[i].EndTime = time.Now()
			m.StepRuns[i].Duration = time.Since(run.StartTime).String()
			m.StepRuns[i].Status = string(StepStatusCompleted)
			m.StepRuns[i].Artifacts = names
			break
		}
	}
	m.LastUpdated = time.Now()
}

// RecordStepFailure records a failed step.
func (m *RunManifest) RecordStepFailure(stepID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, run := range m.StepRuns {
		if run.StepID == stepID {
			m.StepRuns[i].EndTime = time.Now()
			m.StepRuns[i].Duration = time.Since(run.StartTime).String()
			m.StepRuns[i].Status = string(StepStatusFailed)
			if err != nil {
				m.StepRuns[i].Error = err.Error()
			}
			break
		}
	}
	m.LastUpdated = time.Now()
}

// IsStepCompleted reports whether a step finished successfully.
func (m *RunManifest) IsStepCompleted(stepID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, run := range m.StepRuns {
		if run.StepID == stepID && run.Status == string(StepStatusCompleted) {
			return true
		}
	}
	return false
}

// SaveToFile writes the manifest as indented JSON.
func (m *RunManifest) SaveToFile(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest file: %w", err)
	}
	return nil
}

// LoadManifestFromFile reads a manifest written by an earlier run.
func LoadManifestFromFile(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest file: %w", err)
	}

	var manifest RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &manifest, nil
}
