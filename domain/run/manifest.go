package run

import (
	"fmt"

	"govac/domain/core"
	"govac/domain/model"
)

// Manifest describes one analysis run: what was read, with which settings.
// It is written before the reports so a failed run still leaves a trace.
type Manifest struct {
	RunID        core.RunID     `json:"run_id"`
	DataFile     string         `json:"data_file"`
	Observations int            `json:"observations"`
	Settings     Settings       `json:"settings"`
	Fingerprint  RunFingerprint `json:"fingerprint"` // Determinism fingerprint
	CreatedAt    core.Timestamp `json:"created_at"`
}

// NewManifest creates a run manifest
func NewManifest(runID core.RunID, dataFile string, observations int, datasetHash core.Hash, settings Settings) *Manifest {
	return &Manifest{
		RunID:        runID,
		DataFile:     dataFile,
		Observations: observations,
		Settings:     settings,
		Fingerprint:  NewRunFingerprint(datasetHash, settings, CodeVersion),
		CreatedAt:    core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return fmt.Errorf("run manifest: run_id cannot be empty")
	}
	if m.Fingerprint.DatasetHash.IsEmpty() {
		return fmt.Errorf("run manifest: dataset hash cannot be empty")
	}
	if m.Fingerprint.CodeVersion == "" {
		return fmt.Errorf("run manifest: code_version cannot be empty")
	}
	if m.Observations <= 0 {
		return fmt.Errorf("run manifest: no observations")
	}
	return nil
}

// Record is a completed run: its manifest, one report per response that
// finished, and the failure message of each response that did not.
type Record struct {
	Manifest Manifest                  `json:"manifest"`
	Reports  []*model.ComparisonReport `json:"reports"`
	Failures map[string]string         `json:"failures,omitempty"`
}

// Report returns the report of a response variable.
func (r *Record) Report(response string) (*model.ComparisonReport, bool) {
	for _, rep := range r.Reports {
		if rep.Response == response {
			return rep, true
		}
	}
	return nil, false
}
