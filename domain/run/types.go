package run

import (
	"crypto/sha256"
	"fmt"

	"govac/domain/core"
)

// CodeVersion is recorded with every run.
const CodeVersion = "0.3.0"

// Settings are the analysis parameters that shape a run's results.
type Settings struct {
	CriticalRegion      int     `json:"critical_region"`
	ConstructionRegions []int   `json:"construction_regions"`
	ExpectedRegions     int     `json:"expected_regions"`
	Alpha               float64 `json:"alpha"`
	CILevel             float64 `json:"ci_level"`
	CIModelID           int     `json:"ci_model_id"`
	MaxEvaluations      int     `json:"max_evaluations"`
	SingularTolerance   float64 `json:"singular_tolerance"`
	Profile             bool    `json:"profile"`
}

// RunFingerprint ensures deterministic replay: two runs with the same
// fingerprint produce identical reports.
type RunFingerprint struct {
	DatasetHash  core.Hash `json:"dataset_hash"`
	SettingsHash core.Hash `json:"settings_hash"`
	CodeVersion  string    `json:"code_version"`
	Fingerprint  core.Hash `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(datasetHash core.Hash, settings Settings, codeVersion string) RunFingerprint {
	settingsHash := settings.Hash()
	return RunFingerprint{
		DatasetHash:  datasetHash,
		SettingsHash: settingsHash,
		CodeVersion:  codeVersion,
		Fingerprint:  computeRunFingerprint(datasetHash, settingsHash, codeVersion),
	}
}

// Hash is a deterministic digest of the settings.
func (s Settings) Hash() core.Hash {
	data := fmt.Sprintf("critical:%d|construction:%v|expected:%d|alpha:%g|level:%g|model:%d|evals:%d|tol:%g|profile:%t",
		s.CriticalRegion, s.ConstructionRegions, s.ExpectedRegions, s.Alpha, s.CILevel,
		s.CIModelID, s.MaxEvaluations, s.SingularTolerance, s.Profile)
	return core.NewHash([]byte(data))
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(datasetHash, settingsHash core.Hash, codeVersion string) core.Hash {
	data := fmt.Sprintf("dataset:%s|settings:%s|code:%s", datasetHash, settingsHash, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
