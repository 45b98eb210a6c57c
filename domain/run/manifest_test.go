package run

import (
	"testing"

	"govac/domain/core"
	"govac/domain/model"
)

func testSettings() Settings {
	return Settings{
		CriticalRegion:      3,
		ConstructionRegions: []int{2, 3, 4, 5},
		ExpectedRegions:     7,
		Alpha:               0.05,
		CILevel:             0.95,
		MaxEvaluations:      20000,
		SingularTolerance:   1e-4,
		Profile:             true,
	}
}

func TestRunFingerprint_Deterministic(t *testing.T) {
	// Same inputs produce identical fingerprints
	dataset := core.NewHash([]byte("rows"))
	fp1 := NewRunFingerprint(dataset, testSettings(), "1.0.0")
	fp2 := NewRunFingerprint(dataset, testSettings(), "1.0.0")

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.DatasetHash != dataset {
		t.Errorf("DatasetHash mismatch: %s vs %s", fp1.DatasetHash, dataset)
	}
	if fp1.CodeVersion != "1.0.0" {
		t.Errorf("CodeVersion mismatch: %s", fp1.CodeVersion)
	}
}

func TestRunFingerprint_Unique(t *testing.T) {
	dataset := core.NewHash([]byte("rows"))
	base := NewRunFingerprint(dataset, testSettings(), "1.0.0")

	regions := testSettings()
	regions.ConstructionRegions = []int{2, 3, 4}
	alpha := testSettings()
	alpha.Alpha = 0.01

	testCases := []struct {
		name string
		fp   RunFingerprint
	}{
		{"different dataset", NewRunFingerprint(core.NewHash([]byte("other rows")), testSettings(), "1.0.0")},
		{"different regions", NewRunFingerprint(dataset, regions, "1.0.0")},
		{"different alpha", NewRunFingerprint(dataset, alpha, "1.0.0")},
		{"different code", NewRunFingerprint(dataset, testSettings(), "1.0.1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should be different for %s", tc.name)
			}
		})
	}
}

func TestManifest_Complete(t *testing.T) {
	runID := core.NewRunID()
	manifest := NewManifest(runID, "spr.csv", 2688, core.NewHash([]byte("rows")), testSettings())

	if manifest.RunID != runID {
		t.Errorf("RunID not set correctly")
	}
	if manifest.Fingerprint.CodeVersion != CodeVersion {
		t.Errorf("CodeVersion not set correctly")
	}
	if manifest.Fingerprint.Fingerprint == "" {
		t.Errorf("Fingerprint not computed")
	}
	if manifest.CreatedAt.IsZero() {
		t.Errorf("CreatedAt not set")
	}
	if err := manifest.Validate(); err != nil {
		t.Errorf("Manifest validation failed: %v", err)
	}

	empty := &Manifest{}
	if err := empty.Validate(); err == nil {
		t.Errorf("empty manifest should not validate")
	}
}

func TestRecord_Report(t *testing.T) {
	rec := &Record{Reports: []*model.ComparisonReport{{Response: "logRT"}, {Response: "VAC_RT"}}}
	if r, ok := rec.Report("VAC_RT"); !ok || r.Response != "VAC_RT" {
		t.Errorf("VAC_RT report not found")
	}
	if _, ok := rec.Report("logRT_whole"); ok {
		t.Errorf("unexpected logRT_whole report")
	}
}
