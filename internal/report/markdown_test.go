package report

import (
	"errors"
	"math"
	"strings"
	"testing"

	"govac/domain/core"
	"govac/domain/model"
	"govac/domain/reading"
	"govac/domain/run"
	"govac/internal/descriptives"

	"github.com/stretchr/testify/assert"
)

func sampleReport() *model.ComparisonReport {
	selected := &model.Fitted{
		SpecID: 2,
		RandomEffects: []model.RandomEffect{
			{Group: model.GroupSubject, Labels: []string{"(Intercept)"}, Covariance: [][]float64{{0.04}}},
		},
		ResidualVariance: 0.02,
		Coefficients: []model.Coefficient{
			{Term: "(Intercept)", Estimate: 6, StdError: 0.05},
			{Term: "strength", Estimate: -0.08, StdError: 0.02},
		},
	}
	return &model.ComparisonReport{
		Response: reading.ResponseCritical,
		NObs:     384,
		Models: []model.ModelSummary{
			{SpecID: 1, Formula: "logRT ~ 1 + (1 | subject)", DF: 3, LogLik: -300, AIC: 606, BIC: 618, R2Marginal: 0, R2Conditional: 0.6},
			{SpecID: 2, Formula: "logRT ~ 1 + strength + (1 | subject)", DF: 4, LogLik: -290, AIC: 588, BIC: 604,
				R2Marginal: 0.1, R2Conditional: 0.7, Flags: []model.Flag{model.FlagSingular}},
		},
		Comparisons: []model.Comparison{
			{From: 1, To: 2, Chisq: 20, DFDiff: 1, PValue: 7.7e-6, ToFlags: []model.Flag{model.FlagSingular}},
		},
		SelectedModel: 2,
		Level:         0.95,
		Method:        model.IntervalProfile,
		Intervals: []model.Interval{
			{Term: "(Intercept)", Estimate: 6, Lower: 5.9, Upper: 6.1},
			{Term: "strength", Estimate: -0.08, Lower: -0.12, Upper: math.Inf(1)},
		},
		Selected: selected,
	}
}

func TestComparison(t *testing.T) {
	md := Comparison(sampleReport())
	assert.Contains(t, md, "## logRT")
	assert.Contains(t, md, "| 2 | `logRT ~ 1 + strength + (1 | subject)` | 4 | -290.00 | 588.00 | 604.00 | 0.100 | 0.700 | SingularFitError |")
	assert.Contains(t, md, "| 1 vs 2 | 20.000 | 1 | < 0.0001 | SingularFitError |")
	assert.Contains(t, md, "### Model 2: 95% profile confidence intervals")
	assert.Contains(t, md, "| (Intercept) | 6.0000 | 0.0500 | 120.00 | 5.9000 | 6.1000 |")
	assert.Contains(t, md, "| strength | -0.0800 | 0.0200 | -4.00 | -0.1200 | ∞ |")
	assert.Contains(t, md, "| residual | | 0.02000 |")
}

func TestComparison_WaldIntervalsNamed(t *testing.T) {
	r := sampleReport()
	r.Method = model.IntervalWald
	assert.Contains(t, Comparison(r), "### Model 2: 95% wald confidence intervals")
}

func TestComparison_NoIntervals(t *testing.T) {
	r := sampleReport()
	r.Intervals = nil
	assert.Contains(t, Comparison(r), "No intervals")
}

func TestDocument(t *testing.T) {
	summary := &descriptives.Summary{Region: 3, Cells: []descriptives.Cell{
		{Strength: reading.StrengthWeak, VAC: reading.VaN, N: 1, MeanRT: 400, SDRT: math.NaN(), MedianRT: 400, MeanLogRT: 5.991, SDLogRT: math.NaN()},
	}}
	doc := Document(Run{
		ID:          "run-1",
		Fingerprint: "abc123",
		Reports:     []*model.ComparisonReport{sampleReport()},
		Failures: map[string]error{
			reading.ResponseConstruction: errors.New("empty result"),
			reading.ResponseWhole:        errors.New("other"),
		},
		Summary: summary,
	})
	assert.True(t, strings.HasPrefix(doc, "# "))
	assert.Contains(t, doc, "Run `run-1` on dataset `abc123`.")
	assert.Contains(t, doc, "| weak | VaN | 1 | 400.0 | NA | 400.0 | 5.991 | NA |")
	assert.Contains(t, doc, "Pipeline failed: empty result")
	assert.Less(t, strings.Index(doc, "## VAC_RT"), strings.Index(doc, "## logRT_whole"))
}

func TestFromRecord(t *testing.T) {
	m := run.NewManifest(core.NewRunID(), "data.csv", 28, core.NewHash([]byte("rows")), run.Settings{})
	rec := &run.Record{
		Manifest: *m,
		Reports:  []*model.ComparisonReport{sampleReport()},
		Failures: map[string]string{reading.ResponseCritical: "pipeline logRT: empty result"},
	}

	r := FromRecord(rec)
	assert.Equal(t, m.RunID.String(), r.ID)
	assert.Len(t, r.Fingerprint, 12)
	assert.Nil(t, r.Summary)
	assert.EqualError(t, r.Failures[reading.ResponseCritical], "pipeline logRT: empty result")
	assert.Contains(t, Document(r), "Pipeline failed: pipeline logRT: empty result")
}
