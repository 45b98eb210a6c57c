package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportJSON_NonFiniteValues(t *testing.T) {
	failed := &Fitted{SpecID: 4, LogLik: math.NaN(), Flags: []Flag{FlagFitFailed}}
	report := &ComparisonReport{
		Response: "logRT",
		Models: []ModelSummary{
			{SpecID: 4, LogLik: math.NaN(), AIC: math.NaN(), BIC: math.NaN(), R2Marginal: math.NaN(), R2Conditional: math.NaN(), Flags: failed.Flags},
		},
		Comparisons: []Comparison{{From: 3, To: 4, Chisq: math.NaN(), RawDiff: math.NaN(), DFDiff: 3, PValue: math.NaN()}},
		Intervals:   []Interval{{Term: "strength", Estimate: -0.1, Lower: math.Inf(-1), Upper: 0.2}},
		Selected:    failed,
	}

	b, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"chisq":null`)
	assert.Contains(t, string(b), `"lower":"-Inf"`)
	assert.Contains(t, string(b), `"log_lik":null`)
	assert.Contains(t, string(b), `"df_diff":3`)

	var back ComparisonReport
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, math.IsNaN(back.Comparisons[0].PValue))
	assert.Equal(t, 3, back.Comparisons[0].DFDiff)
	assert.True(t, math.IsInf(back.Intervals[0].Lower, -1))
	assert.Equal(t, 0.2, back.Intervals[0].Upper)
	assert.Equal(t, "strength", back.Intervals[0].Term)
	assert.True(t, math.IsNaN(back.Models[0].R2Conditional))
	assert.True(t, back.Models[0].HasFlag(FlagFitFailed))
	require.NotNil(t, back.Selected)
	assert.Equal(t, 4, back.Selected.SpecID)
	assert.True(t, math.IsNaN(back.Selected.LogLik))
}

func TestReportJSON_FiniteValuesUnchanged(t *testing.T) {
	b, err := json.Marshal(Interval{Term: "EIT", Estimate: 0.5, Lower: 0.25, Upper: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"term":"EIT","estimate":0.5,"lower":0.25,"upper":1}`, string(b))
}
