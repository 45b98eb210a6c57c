package comparison

import (
	"context"
	"errors"
	"math"
	"testing"

	"govac/domain/core"
	"govac/domain/model"
	"govac/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence builds eight fitted models with the registry's df and the given
// log-likelihoods.
func sequence(logLiks ...float64) []*model.Fitted {
	specs := model.BuildSequence("logRT")
	out := make([]*model.Fitted, len(logLiks))
	for i, ll := range logLiks {
		out[i] = &model.Fitted{
			SpecID:    specs[i].ID,
			Response:  "logRT",
			Spec:      specs[i],
			NObs:      384,
			DF:        specs[i].DF(),
			LogLik:    ll,
			Converged: true,
			Coefficients: []model.Coefficient{
				{Term: "(Intercept)", Estimate: 6, StdError: 0.05},
			},
			Variance: model.VarianceDecomposition{Fixed: 0.01 * float64(i), Random: 0.04, Residual: 0.02},
		}
	}
	return out
}

func TestCompareSequence_Statistics(t *testing.T) {
	fitted := sequence(-300, -290, -289.5, -288, -280, -279.9, -279, -270)
	comps, err := CompareSequence(fitted)
	require.NoError(t, err)
	require.Len(t, comps, 7)

	assert.Equal(t, 1, comps[0].From)
	assert.Equal(t, 2, comps[0].To)
	assert.InDelta(t, 20, comps[0].Chisq, 1e-12)
	assert.Equal(t, 1, comps[0].DFDiff)
	assert.Less(t, comps[0].PValue, 1e-4)

	assert.Equal(t, 10, comps[6].DFDiff)
	for _, c := range comps {
		assert.GreaterOrEqual(t, c.Chisq, 0.0)
		assert.True(t, c.PValue >= 0 && c.PValue <= 1)
		assert.False(t, c.Flagged())
	}
}

func TestCompareSequence_ClampsNegativeDifference(t *testing.T) {
	fitted := sequence(-300, -300.2)
	comps, err := CompareSequence(fitted)
	require.NoError(t, err)
	assert.Equal(t, 0.0, comps[0].Chisq)
	assert.InDelta(t, -0.4, comps[0].RawDiff, 1e-12)
	assert.Equal(t, 1.0, comps[0].PValue)
}

func TestCompareSequence_Degenerate(t *testing.T) {
	fitted := sequence(-300, -290, -280)
	fitted[2].DF = fitted[1].DF
	_, err := CompareSequence(fitted)
	assert.ErrorIs(t, err, core.ErrDegenerateComparison)

	_, err = CompareSequence(fitted[:1])
	assert.ErrorIs(t, err, core.ErrDegenerateComparison)
}

func TestCompareSequence_ConvergenceFailureIsFlaggedOnly(t *testing.T) {
	fitted := sequence(-300, -290, -289.5, -288, -280, -279.9, -279, -270)
	fitted[5].Converged = false
	fitted[5].Flags = []model.Flag{model.FlagConvergence}

	comps, err := CompareSequence(fitted)
	require.NoError(t, err)
	for _, c := range comps {
		assert.False(t, math.IsNaN(c.Chisq), "%d->%d", c.From, c.To)
		switch {
		case c.To == 6:
			assert.Contains(t, c.ToFlags, model.FlagConvergence)
			assert.Empty(t, c.FromFlags)
		case c.From == 6:
			assert.Contains(t, c.FromFlags, model.FlagConvergence)
			assert.Empty(t, c.ToFlags)
		default:
			assert.False(t, c.Flagged(), "%d->%d", c.From, c.To)
		}
	}

	summaries := Summarize(fitted)
	require.Len(t, summaries, 8)
	for _, s := range summaries {
		assert.Equal(t, s.SpecID == 6, s.HasFlag(model.FlagConvergence))
	}
}

func TestCompareSequence_FailedFitYieldsNaN(t *testing.T) {
	fitted := sequence(-300, -290, -289)
	fitted[1].LogLik = math.NaN()
	fitted[1].Flags = []model.Flag{model.FlagFitFailed}

	comps, err := CompareSequence(fitted)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(comps[0].Chisq))
	assert.True(t, math.IsNaN(comps[1].PValue))
}

func TestSelectModel(t *testing.T) {
	comps := []model.Comparison{
		{From: 1, To: 2, PValue: 0.001},
		{From: 2, To: 3, PValue: 0.5},
		{From: 3, To: 4, PValue: 0.01},
		{From: 4, To: 5, PValue: 0.2},
		{From: 5, To: 6, PValue: 0.001, ToFlags: []model.Flag{model.FlagFitFailed}},
	}
	assert.Equal(t, 4, SelectModel(comps, 0.05, 0))
	assert.Equal(t, 2, SelectModel(comps, 0.005, 0))
	assert.Equal(t, 7, SelectModel(comps, 0.05, 7))
	assert.Equal(t, 1, SelectModel([]model.Comparison{{From: 1, To: 2, PValue: 0.9}}, 0.05, 0))
}

func TestMarginalConditionalR2(t *testing.T) {
	f := &model.Fitted{Variance: model.VarianceDecomposition{Fixed: 1, Random: 2, Residual: 1}}
	m, c := MarginalConditionalR2(f)
	assert.InDelta(t, 0.25, m, 1e-12)
	assert.InDelta(t, 0.75, c, 1e-12)

	zero := &model.Fitted{}
	m, c = MarginalConditionalR2(zero)
	assert.Equal(t, 0.0, m)
	assert.Equal(t, 0.0, c)

	failed := &model.Fitted{Flags: []model.Flag{model.FlagFitFailed}}
	m, _ = MarginalConditionalR2(failed)
	assert.True(t, math.IsNaN(m))
}

func TestMarginalConditionalR2_Bounds(t *testing.T) {
	for _, v := range []model.VarianceDecomposition{
		{Fixed: 0, Random: 0, Residual: 1},
		{Fixed: 5, Random: 0, Residual: 1e-9},
		{Fixed: -1e-12, Random: 3, Residual: 0.5},
		{Fixed: math.NaN(), Random: 1, Residual: 1},
	} {
		m, c := MarginalConditionalR2(&model.Fitted{Variance: v})
		assert.True(t, 0 <= m && m <= c && c <= 1, "%+v gives %g, %g", v, m, c)
	}
}

// quadraticProfiler has deviance minDev + ((v-est)/se)² scaled by left/right
// curvature, so exact intervals are known.
type quadraticProfiler struct {
	minDev      float64
	left, right float64
	calls       int
	err         error
}

func (p *quadraticProfiler) ProfileDeviance(_ context.Context, f *model.Fitted, term string, value float64) (float64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	c, _ := f.Coefficient(term)
	z := (value - c.Estimate) / c.StdError
	k := p.right
	if z < 0 {
		k = p.left
	}
	return p.minDev + k*z*z, nil
}

func fittedWithCoefficients() *model.Fitted {
	return &model.Fitted{
		SpecID: 2,
		LogLik: -100,
		Coefficients: []model.Coefficient{
			{Term: "(Intercept)", Estimate: 6, StdError: 0.1},
			{Term: "strength", Estimate: -0.08, StdError: 0.02},
		},
	}
}

func TestProfileConfidenceIntervals_Symmetric(t *testing.T) {
	f := fittedWithCoefficients()
	p := &quadraticProfiler{minDev: 200, left: 1, right: 1}

	intervals, err := ProfileConfidenceIntervals(context.Background(), p, f, 0.95)
	require.NoError(t, err)
	require.Len(t, intervals, 2)

	for i, c := range f.Coefficients {
		assert.Equal(t, c.Term, intervals[i].Term)
		assert.InDelta(t, c.Estimate-1.959964*c.StdError, intervals[i].Lower, 1e-3*c.StdError)
		assert.InDelta(t, c.Estimate+1.959964*c.StdError, intervals[i].Upper, 1e-3*c.StdError)
	}
	assert.LessOrEqual(t, p.calls, 2*2*4, "quadratic profiles need few refits")
}

func TestProfileConfidenceIntervals_Asymmetric(t *testing.T) {
	f := fittedWithCoefficients()
	p := &quadraticProfiler{minDev: 200, left: 4, right: 0.25}

	intervals, err := ProfileConfidenceIntervals(context.Background(), p, f, 0.95)
	require.NoError(t, err)
	s := intervals[1]
	assert.InDelta(t, -0.08-0.5*1.959964*0.02, s.Lower, 1e-4)
	assert.InDelta(t, -0.08+2*1.959964*0.02, s.Upper, 1e-4)
}

func TestProfileConfidenceIntervals_Errors(t *testing.T) {
	f := fittedWithCoefficients()
	boom := errors.New("boom")
	_, err := ProfileConfidenceIntervals(context.Background(), &quadraticProfiler{err: boom}, f, 0.95)
	assert.ErrorIs(t, err, boom)

	_, err = ProfileConfidenceIntervals(context.Background(), &quadraticProfiler{}, f, 1.5)
	assert.Error(t, err)

	failed := &model.Fitted{Flags: []model.Flag{model.FlagFitFailed}}
	_, err = ProfileConfidenceIntervals(context.Background(), &quadraticProfiler{}, failed, 0.95)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ProfileConfidenceIntervals(ctx, &quadraticProfiler{minDev: 200, left: 1, right: 1}, f, 0.95)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProfileConfidenceIntervals_FlatProfileIsUnbounded(t *testing.T) {
	f := fittedWithCoefficients()
	flat := &quadraticProfiler{minDev: 200, left: 1, right: 0}
	intervals, err := ProfileConfidenceIntervals(context.Background(), flat, f, 0.95)
	require.NoError(t, err)
	assert.True(t, math.IsInf(intervals[0].Upper, 1))
	assert.False(t, math.IsInf(intervals[0].Lower, 0))
}

func TestWaldIntervals(t *testing.T) {
	intervals := WaldIntervals(fittedWithCoefficients(), 0.95)
	assert.InDelta(t, 6-1.959964*0.1, intervals[0].Lower, 1e-5)
	assert.InDelta(t, 6+1.959964*0.1, intervals[0].Upper, 1e-5)
}

func TestReporter_Build(t *testing.T) {
	fitted := sequence(-300, -290, -289.5, -288, -280, -279.9, -279.5, -279)
	for _, f := range fitted {
		f.Coefficients = fittedWithCoefficients().Coefficients
	}
	reporter := NewReporter(DefaultOptions(), internal.NewNopLogger())

	report, err := reporter.Build(context.Background(), "logRT", fitted, &quadraticProfiler{minDev: 560, left: 1, right: 1})
	require.NoError(t, err)
	assert.Equal(t, "logRT", report.Response)
	assert.Equal(t, 384, report.NObs)
	assert.Len(t, report.Models, 8)
	assert.Len(t, report.Comparisons, 7)
	// 4->5 is the last significant step
	assert.Equal(t, 5, report.SelectedModel)
	require.NotNil(t, report.Selected)
	assert.Equal(t, 5, report.Selected.SpecID)
	assert.Len(t, report.Intervals, 2)
	assert.Equal(t, model.IntervalProfile, report.Method)
	for _, m := range report.Models {
		assert.True(t, 0 <= m.R2Marginal && m.R2Marginal <= m.R2Conditional && m.R2Conditional <= 1)
	}
}

func TestReporter_Build_WaldWhenProfilingDisabled(t *testing.T) {
	fitted := sequence(-300, -290)
	opts := DefaultOptions()
	opts.Profile = false
	p := &quadraticProfiler{}

	report, err := NewReporter(opts, internal.NewNopLogger()).Build(context.Background(), "logRT", fitted, p)
	require.NoError(t, err)
	assert.Equal(t, 0, p.calls)
	assert.Equal(t, model.IntervalWald, report.Method)
	assert.Equal(t, WaldIntervals(report.Selected, 0.95), report.Intervals)
}

func TestReporter_Build_WaldWhenProfilingFails(t *testing.T) {
	fitted := sequence(-300, -290)
	p := &quadraticProfiler{err: errors.New("refit diverged")}

	report, err := NewReporter(DefaultOptions(), internal.NewNopLogger()).Build(context.Background(), "logRT", fitted, p)
	require.NoError(t, err)
	assert.Positive(t, p.calls)
	assert.Equal(t, model.IntervalWald, report.Method)
	require.Len(t, report.Intervals, 1)
	assert.Equal(t, WaldIntervals(report.Selected, 0.95), report.Intervals)
	assert.InDelta(t, 6-1.959964*0.05, report.Intervals[0].Lower, 1e-5)
}

func TestReporter_Build_Degenerate(t *testing.T) {
	fitted := sequence(-300, -290)
	fitted[1].DF = 2
	_, err := NewReporter(DefaultOptions(), internal.NewNopLogger()).Build(context.Background(), "logRT", fitted, nil)
	assert.ErrorIs(t, err, core.ErrDegenerateComparison)
}
