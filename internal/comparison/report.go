package comparison

import (
	"context"
	"fmt"

	"govac/domain/model"
	"govac/internal"
)

// Options controls report assembly.
type Options struct {
	Alpha float64
	Level float64
	// ModelID pins the model whose intervals are reported; 0 selects one.
	ModelID int
	// Profile computes likelihood-profile intervals; otherwise Wald
	// intervals are reported.
	Profile bool
}

// DefaultOptions are α = 0.05 and 95% profile intervals.
func DefaultOptions() Options {
	return Options{Alpha: 0.05, Level: 0.95, Profile: true}
}

// Reporter assembles a ComparisonReport from one fitted sequence.
type Reporter struct {
	opts   Options
	logger *internal.Logger
}

// NewReporter creates a reporter.
func NewReporter(opts Options, logger *internal.Logger) *Reporter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Reporter{opts: opts, logger: logger.With("Comparison")}
}

// Summarize builds the per-model rows.
func Summarize(fitted []*model.Fitted) []model.ModelSummary {
	out := make([]model.ModelSummary, 0, len(fitted))
	for _, f := range fitted {
		r2m, r2c := MarginalConditionalR2(f)
		out = append(out, model.ModelSummary{
			SpecID:        f.SpecID,
			Formula:       f.Spec.Formula(),
			DF:            f.DF,
			LogLik:        f.LogLik,
			AIC:           f.AIC(),
			BIC:           f.BIC(),
			R2Marginal:    r2m,
			R2Conditional: r2c,
			Converged:     f.Converged,
			Flags:         append([]model.Flag(nil), f.Flags...),
		})
	}
	return out
}

// Build compares the sequence, selects a model and computes its intervals.
// Comparison failures are returned. When profiling fails the report carries
// Wald intervals and Method says so.
func (r *Reporter) Build(ctx context.Context, response string, fitted []*model.Fitted, profiler Profiler) (*model.ComparisonReport, error) {
	comparisons, err := CompareSequence(fitted)
	if err != nil {
		return nil, err
	}

	report := &model.ComparisonReport{
		Response:    response,
		Models:      Summarize(fitted),
		Comparisons: comparisons,
		Level:       r.opts.Level,
		Fitted:      fitted,
	}
	if len(fitted) > 0 {
		report.NObs = fitted[0].NObs
	}

	report.SelectedModel = SelectModel(comparisons, r.opts.Alpha, r.opts.ModelID)
	for _, f := range fitted {
		if f.SpecID == report.SelectedModel {
			report.Selected = f
		}
	}
	if report.Selected == nil {
		return nil, fmt.Errorf("selected model %d is not in the sequence", report.SelectedModel)
	}
	if report.Selected.HasFlag(model.FlagFitFailed) {
		r.logger.Warn("%s: selected model %d was not fitted, no intervals", response, report.SelectedModel)
		return report, nil
	}

	if !r.opts.Profile || profiler == nil {
		report.Method = model.IntervalWald
		report.Intervals = WaldIntervals(report.Selected, r.opts.Level)
		return report, nil
	}
	intervals, err := ProfileConfidenceIntervals(ctx, profiler, report.Selected, r.opts.Level)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("%s: profiling model %d failed, reporting Wald intervals: %v", response, report.SelectedModel, err)
		report.Method = model.IntervalWald
		report.Intervals = WaldIntervals(report.Selected, r.opts.Level)
		return report, nil
	}
	report.Method = model.IntervalProfile
	report.Intervals = intervals
	r.logger.Debug("%s: %d profile intervals for model %d", response, len(intervals), report.SelectedModel)
	return report, nil
}
