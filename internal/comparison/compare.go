// Package comparison turns a fitted model sequence into a report:
// likelihood-ratio tests between consecutive models, variance explained and
// profile confidence intervals for the selected model.
package comparison

import (
	"fmt"
	"math"

	"govac/domain/core"
	"govac/domain/model"

	"gonum.org/v1/gonum/stat/distuv"
)

// CompareSequence tests each model against its predecessor. The statistic is
// 2(ll(k+1) - ll(k)) clamped at zero; the unclamped value is kept in RawDiff.
// A model that could not be fitted yields NaN statistics but does not stop
// the remaining comparisons.
func CompareSequence(fitted []*model.Fitted) ([]model.Comparison, error) {
	if len(fitted) < 2 {
		return nil, fmt.Errorf("%w: need at least two models, got %d", core.ErrDegenerateComparison, len(fitted))
	}
	out := make([]model.Comparison, 0, len(fitted)-1)
	for k := 0; k+1 < len(fitted); k++ {
		from, to := fitted[k], fitted[k+1]
		if from == nil || to == nil {
			return nil, fmt.Errorf("%w: missing model at position %d", core.ErrDegenerateComparison, k+1)
		}
		dfDiff := to.DF - from.DF
		if dfDiff <= 0 {
			return nil, fmt.Errorf("%w: model %d has df %d, not above model %d with df %d",
				core.ErrDegenerateComparison, to.SpecID, to.DF, from.SpecID, from.DF)
		}
		raw := 2 * (to.LogLik - from.LogLik)
		c := model.Comparison{
			From:      from.SpecID,
			To:        to.SpecID,
			Chisq:     math.Max(raw, 0),
			RawDiff:   raw,
			DFDiff:    dfDiff,
			PValue:    math.NaN(),
			FromFlags: append([]model.Flag(nil), from.Flags...),
			ToFlags:   append([]model.Flag(nil), to.Flags...),
		}
		if math.IsNaN(raw) {
			c.Chisq = math.NaN()
		} else {
			c.PValue = distuv.ChiSquared{K: float64(dfDiff)}.Survival(c.Chisq)
		}
		out = append(out, c)
	}
	return out, nil
}

// SelectModel picks the model whose intervals are reported. A configured id
// wins; otherwise it is the richest model that improves significantly on its
// predecessor at alpha and was fitted, or the first model when none does.
func SelectModel(comparisons []model.Comparison, alpha float64, configured int) int {
	if configured > 0 {
		return configured
	}
	selected := 1
	if len(comparisons) > 0 {
		selected = comparisons[0].From
	}
	for _, c := range comparisons {
		if hasFlag(c.ToFlags, model.FlagFitFailed) || math.IsNaN(c.PValue) {
			continue
		}
		if c.PValue < alpha {
			selected = c.To
		}
	}
	return selected
}

func hasFlag(flags []model.Flag, flag model.Flag) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
