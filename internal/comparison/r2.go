package comparison

import (
	"math"

	"govac/domain/model"
)

// MarginalConditionalR2 is the Nakagawa-Schielzeth variance explained by the
// fixed effects alone and by fixed plus random effects. Random slopes
// contribute through their average variance over the observed covariates
// (Johnson's extension), which the engine folds into Variance.Random.
// Both values are NaN for a model that was not fitted.
func MarginalConditionalR2(fitted *model.Fitted) (marginal, conditional float64) {
	if fitted == nil || fitted.HasFlag(model.FlagFitFailed) {
		return math.NaN(), math.NaN()
	}
	v := fitted.Variance
	fixed := clampNonNegative(v.Fixed)
	random := clampNonNegative(v.Random)
	residual := clampNonNegative(v.Residual)
	total := fixed + random + residual
	if !(total > 0) || math.IsInf(total, 0) {
		return 0, 0
	}
	marginal = fixed / total
	conditional = (fixed + random) / total
	return clampUnit(marginal), clampUnit(math.Max(conditional, marginal))
}

func clampNonNegative(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	return x
}

func clampUnit(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}
