package comparison

import (
	"context"
	"fmt"
	"math"

	"govac/domain/core"
	"govac/domain/model"

	"gonum.org/v1/gonum/stat/distuv"
)

// Profiler evaluates the profiled deviance of a fitted model with one fixed
// coefficient held at value and every other parameter re-estimated.
type Profiler interface {
	ProfileDeviance(ctx context.Context, fitted *model.Fitted, term string, value float64) (float64, error)
}

const (
	maxExpansions    = 12
	maxRootSteps     = 30
	zetaTolerance    = 1e-3
	widthTolerance   = 1e-6
	fallbackStepFrac = 0.1
)

// ProfileConfidenceIntervals computes likelihood-profile intervals for every
// fixed coefficient of fitted: the set of values whose profiled deviance
// exceeds the minimum by at most the level quantile of χ²(1).
//
// Each bound is a root of the signed square root of the deviance increase,
// which is close to linear in the coefficient, so a bracketed secant search
// started at the Wald bound usually needs a handful of refits. A bound the
// search cannot bracket is reported as ±Inf.
func ProfileConfidenceIntervals(ctx context.Context, profiler Profiler, fitted *model.Fitted, level float64) ([]model.Interval, error) {
	if fitted == nil || fitted.HasFlag(model.FlagFitFailed) {
		return nil, fmt.Errorf("%w: model was not fitted", core.ErrNotFound)
	}
	if !(level > 0 && level < 1) {
		return nil, fmt.Errorf("confidence level %g is outside (0, 1)", level)
	}
	cutoff := math.Sqrt(distuv.ChiSquared{K: 1}.Quantile(level))
	minDeviance := -2 * fitted.LogLik

	out := make([]model.Interval, 0, len(fitted.Coefficients))
	for _, c := range fitted.Coefficients {
		s := &boundSearch{
			profiler:    profiler,
			fitted:      fitted,
			coef:        c,
			minDeviance: minDeviance,
			cutoff:      cutoff,
		}
		lower, err := s.bound(ctx, -1)
		if err != nil {
			return nil, fmt.Errorf("profiling %s: %w", c.Term, err)
		}
		upper, err := s.bound(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("profiling %s: %w", c.Term, err)
		}
		out = append(out, model.Interval{Term: c.Term, Estimate: c.Estimate, Lower: lower, Upper: upper})
	}
	return out, nil
}

// WaldIntervals are the normal-approximation intervals estimate ± z·SE.
func WaldIntervals(fitted *model.Fitted, level float64) []model.Interval {
	z := distuv.UnitNormal.Quantile(1 - (1-level)/2)
	out := make([]model.Interval, 0, len(fitted.Coefficients))
	for _, c := range fitted.Coefficients {
		out = append(out, model.Interval{
			Term:     c.Term,
			Estimate: c.Estimate,
			Lower:    c.Estimate - z*c.StdError,
			Upper:    c.Estimate + z*c.StdError,
		})
	}
	return out
}

type boundSearch struct {
	profiler    Profiler
	fitted      *model.Fitted
	coef        model.Coefficient
	minDeviance float64
	cutoff      float64
}

// excess is |ζ(v)| - cutoff, where ζ is the signed root deviance.
func (s *boundSearch) excess(ctx context.Context, v float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dev, err := s.profiler.ProfileDeviance(ctx, s.fitted, s.coef.Term, v)
	if err != nil {
		return 0, err
	}
	if math.IsInf(dev, 1) {
		return math.Inf(1), nil
	}
	rise := dev - s.minDeviance
	if math.IsNaN(rise) {
		return 0, fmt.Errorf("profiled deviance is NaN at %g", v)
	}
	return math.Sqrt(math.Max(rise, 0)) - s.cutoff, nil
}

func (s *boundSearch) step() float64 {
	se := s.coef.StdError
	if se > 0 && !math.IsInf(se, 0) {
		return s.cutoff * se
	}
	return fallbackStepFrac * math.Max(math.Abs(s.coef.Estimate), 1)
}

// bound searches in direction dir (-1 lower, +1 upper).
func (s *boundSearch) bound(ctx context.Context, dir float64) (float64, error) {
	est := s.coef.Estimate
	lo, hlo := est, -s.cutoff
	step := s.step()

	hi := est + dir*step
	hhi, err := s.excess(ctx, hi)
	if err != nil {
		return 0, err
	}
	for i := 0; hhi < 0; i++ {
		if i == maxExpansions {
			return dir * math.Inf(1), nil
		}
		lo, hlo = hi, hhi
		step *= 2
		hi = est + dir*step
		if hhi, err = s.excess(ctx, hi); err != nil {
			return 0, err
		}
	}
	if math.Abs(hhi) < zetaTolerance {
		return hi, nil
	}

	// Illinois variant of false position on a bracket [lo, hi] with
	// excess(lo) < 0 < excess(hi).
	side := 0
	for i := 0; i < maxRootSteps; i++ {
		var v float64
		if math.IsInf(hhi, 1) {
			v = (lo + hi) / 2
		} else {
			v = lo - hlo*(hi-lo)/(hhi-hlo)
		}
		if !(math.Min(lo, hi) < v && v < math.Max(lo, hi)) {
			v = (lo + hi) / 2
		}
		h, err := s.excess(ctx, v)
		if err != nil {
			return 0, err
		}
		if math.Abs(h) < zetaTolerance || math.Abs(hi-lo) < widthTolerance*math.Max(1, math.Abs(est)) {
			return v, nil
		}
		if h < 0 {
			lo, hlo = v, h
			if side == -1 && !math.IsInf(hhi, 1) {
				hhi /= 2
			}
			side = -1
		} else {
			hi, hhi = v, h
			if side == 1 {
				hlo /= 2
			}
			side = 1
		}
	}
	return (lo + hi) / 2, nil
}
