package model

import "math"

// Flag marks a fitted model as unreliable without discarding it.
type Flag string

const (
	FlagConvergence Flag = "ConvergenceWarning"
	FlagSingular    Flag = "SingularFitError"
	FlagFitFailed   Flag = "FitFailed"
)

// Coefficient is one fixed-effect estimate.
type Coefficient struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
}

// TValue is the Wald t statistic.
func (c Coefficient) TValue() float64 {
	if c.StdError == 0 {
		return math.NaN()
	}
	return c.Estimate / c.StdError
}

// RandomEffect is the estimated covariance block of one grouping factor.
type RandomEffect struct {
	Group      Group       `json:"group"`
	Labels     []string    `json:"labels"`
	Covariance [][]float64 `json:"covariance"`
}

// Variance of the i-th random coefficient.
func (r RandomEffect) Variance(i int) float64 { return r.Covariance[i][i] }

// Correlation between random coefficients i and j; NaN when either variance is zero.
func (r RandomEffect) Correlation(i, j int) float64 {
	d := math.Sqrt(r.Covariance[i][i] * r.Covariance[j][j])
	if d == 0 {
		return math.NaN()
	}
	return r.Covariance[i][j] / d
}

// VarianceDecomposition splits the response variance for R² computation.
type VarianceDecomposition struct {
	Fixed    float64 `json:"fixed"`
	Random   float64 `json:"random"`
	Residual float64 `json:"residual"`
}

// Fitted is a maximum-likelihood fit of one Spec. It is never mutated after
// the engine returns it.
type Fitted struct {
	SpecID           int                   `json:"spec_id"`
	Response         string                `json:"response"`
	Spec             Spec                  `json:"spec"`
	NObs             int                   `json:"n_obs"`
	Coefficients     []Coefficient         `json:"coefficients"`
	LogLik           float64               `json:"log_lik"`
	DF               int                   `json:"df"`
	Converged        bool                  `json:"converged"`
	Flags            []Flag                `json:"flags,omitempty"`
	Messages         []string              `json:"messages,omitempty"`
	RandomEffects    []RandomEffect        `json:"random_effects"`
	ResidualVariance float64               `json:"residual_variance"`
	Variance         VarianceDecomposition `json:"variance"`
	Theta            []float64             `json:"theta"`
	Evaluations      int                   `json:"evaluations"`
}

// HasFlag reports whether the model carries f.
func (f *Fitted) HasFlag(flag Flag) bool {
	for _, x := range f.Flags {
		if x == flag {
			return true
		}
	}
	return false
}

// Reliable is true when the fit carries no flags.
func (f *Fitted) Reliable() bool { return len(f.Flags) == 0 }

// Coefficient looks up a fixed effect by column label.
func (f *Fitted) Coefficient(term string) (Coefficient, bool) {
	for _, c := range f.Coefficients {
		if c.Term == term {
			return c, true
		}
	}
	return Coefficient{}, false
}

// AIC is -2 logLik + 2 df.
func (f *Fitted) AIC() float64 { return -2*f.LogLik + 2*float64(f.DF) }

// BIC is -2 logLik + df log(n).
func (f *Fitted) BIC() float64 { return -2*f.LogLik + float64(f.DF)*math.Log(float64(f.NObs)) }
