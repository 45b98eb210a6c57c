// Package lmm fits linear mixed-effects models by maximum likelihood.
//
// The fixed effects and the residual variance are profiled out of the
// likelihood, leaving the deviance as a function of the relative covariance
// factor θ only, which Nelder-Mead minimizes from the identity. Fits are
// deterministic: the same spec on the same data always gives the same
// estimates.
package lmm

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"govac/domain/core"
	"govac/domain/model"
	"govac/domain/reading"
	"govac/internal"
	"govac/ports"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Options tunes the optimizer and the boundary checks.
type Options struct {
	MaxEvaluations    int
	SingularTolerance float64
	// CorrelationTolerance flags |r| >= 1 - tol as a boundary fit.
	CorrelationTolerance float64
	SimplexSize          float64
	// ConditionLimit rejects fixed designs with cond(XᵀX) above it.
	ConditionLimit float64
}

// DefaultOptions mirrors the usual lme4 tolerances.
func DefaultOptions() Options {
	return Options{
		MaxEvaluations:       20000,
		SingularTolerance:    1e-4,
		CorrelationTolerance: 1e-6,
		SimplexSize:          0.2,
		ConditionLimit:       1e12,
	}
}

// Engine fits model.Spec values to response tables.
type Engine struct {
	opts   Options
	logger *internal.Logger
}

var _ ports.FitterPort = (*Engine)(nil)

// NewEngine creates an engine.
func NewEngine(opts Options, logger *internal.Logger) *Engine {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Engine{opts: opts, logger: logger.With("LMM")}
}

type optimum struct {
	theta       []float64
	evaluations int
	converged   bool
	message     string
}

// minimize runs Nelder-Mead on the profiled deviance from start.
func (e *Engine) minimize(ctx context.Context, pr *problem, start []float64) optimum {
	f := func(theta []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		s := pr.evaluate(theta, false)
		if !s.ok {
			return math.Inf(1)
		}
		return s.deviance
	}

	settings := &optimize.Settings{
		FuncEvaluations: e.opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Relative:   1e-12,
			Iterations: 100 * len(start),
		},
		Concurrent: 1,
	}
	method := &optimize.NelderMead{SimplexSize: e.opts.SimplexSize}

	result, err := optimize.Minimize(optimize.Problem{Func: f}, append([]float64(nil), start...), settings, method)
	if result == nil {
		return optimum{theta: start, message: fmt.Sprintf("optimizer failed: %v", err)}
	}

	opt := optimum{
		theta:       pr.normalizeTheta(result.X),
		evaluations: result.Stats.FuncEvaluations,
		converged:   true,
	}
	switch {
	case err != nil:
		opt.converged = false
		opt.message = fmt.Sprintf("optimizer stopped: %v", err)
	case result.Status == optimize.Failure || result.Status.Early():
		opt.converged = false
		opt.message = fmt.Sprintf("optimizer stopped early: %v after %d evaluations", result.Status, opt.evaluations)
	case math.IsInf(result.F, 0) || math.IsNaN(result.F):
		opt.converged = false
		opt.message = "deviance is not finite at the optimum"
	}
	return opt
}

// Fit estimates spec on data. Numerical trouble never aborts the fit: it is
// reported through the flags of the returned model. An error is returned
// only for unusable input or a cancelled context.
func (e *Engine) Fit(ctx context.Context, spec model.Spec, data *reading.ResponseTable) (*model.Fitted, error) {
	start := time.Now()
	d, err := buildDesign(spec, data)
	if err != nil {
		return nil, err
	}

	fitted := &model.Fitted{
		SpecID:   spec.ID,
		Response: spec.Response,
		Spec:     spec,
		NObs:     d.n(),
		DF:       spec.DF(),
		LogLik:   math.NaN(),
	}

	pr := newProblem(d)
	if err := e.checkRank(pr); err != nil {
		fitted.Flags = append(fitted.Flags, model.FlagFitFailed)
		fitted.Messages = append(fitted.Messages, err.Error())
		e.logger.Warn("spec %d on %s not fitted: %v", spec.ID, spec.Response, err)
		return fitted, nil
	}

	opt := e.minimize(ctx, pr, pr.initialTheta())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fitted.Theta = opt.theta
	fitted.Evaluations = opt.evaluations
	fitted.Converged = opt.converged
	if !opt.converged {
		fitted.Flags = append(fitted.Flags, model.FlagConvergence)
		fitted.Messages = append(fitted.Messages, fmt.Sprintf("%v: %s", core.ErrConvergence, opt.message))
	}

	sol := pr.evaluate(opt.theta, true)
	if !sol.ok {
		fitted.Converged = false
		if !fitted.HasFlag(model.FlagConvergence) {
			fitted.Flags = append(fitted.Flags, model.FlagConvergence)
		}
		fitted.Flags = append(fitted.Flags, model.FlagFitFailed)
		fitted.Messages = append(fitted.Messages, "penalized least squares failed at the optimum")
		return fitted, nil
	}

	fitted.LogLik = -sol.deviance / 2
	fitted.ResidualVariance = sol.sigma2
	for i, col := range d.columns {
		fitted.Coefficients = append(fitted.Coefficients, model.Coefficient{
			Term:     col,
			Estimate: sol.beta[i],
			StdError: math.Sqrt(sol.sigma2 * sol.unscaledCov.At(i, i)),
		})
	}
	fitted.RandomEffects = randomEffects(pr, sol)

	if reason, singular := e.boundary(pr, opt.theta, fitted.RandomEffects); singular {
		fitted.Flags = append(fitted.Flags, model.FlagSingular)
		fitted.Messages = append(fitted.Messages, fmt.Sprintf("%v: %s", core.ErrSingularFit, reason))
	}
	fitted.Variance = decompose(d, sol, fitted.RandomEffects)

	e.logger.Debug("spec %d on %s: logLik=%.4f df=%d evals=%d flags=%v in %s",
		spec.ID, spec.Response, fitted.LogLik, fitted.DF, fitted.Evaluations, fitted.Flags, time.Since(start).Round(time.Millisecond))
	return fitted, nil
}

func (e *Engine) checkRank(pr *problem) error {
	if pr.p == 0 {
		return nil
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(pr.p, append([]float64(nil), pr.xtx...))); !ok {
		return fmt.Errorf("%w: XᵀX is not positive definite", core.ErrRankDeficient)
	}
	if c := chol.Cond(); c > e.opts.ConditionLimit {
		return fmt.Errorf("%w: condition number %.3g", core.ErrRankDeficient, c)
	}
	return nil
}

// boundary reports a relative standard deviation at zero or a correlation
// at ±1.
func (e *Engine) boundary(pr *problem, theta []float64, res []model.RandomEffect) (string, bool) {
	pos := 0
	for _, b := range pr.blocks {
		for k := 0; k < b.dim; k++ {
			for j := k; j < b.dim; j++ {
				if j == k && math.Abs(theta[pos]) < e.opts.SingularTolerance {
					return fmt.Sprintf("relative SD of %s %s is %.2g", b.term.Group, b.term.Labels()[k], theta[pos]), true
				}
				pos++
			}
		}
	}
	for _, re := range res {
		for i := range re.Labels {
			for j := i + 1; j < len(re.Labels); j++ {
				if r := re.Correlation(i, j); !math.IsNaN(r) && math.Abs(r) >= 1-e.opts.CorrelationTolerance {
					return fmt.Sprintf("correlation of %s %s and %s is %.6f", re.Group, re.Labels[i], re.Labels[j], r), true
				}
			}
		}
	}
	return "", false
}

// randomEffects converts the factors to covariance blocks σ² T Tᵀ.
func randomEffects(pr *problem, sol solution) []model.RandomEffect {
	out := make([]model.RandomEffect, len(pr.blocks))
	for bi, b := range pr.blocks {
		t := sol.factors[bi]
		cov := make([][]float64, b.dim)
		for i := 0; i < b.dim; i++ {
			cov[i] = make([]float64, b.dim)
			for j := 0; j < b.dim; j++ {
				var s float64
				for k := 0; k < b.dim; k++ {
					s += t[i][k] * t[j][k]
				}
				cov[i][j] = sol.sigma2 * s
			}
		}
		out[bi] = model.RandomEffect{Group: b.term.Group, Labels: b.term.Labels(), Covariance: cov}
	}
	return out
}

// decompose computes the fixed, random and residual variance used for R².
// The random part averages zᵢᵀ Σ zᵢ over observations, so random slopes are
// weighted by the covariate values they multiply.
func decompose(d *design, sol solution, res []model.RandomEffect) model.VarianceDecomposition {
	n := d.n()
	fitted := make([]float64, n)
	for i, row := range d.x {
		for j, v := range row {
			fitted[i] += v * sol.beta[j]
		}
	}
	var fixed float64
	if n > 1 {
		fixed = stat.Variance(fitted, nil)
	}
	var random float64
	for bi, re := range res {
		var sum float64
		for i := 0; i < n; i++ {
			z := d.z[i][bi].vals
			for a := range z {
				for b := range z {
					sum += z[a] * re.Covariance[a][b] * z[b]
				}
			}
		}
		random += sum / float64(n)
	}
	if math.IsNaN(fixed) || fixed < 0 {
		fixed = 0
	}
	return model.VarianceDecomposition{Fixed: fixed, Random: math.Max(random, 0), Residual: sol.sigma2}
}

// Profiler evaluates the likelihood profile of fixed coefficients for models
// fitted on one response table. It is safe for concurrent use.
type Profiler struct {
	engine *Engine
	data   *reading.ResponseTable

	mu      sync.Mutex
	designs map[int]*design
}

// Profiler binds the engine to the table the models were fitted on.
func (e *Engine) Profiler(data *reading.ResponseTable) ports.ProfilerPort {
	return &Profiler{engine: e, data: data, designs: make(map[int]*design)}
}

func (p *Profiler) design(spec model.Spec) (*design, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.designs[spec.ID]; ok {
		return d, nil
	}
	d, err := buildDesign(spec, p.data)
	if err != nil {
		return nil, err
	}
	p.designs[spec.ID] = d
	return d, nil
}

// ProfileDeviance is the minimum deviance over all other parameters with the
// coefficient of term held at value.
func (p *Profiler) ProfileDeviance(ctx context.Context, fitted *model.Fitted, term string, value float64) (float64, error) {
	d, err := p.design(fitted.Spec)
	if err != nil {
		return 0, err
	}
	j := -1
	for i, c := range d.columns {
		if c == term {
			j = i
			break
		}
	}
	if j < 0 {
		return 0, fmt.Errorf("%w: term %q in spec %d", core.ErrNotFound, term, fitted.SpecID)
	}

	pr := newProblem(d.withFixedColumn(j, value))
	start := fitted.Theta
	if len(start) != pr.thetaLen() {
		start = pr.initialTheta()
	}
	opt := p.engine.minimize(ctx, pr, start)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sol := pr.evaluate(opt.theta, false)
	if !sol.ok {
		return math.Inf(1), nil
	}
	return sol.deviance, nil
}
