package model

import (
	"fmt"
	"strings"

	"govac/domain/reading"
)

// Predictor is a population-level explanatory variable.
type Predictor string

const (
	PredStrength     Predictor = "strength"
	PredProficiency  Predictor = "EIT"
	PredConstruction Predictor = "VAC"
)

// Columns returns the design-matrix column labels the predictor expands to.
// The construction factor uses treatment coding against reading.VACTypes[0].
func (p Predictor) Columns() []string {
	if p == PredConstruction {
		cols := make([]string, 0, len(reading.VACTypes)-1)
		for _, v := range reading.VACTypes[1:] {
			cols = append(cols, string(p)+string(v))
		}
		return cols
	}
	return []string{string(p)}
}

// Term is a fixed-effect term: the intercept, a main effect, or an
// interaction written with ':' separators.
type Term string

const TermIntercept Term = "(Intercept)"

// Interaction joins predictors into one interaction term.
func Interaction(preds ...Predictor) Term {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = string(p)
	}
	return Term(strings.Join(parts, ":"))
}

// Predictors splits the term into its predictors; nil for the intercept.
func (t Term) Predictors() []Predictor {
	if t == TermIntercept {
		return nil
	}
	parts := strings.Split(string(t), ":")
	out := make([]Predictor, len(parts))
	for i, p := range parts {
		out[i] = Predictor(p)
	}
	return out
}

// Columns expands the term to design-matrix column labels.
func (t Term) Columns() []string {
	if t == TermIntercept {
		return []string{string(TermIntercept)}
	}
	cols := []string{""}
	for _, p := range t.Predictors() {
		var next []string
		for _, prefix := range cols {
			for _, c := range p.Columns() {
				if prefix == "" {
					next = append(next, c)
				} else {
					next = append(next, prefix+":"+c)
				}
			}
		}
		cols = next
	}
	return cols
}

// Group is a random-effects grouping factor.
type Group string

const (
	GroupSubject Group = "subject"
	GroupItem    Group = "item"
)

// RandomTerm is a random intercept for Group, optionally with correlated
// random slopes.
type RandomTerm struct {
	Group  Group       `json:"group"`
	Slopes []Predictor `json:"slopes,omitempty"`
}

// Dim is the number of random coefficients per level.
func (r RandomTerm) Dim() int { return 1 + len(r.Slopes) }

// CovarianceParams is the number of free parameters of the unstructured
// covariance block.
func (r RandomTerm) CovarianceParams() int {
	d := r.Dim()
	return d * (d + 1) / 2
}

// Labels names the random coefficients in order.
func (r RandomTerm) Labels() []string {
	out := []string{string(TermIntercept)}
	for _, s := range r.Slopes {
		out = append(out, string(s))
	}
	return out
}

func (r RandomTerm) String() string {
	lhs := "1"
	for _, s := range r.Slopes {
		lhs += " + " + string(s)
	}
	return fmt.Sprintf("(%s | %s)", lhs, r.Group)
}

// Spec is an immutable model specification.
type Spec struct {
	ID       int          `json:"id"`
	Response string       `json:"response"`
	Fixed    []Term       `json:"fixed"`
	Random   []RandomTerm `json:"random"`
}

// FixedColumns returns the design-matrix column labels in order.
func (s Spec) FixedColumns() []string {
	var cols []string
	for _, t := range s.Fixed {
		cols = append(cols, t.Columns()...)
	}
	return cols
}

// CovarianceParams counts the random-effects covariance parameters.
func (s Spec) CovarianceParams() int {
	n := 0
	for _, r := range s.Random {
		n += r.CovarianceParams()
	}
	return n
}

// DF is the number of estimated parameters: fixed coefficients, covariance
// parameters and the residual variance.
func (s Spec) DF() int {
	return len(s.FixedColumns()) + s.CovarianceParams() + 1
}

// Formula renders the spec in the usual mixed-model notation.
func (s Spec) Formula() string {
	rhs := make([]string, 0, len(s.Fixed)+len(s.Random))
	for _, t := range s.Fixed {
		if t == TermIntercept {
			rhs = append(rhs, "1")
			continue
		}
		rhs = append(rhs, string(t))
	}
	for _, r := range s.Random {
		rhs = append(rhs, r.String())
	}
	return s.Response + " ~ " + strings.Join(rhs, " + ")
}
