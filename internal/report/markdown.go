// Package report renders analysis results as Markdown.
package report

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"govac/domain/model"
	"govac/domain/run"
	"govac/internal/descriptives"
)

// Comparison renders one response pipeline: the model table, the
// likelihood-ratio tests and the intervals of the selected model.
func Comparison(r *model.ComparisonReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.Response)
	fmt.Fprintf(&b, "%d observations.\n\n", r.NObs)

	b.WriteString("### Models\n\n")
	b.WriteString("| id | formula | df | logLik | AIC | BIC | R²m | R²c | flags |\n")
	b.WriteString("|---:|---|---:|---:|---:|---:|---:|---:|---|\n")
	for _, m := range r.Models {
		fmt.Fprintf(&b, "| %d | `%s` | %d | %s | %s | %s | %s | %s | %s |\n",
			m.SpecID, m.Formula, m.DF, num(m.LogLik, 2), num(m.AIC, 2), num(m.BIC, 2),
			num(m.R2Marginal, 3), num(m.R2Conditional, 3), flags(m.Flags))
	}

	b.WriteString("\n### Likelihood-ratio tests\n\n")
	b.WriteString("| models | χ² | Δdf | p | flags |\n")
	b.WriteString("|---|---:|---:|---:|---|\n")
	for _, c := range r.Comparisons {
		fmt.Fprintf(&b, "| %d vs %d | %s | %d | %s | %s |\n",
			c.From, c.To, num(c.Chisq, 3), c.DFDiff, pValue(c.PValue), flags(append(append([]model.Flag(nil), c.FromFlags...), c.ToFlags...)))
	}

	method := ""
	if r.Method != "" {
		method = r.Method + " "
	}
	fmt.Fprintf(&b, "\n### Model %d: %.0f%% %sconfidence intervals\n\n", r.SelectedModel, 100*r.Level, method)
	if len(r.Intervals) == 0 {
		b.WriteString("No intervals: the selected model was not fitted.\n")
		return b.String()
	}
	b.WriteString("| term | estimate | SE | t | lower | upper |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, iv := range r.Intervals {
		se, t := math.NaN(), math.NaN()
		if r.Selected != nil {
			if c, ok := r.Selected.Coefficient(iv.Term); ok {
				se, t = c.StdError, c.TValue()
			}
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			iv.Term, num(iv.Estimate, 4), num(se, 4), num(t, 2), num(iv.Lower, 4), num(iv.Upper, 4))
	}
	if r.Selected != nil && len(r.Selected.RandomEffects) > 0 {
		b.WriteString("\n| group | term | variance |\n")
		b.WriteString("|---|---|---:|\n")
		for _, re := range r.Selected.RandomEffects {
			for i, l := range re.Labels {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", re.Group, l, num(re.Variance(i), 5))
			}
		}
		fmt.Fprintf(&b, "| residual | | %s |\n", num(r.Selected.ResidualVariance, 5))
	}
	return b.String()
}

// Descriptives renders the cell summaries of one region.
func Descriptives(s *descriptives.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Region %d reading times\n\n", s.Region)
	b.WriteString("| strength | VAC | n | mean RT | SD RT | median RT | mean logRT | SD logRT |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---:|---:|\n")
	for _, c := range s.Cells {
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s | %s |\n",
			c.Strength, c.VAC, c.N, num(c.MeanRT, 1), num(c.SDRT, 1), num(c.MedianRT, 1), num(c.MeanLogRT, 3), num(c.SDLogRT, 3))
	}
	return b.String()
}

// Run is the rendered input to Document.
type Run struct {
	ID          string
	Fingerprint string
	Reports     []*model.ComparisonReport
	Failures    map[string]error
	Summary     *descriptives.Summary
}

// FromRecord rebuilds the render input of a persisted run. Descriptives
// are not persisted, so the summary is left empty.
func FromRecord(rec *run.Record) Run {
	out := Run{
		ID:          rec.Manifest.RunID.String(),
		Fingerprint: rec.Manifest.Fingerprint.DatasetHash.Short(),
		Reports:     rec.Reports,
	}
	if len(rec.Failures) > 0 {
		out.Failures = make(map[string]error, len(rec.Failures))
		for response, msg := range rec.Failures {
			out.Failures[response] = errors.New(msg)
		}
	}
	return out
}

// Document renders a whole analysis run.
func Document(run Run) string {
	var b strings.Builder
	b.WriteString("# Verb-argument construction reading times\n\n")
	fmt.Fprintf(&b, "Run `%s` on dataset `%s`.\n\n", run.ID, run.Fingerprint)
	if run.Summary != nil {
		b.WriteString(Descriptives(run.Summary))
		b.WriteString("\n")
	}
	for _, r := range run.Reports {
		b.WriteString(Comparison(r))
		b.WriteString("\n")
	}
	failed := make([]string, 0, len(run.Failures))
	for response := range run.Failures {
		failed = append(failed, response)
	}
	sort.Strings(failed)
	for _, response := range failed {
		fmt.Fprintf(&b, "## %s\n\nPipeline failed: %v\n\n", response, run.Failures[response])
	}
	return b.String()
}

func num(v float64, prec int) string {
	switch {
	case math.IsNaN(v):
		return "NA"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func pValue(p float64) string {
	if math.IsNaN(p) {
		return "NA"
	}
	if p < 1e-4 {
		return "< 0.0001"
	}
	return fmt.Sprintf("%.4f", p)
}

func flags(fs []model.Flag) string {
	if len(fs) == 0 {
		return ""
	}
	seen := make(map[model.Flag]bool, len(fs))
	var parts []string
	for _, f := range fs {
		if !seen[f] {
			seen[f] = true
			parts = append(parts, string(f))
		}
	}
	return strings.Join(parts, ", ")
}
