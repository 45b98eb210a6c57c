package model

// Comparison is the likelihood-ratio test between consecutive models.
// RawDiff is 2*(logLik(to) - logLik(from)) before Chisq clamps it at zero.
type Comparison struct {
	From      int     `json:"from"`
	To        int     `json:"to"`
	Chisq     float64 `json:"chisq"`
	RawDiff   float64 `json:"raw_diff"`
	DFDiff    int     `json:"df_diff"`
	PValue    float64 `json:"p_value"`
	FromFlags []Flag  `json:"from_flags,omitempty"`
	ToFlags   []Flag  `json:"to_flags,omitempty"`
}

// Flagged reports whether either side of the comparison is unreliable.
func (c Comparison) Flagged() bool { return len(c.FromFlags) > 0 || len(c.ToFlags) > 0 }

// ModelSummary is the per-model row of a report.
type ModelSummary struct {
	SpecID        int     `json:"spec_id"`
	Formula       string  `json:"formula"`
	DF            int     `json:"df"`
	LogLik        float64 `json:"log_lik"`
	AIC           float64 `json:"aic"`
	BIC           float64 `json:"bic"`
	R2Marginal    float64 `json:"r2_marginal"`
	R2Conditional float64 `json:"r2_conditional"`
	Converged     bool    `json:"converged"`
	Flags         []Flag  `json:"flags,omitempty"`
}

// HasFlag reports whether the summarized model carries flag.
func (m ModelSummary) HasFlag(flag Flag) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Interval is a confidence interval for one fixed coefficient.
type Interval struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// Interval methods.
const (
	IntervalProfile = "profile"
	IntervalWald    = "wald"
)

// ComparisonReport is the full output of one response-variable pipeline.
// SelectedModel is the spec id whose intervals are reported and Method says
// how they were computed; Method is empty when there are no intervals.
type ComparisonReport struct {
	Response      string         `json:"response"`
	NObs          int            `json:"n_obs"`
	Models        []ModelSummary `json:"models"`
	Comparisons   []Comparison   `json:"comparisons"`
	SelectedModel int            `json:"selected_model"`
	Level         float64        `json:"level"`
	Method        string         `json:"method,omitempty"`
	Intervals     []Interval     `json:"intervals,omitempty"`
	Selected      *Fitted        `json:"selected,omitempty"`
	Fitted        []*Fitted      `json:"-"`
}

// Model returns the summary for spec id.
func (r *ComparisonReport) Model(id int) (ModelSummary, bool) {
	for _, m := range r.Models {
		if m.SpecID == id {
			return m, true
		}
	}
	return ModelSummary{}, false
}

// FlaggedModels lists the spec ids carrying any flag.
func (r *ComparisonReport) FlaggedModels() []int {
	var ids []int
	for _, m := range r.Models {
		if len(m.Flags) > 0 {
			ids = append(ids, m.SpecID)
		}
	}
	return ids
}
