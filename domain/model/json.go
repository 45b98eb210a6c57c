package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// jsonFloat encodes the values encoding/json rejects: NaN as null and the
// infinities as the strings "Inf" and "-Inf". Unfitted models carry NaN
// statistics and unbounded profile intervals carry infinities.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte("null"), nil
	case math.IsInf(v, 1):
		return []byte(`"Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null":
		*f = jsonFloat(math.NaN())
		return nil
	case `"Inf"`:
		*f = jsonFloat(math.Inf(1))
		return nil
	case `"-Inf"`:
		*f = jsonFloat(math.Inf(-1))
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", b, err)
	}
	*f = jsonFloat(v)
	return nil
}

func (f *Fitted) MarshalJSON() ([]byte, error) {
	type plain Fitted
	return json.Marshal(struct {
		*plain
		LogLik jsonFloat `json:"log_lik"`
	}{(*plain)(f), jsonFloat(f.LogLik)})
}

func (f *Fitted) UnmarshalJSON(b []byte) error {
	type plain Fitted
	aux := struct {
		*plain
		LogLik jsonFloat `json:"log_lik"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	f.LogLik = float64(aux.LogLik)
	return nil
}

func (c Comparison) MarshalJSON() ([]byte, error) {
	type plain Comparison
	return json.Marshal(struct {
		plain
		Chisq   jsonFloat `json:"chisq"`
		RawDiff jsonFloat `json:"raw_diff"`
		PValue  jsonFloat `json:"p_value"`
	}{plain(c), jsonFloat(c.Chisq), jsonFloat(c.RawDiff), jsonFloat(c.PValue)})
}

func (c *Comparison) UnmarshalJSON(b []byte) error {
	type plain Comparison
	aux := struct {
		*plain
		Chisq   jsonFloat `json:"chisq"`
		RawDiff jsonFloat `json:"raw_diff"`
		PValue  jsonFloat `json:"p_value"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.Chisq, c.RawDiff, c.PValue = float64(aux.Chisq), float64(aux.RawDiff), float64(aux.PValue)
	return nil
}

func (m ModelSummary) MarshalJSON() ([]byte, error) {
	type plain ModelSummary
	return json.Marshal(struct {
		plain
		LogLik        jsonFloat `json:"log_lik"`
		AIC           jsonFloat `json:"aic"`
		BIC           jsonFloat `json:"bic"`
		R2Marginal    jsonFloat `json:"r2_marginal"`
		R2Conditional jsonFloat `json:"r2_conditional"`
	}{plain(m), jsonFloat(m.LogLik), jsonFloat(m.AIC), jsonFloat(m.BIC), jsonFloat(m.R2Marginal), jsonFloat(m.R2Conditional)})
}

func (m *ModelSummary) UnmarshalJSON(b []byte) error {
	type plain ModelSummary
	aux := struct {
		*plain
		LogLik        jsonFloat `json:"log_lik"`
		AIC           jsonFloat `json:"aic"`
		BIC           jsonFloat `json:"bic"`
		R2Marginal    jsonFloat `json:"r2_marginal"`
		R2Conditional jsonFloat `json:"r2_conditional"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	m.LogLik, m.AIC, m.BIC = float64(aux.LogLik), float64(aux.AIC), float64(aux.BIC)
	m.R2Marginal, m.R2Conditional = float64(aux.R2Marginal), float64(aux.R2Conditional)
	return nil
}

func (i Interval) MarshalJSON() ([]byte, error) {
	type plain Interval
	return json.Marshal(struct {
		plain
		Lower jsonFloat `json:"lower"`
		Upper jsonFloat `json:"upper"`
	}{plain(i), jsonFloat(i.Lower), jsonFloat(i.Upper)})
}

func (i *Interval) UnmarshalJSON(b []byte) error {
	type plain Interval
	aux := struct {
		*plain
		Lower jsonFloat `json:"lower"`
		Upper jsonFloat `json:"upper"`
	}{plain: (*plain)(i)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	i.Lower, i.Upper = float64(aux.Lower), float64(aux.Upper)
	return nil
}
