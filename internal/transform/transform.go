// Package transform derives log reading times, the strength contrast and the
// three aggregated response tables. Every function returns a new table and
// leaves its input untouched.
package transform

import (
	"fmt"
	"math"
	"sort"

	"govac/domain/core"
	"govac/domain/reading"
)

// Field names a recodable column.
type Field string

const FieldStrength Field = reading.ColStrength

// Contrast maps the labels of a two-level factor to numeric codes.
type Contrast map[string]float64

// StrengthContrast is the centered weak/strong coding.
var StrengthContrast = Contrast{
	string(reading.StrengthWeak):   -0.5,
	string(reading.StrengthStrong): 0.5,
}

// Validate checks that c is a two-level, zero-sum, one-to-one mapping.
func (c Contrast) Validate() error {
	if len(c) != 2 {
		return fmt.Errorf("contrast must have exactly two levels, got %d", len(c))
	}
	var sum float64
	codes := make(map[float64]bool, 2)
	for _, v := range c {
		sum += v
		codes[v] = true
	}
	if len(codes) != 2 {
		return fmt.Errorf("contrast codes must be distinct")
	}
	if math.Abs(sum) > 1e-12 {
		return fmt.Errorf("%w: codes sum to %g", core.ErrContrastImbalance, sum)
	}
	return nil
}

// LogTransform adds logRT = ln(RT_raw) to every observation.
func LogTransform(table *reading.Table) (*reading.TransformedTable, error) {
	out := make([]reading.Transformed, table.Len())
	for i := 0; i < table.Len(); i++ {
		o := table.Row(i)
		if !(o.RTRaw > 0) {
			return nil, fmt.Errorf("%w: ln(%v) for %s region %d", core.ErrDomain, o.RTRaw, o.Trial(), o.Region)
		}
		out[i] = reading.Transformed{Observation: o, LogRT: math.Log(o.RTRaw)}
	}
	return reading.NewTransformedTable(out, false), nil
}

// CodeContrast replaces the labels of field with their numeric codes.
func CodeContrast(table *reading.TransformedTable, field Field, mapping Contrast) (*reading.TransformedTable, error) {
	if field != FieldStrength {
		return nil, fmt.Errorf("%w: %q cannot be contrast coded", core.ErrSchema, field)
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	out := table.Rows()
	for i := range out {
		code, ok := mapping[string(out[i].Strength)]
		if !ok {
			return nil, core.NewUnknownLevelError(string(field), string(out[i].Strength))
		}
		out[i].StrengthCode = code
	}
	return reading.NewTransformedTable(out, true), nil
}

// ValidateContrastBalance checks that the strength codes sum to zero across
// trials, i.e. weak and strong trials are balanced.
func ValidateContrastBalance(table *reading.TransformedTable) error {
	if !table.Coded() {
		return fmt.Errorf("%w: strength contrast not applied", core.ErrContrastImbalance)
	}
	codes := make(map[reading.TrialKey]float64)
	for i := 0; i < table.Len(); i++ {
		r := table.Row(i)
		codes[r.Trial()] = r.StrengthCode
	}
	var sum float64
	for _, c := range codes {
		sum += c
	}
	if math.Abs(sum) > 1e-9 {
		return fmt.Errorf("%w: sum over %d trials is %g", core.ErrContrastImbalance, len(codes), sum)
	}
	return nil
}

// AggregateWhole sums logRT over all regions of each trial. Trials with
// missing regions are summed as they are; Regions records how many
// contributed.
func AggregateWhole(table *reading.TransformedTable) *reading.ResponseTable {
	return aggregate(reading.ResponseWhole, table, func(reading.Transformed) bool { return true })
}

// SelectRegion keeps the single region of every trial.
func SelectRegion(table *reading.TransformedTable, region int) (*reading.ResponseTable, error) {
	out := aggregate(reading.ResponseCritical, table, func(r reading.Transformed) bool { return r.Region == region })
	if out.Len() == 0 {
		return nil, fmt.Errorf("%w: no observations at region %d", core.ErrEmptyResult, region)
	}
	return out, nil
}

// AggregateRegions sums logRT over the given regions of each trial.
func AggregateRegions(table *reading.TransformedTable, regions []int) (*reading.ResponseTable, error) {
	set := make(map[int]bool, len(regions))
	for _, r := range regions {
		set[r] = true
	}
	out := aggregate(reading.ResponseConstruction, table, func(r reading.Transformed) bool { return set[r.Region] })
	if out.Len() == 0 {
		return nil, fmt.Errorf("%w: no observations in regions %v", core.ErrEmptyResult, regions)
	}
	return out, nil
}

// aggregate groups the kept rows by trial. Sums run in region order so the
// result does not depend on input row order.
func aggregate(response string, table *reading.TransformedTable, keep func(reading.Transformed) bool) *reading.ResponseTable {
	groups := make(map[reading.TrialKey][]reading.Transformed)
	for i := 0; i < table.Len(); i++ {
		r := table.Row(i)
		if keep(r) {
			groups[r.Trial()] = append(groups[r.Trial()], r)
		}
	}

	keys := make([]reading.TrialKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	rows := make([]reading.ResponseRow, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		sort.Slice(g, func(i, j int) bool { return g[i].Region < g[j].Region })
		var sum float64
		for _, r := range g {
			sum += r.LogRT
		}
		first := g[0]
		rows = append(rows, reading.ResponseRow{
			Subject:      k.Subject,
			Item:         k.Item,
			VAC:          first.VAC,
			EIT:          first.EIT,
			StrengthCode: first.StrengthCode,
			Response:     sum,
			Regions:      len(g),
		})
	}
	return reading.NewResponseTable(response, rows)
}
