// Package ingest validates the raw self-paced reading dataset into an
// observation table. A single invalid row fails the whole load; rows are
// never dropped or coerced.
package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"govac/adapters/excel"
	"govac/domain/core"
	"govac/domain/reading"
	"govac/internal"
)

// Source yields raw tabular data.
type Source interface {
	ReadData(ctx context.Context) (*excel.ExcelData, error)
}

// Loader reads and validates the dataset.
type Loader struct {
	logger *internal.Logger
}

// NewLoader creates a loader.
func NewLoader(logger *internal.Logger) *Loader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Loader{logger: logger.With("Loader")}
}

// Load reads src and validates it.
func (l *Loader) Load(ctx context.Context, src Source) (*reading.Table, error) {
	data, err := src.ReadData(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	table, err := Validate(data)
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded %d observations from %s (fingerprint %s)", table.Len(), data.Source, table.Fingerprint().Short())
	return table, nil
}

type trialAttrs struct {
	strength reading.StrengthLabel
	vac      reading.VACType
	eit      float64
}

type rowKey struct {
	trial  reading.TrialKey
	region int
}

// Validate converts raw rows into observations. Row numbers in errors are
// 1-based data rows (the header is not counted).
func Validate(data *excel.ExcelData) (*reading.Table, error) {
	for _, col := range reading.RequiredColumns {
		if !data.HasColumn(col) {
			return nil, core.NewSchemaError(col)
		}
	}

	obs := make([]reading.Observation, 0, len(data.Rows))
	seen := make(map[rowKey]bool, len(data.Rows))
	trials := make(map[reading.TrialKey]trialAttrs)

	for i, raw := range data.Rows {
		row := i + 1
		o, err := parseRow(row, raw)
		if err != nil {
			return nil, err
		}

		key := rowKey{trial: o.Trial(), region: o.Region}
		if seen[key] {
			return nil, core.NewConstraintError(row, fmt.Sprintf("duplicate (subject, item, region) = (%s, %s, %d)", o.Subject, o.Item, o.Region))
		}
		seen[key] = true

		attrs := trialAttrs{strength: o.Strength, vac: o.VAC, eit: o.EIT}
		if prev, ok := trials[o.Trial()]; ok && prev != attrs {
			return nil, core.NewConstraintError(row, fmt.Sprintf("trial %s has inconsistent verb_strength, VAC.type or EIT_score across regions", o.Trial()))
		}
		trials[o.Trial()] = attrs

		obs = append(obs, o)
	}

	return reading.NewTable(obs), nil
}

func parseRow(row int, raw excel.RawRowData) (reading.Observation, error) {
	var o reading.Observation

	o.Subject = raw[reading.ColSubject]
	o.Item = raw[reading.ColItem]
	if o.Subject == "" || o.Item == "" {
		return o, core.NewConstraintError(row, "subject and item must be non-empty")
	}

	region, err := parseNumber(row, reading.ColRegion, raw[reading.ColRegion])
	if err != nil {
		return o, err
	}
	if region != math.Trunc(region) || region < reading.MinRegion || region > reading.MaxRegion {
		return o, core.NewConstraintError(row, fmt.Sprintf("region %v outside %d..%d", region, reading.MinRegion, reading.MaxRegion))
	}
	o.Region = int(region)

	o.Strength = reading.StrengthLabel(raw[reading.ColStrength])

	vac, ok := reading.ParseVACType(raw[reading.ColVAC])
	if !ok {
		return o, core.NewConstraintError(row, fmt.Sprintf("unknown VAC.type %q", raw[reading.ColVAC]))
	}
	o.VAC = vac

	if o.EIT, err = parseNumber(row, reading.ColEIT, raw[reading.ColEIT]); err != nil {
		return o, err
	}
	if o.RTRaw, err = parseNumber(row, reading.ColRTRaw, raw[reading.ColRTRaw]); err != nil {
		return o, err
	}
	if o.RTRaw <= 0 {
		return o, core.NewConstraintError(row, fmt.Sprintf("RT_raw must be positive, got %v", o.RTRaw))
	}
	return o, nil
}

func parseNumber(row int, col, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, core.NewTypeError(row, col, s)
	}
	return v, nil
}
