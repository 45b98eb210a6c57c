// Package descriptives summarizes reading times per strength x construction
// cell at one region.
package descriptives

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"govac/domain/core"
	"govac/domain/reading"

	"github.com/montanaflynn/stats"
)

// Cell summarizes one strength x construction cell.
type Cell struct {
	Strength     reading.StrengthLabel `json:"strength"`
	StrengthCode float64               `json:"strength_code"`
	VAC          reading.VACType       `json:"vac"`
	N            int                   `json:"n"`
	MeanRT       float64               `json:"mean_rt"`
	SDRT         float64               `json:"sd_rt"`
	MedianRT     float64               `json:"median_rt"`
	MeanLogRT    float64               `json:"mean_log_rt"`
	SDLogRT      float64               `json:"sd_log_rt"`
}

// MarshalJSON writes the undefined SD of a single-trial cell as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	type plain Cell
	return json.Marshal(struct {
		plain
		SDRT    *float64 `json:"sd_rt"`
		SDLogRT *float64 `json:"sd_log_rt"`
	}{plain(c), finite(c.SDRT), finite(c.SDLogRT)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Summary holds every non-empty cell of one region.
type Summary struct {
	Region int    `json:"region"`
	Cells  []Cell `json:"cells"`
}

// Cell looks up the cell for a strength label and construction.
func (s *Summary) Cell(strength reading.StrengthLabel, vac reading.VACType) (Cell, bool) {
	for _, c := range s.Cells {
		if c.Strength == strength && c.VAC == vac {
			return c, true
		}
	}
	return Cell{}, false
}

type cellKey struct {
	code float64
	vac  reading.VACType
}

// Describe summarizes region of a contrast-coded table. Cells are keyed by the
// numeric strength code, so the labels reported are derived from the codes
// rather than read back from the raw column.
func Describe(table *reading.TransformedTable, region int) (*Summary, error) {
	if !table.Coded() {
		return nil, fmt.Errorf("%w: strength is not contrast coded", core.ErrUnknownLevel)
	}
	rt := make(map[cellKey][]float64)
	logRT := make(map[cellKey][]float64)
	for _, r := range table.Rows() {
		if r.Region != region {
			continue
		}
		k := cellKey{code: r.StrengthCode, vac: r.VAC}
		rt[k] = append(rt[k], r.RTRaw)
		logRT[k] = append(logRT[k], r.LogRT)
	}
	if len(rt) == 0 {
		return nil, fmt.Errorf("%w: no observations at region %d", core.ErrEmptyResult, region)
	}

	keys := make([]cellKey, 0, len(rt))
	for k := range rt {
		keys = append(keys, k)
	}
	vacOrder := make(map[reading.VACType]int, len(reading.VACTypes))
	for i, v := range reading.VACTypes {
		vacOrder[v] = i
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].code != keys[j].code {
			return keys[i].code < keys[j].code
		}
		return vacOrder[keys[i].vac] < vacOrder[keys[j].vac]
	})

	summary := &Summary{Region: region}
	for _, k := range keys {
		cell, err := describeCell(rt[k], logRT[k])
		if err != nil {
			return nil, fmt.Errorf("region %d %s: %w", region, k.vac, err)
		}
		cell.StrengthCode = k.code
		cell.Strength = labelFor(k.code)
		cell.VAC = k.vac
		summary.Cells = append(summary.Cells, cell)
	}
	return summary, nil
}

func labelFor(code float64) reading.StrengthLabel {
	if code < 0 {
		return reading.StrengthWeak
	}
	return reading.StrengthStrong
}

func describeCell(rt, logRT []float64) (Cell, error) {
	cell := Cell{N: len(rt)}
	var err error
	if cell.MeanRT, err = stats.Mean(rt); err != nil {
		return cell, err
	}
	if cell.MedianRT, err = stats.Median(rt); err != nil {
		return cell, err
	}
	if cell.MeanLogRT, err = stats.Mean(logRT); err != nil {
		return cell, err
	}
	cell.SDRT = sampleSD(rt)
	cell.SDLogRT = sampleSD(logRT)
	return cell, nil
}

// sampleSD is NaN for a single observation.
func sampleSD(data []float64) float64 {
	if len(data) < 2 {
		return math.NaN()
	}
	sd, err := stats.StandardDeviationSample(data)
	if err != nil {
		return math.NaN()
	}
	return sd
}
