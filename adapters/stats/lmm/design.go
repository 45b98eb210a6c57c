package lmm

import (
	"fmt"

	"govac/domain/core"
	"govac/domain/model"
	"govac/domain/reading"
)

// reBlock is one random-effects term laid out in the random-effects vector:
// levels*dim consecutive coefficients starting at offset, level-major.
type reBlock struct {
	term   model.RandomTerm
	levels []string
	dim    int
	offset int
}

func (b reBlock) size() int { return len(b.levels) * b.dim }

// zEntry is the nonzero part of one row of Z for one block.
type zEntry struct {
	col  int       // first column of the level
	vals []float64 // dim covariate values (1, slopes...)
}

// design is the numeric form of a Spec applied to a response table.
type design struct {
	columns []string
	y       []float64
	x       [][]float64 // n x p
	z       [][]zEntry  // n x blocks
	blocks  []reBlock
	q       int
}

func (d *design) n() int { return len(d.y) }
func (d *design) p() int { return len(d.columns) }

// predictorValues returns the row's values in Predictor.Columns order.
func predictorValues(p model.Predictor, r reading.ResponseRow) ([]float64, error) {
	switch p {
	case model.PredStrength:
		return []float64{r.StrengthCode}, nil
	case model.PredProficiency:
		return []float64{r.EIT}, nil
	case model.PredConstruction:
		vals := make([]float64, len(reading.VACTypes)-1)
		for i, v := range reading.VACTypes[1:] {
			if r.VAC == v {
				vals[i] = 1
			}
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("unknown predictor %q", p)
	}
}

// termValues expands a term for one row, in Term.Columns order.
func termValues(t model.Term, r reading.ResponseRow) ([]float64, error) {
	vals := []float64{1}
	for _, p := range t.Predictors() {
		pv, err := predictorValues(p, r)
		if err != nil {
			return nil, err
		}
		next := make([]float64, 0, len(vals)*len(pv))
		for _, v := range vals {
			for _, c := range pv {
				next = append(next, v*c)
			}
		}
		vals = next
	}
	return vals, nil
}

func buildDesign(spec model.Spec, data *reading.ResponseTable) (*design, error) {
	if data.Len() == 0 {
		return nil, fmt.Errorf("%w: response table %s has no rows", core.ErrEmptyResult, data.Response())
	}
	subjects, items := data.Levels()

	d := &design{columns: spec.FixedColumns()}
	for _, rt := range spec.Random {
		for _, s := range rt.Slopes {
			if len(s.Columns()) != 1 {
				return nil, fmt.Errorf("random slope on %q is not supported", s)
			}
		}
		var levels []string
		switch rt.Group {
		case model.GroupSubject:
			levels = subjects
		case model.GroupItem:
			levels = items
		default:
			return nil, fmt.Errorf("unknown grouping factor %q", rt.Group)
		}
		b := reBlock{term: rt, levels: levels, dim: rt.Dim(), offset: d.q}
		d.blocks = append(d.blocks, b)
		d.q += b.size()
	}

	index := make([]map[string]int, len(d.blocks))
	for bi, b := range d.blocks {
		index[bi] = make(map[string]int, len(b.levels))
		for li, l := range b.levels {
			index[bi][l] = li
		}
	}

	n := data.Len()
	d.y = make([]float64, n)
	d.x = make([][]float64, n)
	d.z = make([][]zEntry, n)
	for i := 0; i < n; i++ {
		r := data.Row(i)
		d.y[i] = r.Response

		row := make([]float64, 0, len(d.columns))
		for _, t := range spec.Fixed {
			vals, err := termValues(t, r)
			if err != nil {
				return nil, err
			}
			row = append(row, vals...)
		}
		d.x[i] = row

		entries := make([]zEntry, len(d.blocks))
		for bi, b := range d.blocks {
			key := r.Subject
			if b.term.Group == model.GroupItem {
				key = r.Item
			}
			vals := make([]float64, 0, b.dim)
			vals = append(vals, 1)
			for _, s := range b.term.Slopes {
				pv, err := predictorValues(s, r)
				if err != nil {
					return nil, err
				}
				vals = append(vals, pv...)
			}
			entries[bi] = zEntry{col: b.offset + index[bi][key]*b.dim, vals: vals}
		}
		d.z[i] = entries
	}
	return d, nil
}

// withFixedColumn returns a design in which column j is held at value:
// its contribution moves into the response and the column is dropped.
func (d *design) withFixedColumn(j int, value float64) *design {
	out := &design{blocks: d.blocks, z: d.z, q: d.q}
	out.columns = append(append([]string(nil), d.columns[:j]...), d.columns[j+1:]...)
	out.y = make([]float64, len(d.y))
	out.x = make([][]float64, len(d.x))
	for i := range d.y {
		out.y[i] = d.y[i] - value*d.x[i][j]
		row := make([]float64, 0, len(d.columns)-1)
		row = append(row, d.x[i][:j]...)
		row = append(row, d.x[i][j+1:]...)
		out.x[i] = row
	}
	return out
}
