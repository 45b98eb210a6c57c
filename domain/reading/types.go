package reading

import (
	"fmt"
	"sort"
	"strings"

	"govac/domain/core"
)

// StrengthLabel is the binarized verb-construction association strength.
type StrengthLabel string

const (
	StrengthWeak   StrengthLabel = "weak"
	StrengthStrong StrengthLabel = "strong"
)

// VACType is one of the four verb-argument construction categories.
type VACType string

const (
	VaN   VACType = "VaN"
	VconN VACType = "VconN"
	VdeN  VACType = "VdeN"
	VenN  VACType = "VenN"
)

// VACTypes lists the construction levels in treatment-coding order; the first
// entry is the reference level.
var VACTypes = []VACType{VaN, VconN, VdeN, VenN}

// ParseVACType validates a construction label.
func ParseVACType(s string) (VACType, bool) {
	for _, v := range VACTypes {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Column names of the input dataset.
const (
	ColSubject  = "subject"
	ColItem     = "item"
	ColRegion   = "region"
	ColStrength = "verb_strength"
	ColVAC      = "VAC.type"
	ColEIT      = "EIT_score"
	ColRTRaw    = "RT_raw"
)

// RequiredColumns is the input schema in canonical order.
var RequiredColumns = []string{ColSubject, ColItem, ColRegion, ColStrength, ColVAC, ColEIT, ColRTRaw}

// MinRegion and MaxRegion bound the region index of a sentence.
const (
	MinRegion = 1
	MaxRegion = 7
)

// Observation is one trial-region reading time.
type Observation struct {
	Subject  string        `json:"subject"`
	Item     string        `json:"item"`
	Region   int           `json:"region"`
	Strength StrengthLabel `json:"verb_strength"`
	VAC      VACType       `json:"vac_type"`
	EIT      float64       `json:"eit_score"`
	RTRaw    float64       `json:"rt_raw"`
}

// Trial returns the (subject, item) key of the observation.
func (o Observation) Trial() TrialKey {
	return TrialKey{Subject: o.Subject, Item: o.Item}
}

// TrialKey identifies one sentence read by one participant.
type TrialKey struct {
	Subject string
	Item    string
}

func (k TrialKey) String() string { return k.Subject + "/" + k.Item }

// Less orders trials by subject then item.
func (k TrialKey) Less(o TrialKey) bool {
	if k.Subject != o.Subject {
		return k.Subject < o.Subject
	}
	return k.Item < o.Item
}

// Table is the validated observation table produced by the loader.
// It is never mutated after construction.
type Table struct {
	rows []Observation
}

// NewTable copies rows into a new table.
func NewTable(rows []Observation) *Table {
	cp := make([]Observation, len(rows))
	copy(cp, rows)
	return &Table{rows: cp}
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Row(i int) Observation { return t.rows[i] }

// Rows returns a copy of the observations.
func (t *Table) Rows() []Observation {
	cp := make([]Observation, len(t.rows))
	copy(cp, t.rows)
	return cp
}

// Fingerprint hashes the table content in a row-order independent way.
func (t *Table) Fingerprint() core.Hash {
	lines := make([]string, len(t.rows))
	for i, r := range t.rows {
		lines[i] = fmt.Sprintf("%s|%s|%d|%s|%s|%g|%g", r.Subject, r.Item, r.Region, r.Strength, r.VAC, r.EIT, r.RTRaw)
	}
	sort.Strings(lines)
	return core.NewHash([]byte(strings.Join(lines, "\n")))
}

// Transformed is an observation with its log reading time and numeric
// strength contrast.
type Transformed struct {
	Observation
	LogRT        float64 `json:"log_rt"`
	StrengthCode float64 `json:"strength_code"`
}

// TransformedTable holds transformed observations. Coded reports whether the
// strength contrast has been applied.
type TransformedTable struct {
	rows  []Transformed
	coded bool
}

// NewTransformedTable copies rows into a new table.
func NewTransformedTable(rows []Transformed, coded bool) *TransformedTable {
	cp := make([]Transformed, len(rows))
	copy(cp, rows)
	return &TransformedTable{rows: cp, coded: coded}
}

func (t *TransformedTable) Len() int { return len(t.rows) }

func (t *TransformedTable) Row(i int) Transformed { return t.rows[i] }

func (t *TransformedTable) Coded() bool { return t.coded }

// Rows returns a copy of the transformed observations.
func (t *TransformedTable) Rows() []Transformed {
	cp := make([]Transformed, len(t.rows))
	copy(cp, t.rows)
	return cp
}
