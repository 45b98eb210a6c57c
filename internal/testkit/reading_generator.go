// Package testkit generates synthetic self-paced reading datasets with known
// effects, for tests and demos.
package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"govac/adapters/excel"
	"govac/domain/reading"
)

// ReadingGeneratorConfig configures the synthetic experiment.
type ReadingGeneratorConfig struct {
	Subjects int   `json:"subjects"`
	Items    int   `json:"items"`
	Regions  int   `json:"regions"`
	Seed     int64 `json:"seed"`

	BaseLogRT      float64 `json:"base_log_rt"`
	StrengthEffect float64 `json:"strength_effect"` // per-region logRT shift, strong minus weak
	EITEffect      float64 `json:"eit_effect"`      // per EIT point
	SubjectSD      float64 `json:"subject_sd"`
	ItemSD         float64 `json:"item_sd"`
	SubjectSlopeSD float64 `json:"subject_slope_sd"`
	ResidualSD     float64 `json:"residual_sd"`
}

// DefaultReadingConfig returns a moderately sized balanced design.
func DefaultReadingConfig() ReadingGeneratorConfig {
	return ReadingGeneratorConfig{
		Subjects:       24,
		Items:          16,
		Regions:        reading.MaxRegion,
		Seed:           42,
		BaseLogRT:      6.0,
		StrengthEffect: -0.08,
		EITEffect:      -0.01,
		SubjectSD:      0.20,
		ItemSD:         0.08,
		SubjectSlopeSD: 0.03,
		ResidualSD:     0.15,
	}
}

// vacShift is the per-region logRT offset of each construction.
var vacShift = map[reading.VACType]float64{
	reading.VaN:   0,
	reading.VconN: 0.05,
	reading.VdeN:  -0.03,
	reading.VenN:  0.02,
}

// ReadingDataGenerator produces observations from a known mixed model.
type ReadingDataGenerator struct {
	config ReadingGeneratorConfig
	rng    *rand.Rand
}

// NewReadingDataGenerator creates a generator; output depends only on config.
func NewReadingDataGenerator(config ReadingGeneratorConfig) *ReadingDataGenerator {
	return &ReadingDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// SubjectID and ItemID format level names so they sort numerically.
func SubjectID(i int) string { return fmt.Sprintf("s%02d", i+1) }
func ItemID(i int) string    { return fmt.Sprintf("i%02d", i+1) }

// StrengthFor counterbalances strength across subjects and items.
func StrengthFor(subject, item int) reading.StrengthLabel {
	if (subject+item)%2 == 0 {
		return reading.StrengthWeak
	}
	return reading.StrengthStrong
}

// VACFor cycles items through the four constructions.
func VACFor(item int) reading.VACType {
	return reading.VACTypes[item%len(reading.VACTypes)]
}

// Observations generates every subject x item x region observation.
func (g *ReadingDataGenerator) Observations() []reading.Observation {
	c := g.config
	eit := make([]float64, c.Subjects)
	subjIntercept := make([]float64, c.Subjects)
	subjSlope := make([]float64, c.Subjects)
	for s := 0; s < c.Subjects; s++ {
		eit[s] = math.Round(20 + g.rng.Float64()*30)
		subjIntercept[s] = g.rng.NormFloat64() * c.SubjectSD
		subjSlope[s] = g.rng.NormFloat64() * c.SubjectSlopeSD
	}
	itemIntercept := make([]float64, c.Items)
	for i := 0; i < c.Items; i++ {
		itemIntercept[i] = g.rng.NormFloat64() * c.ItemSD
	}

	obs := make([]reading.Observation, 0, c.Subjects*c.Items*c.Regions)
	for s := 0; s < c.Subjects; s++ {
		for i := 0; i < c.Items; i++ {
			strength := StrengthFor(s, i)
			code := -0.5
			if strength == reading.StrengthStrong {
				code = 0.5
			}
			vac := VACFor(i)
			mu := c.BaseLogRT + subjIntercept[s] + itemIntercept[i] +
				(c.StrengthEffect+subjSlope[s])*code + c.EITEffect*(eit[s]-35) + vacShift[vac]
			for r := 1; r <= c.Regions; r++ {
				logRT := mu + g.rng.NormFloat64()*c.ResidualSD
				obs = append(obs, reading.Observation{
					Subject:  SubjectID(s),
					Item:     ItemID(i),
					Region:   r,
					Strength: strength,
					VAC:      vac,
					EIT:      eit[s],
					RTRaw:    math.Round(math.Exp(logRT)*10) / 10,
				})
			}
		}
	}
	return obs
}

// Table wraps Observations in a reading.Table.
func (g *ReadingDataGenerator) Table() *reading.Table {
	return reading.NewTable(g.Observations())
}

// ExcelData renders observations as raw rows, as the reader would return them.
func ExcelData(obs []reading.Observation) *excel.ExcelData {
	rows := make([]excel.RawRowData, len(obs))
	for i, o := range obs {
		rows[i] = excel.RawRowData{
			reading.ColSubject:  o.Subject,
			reading.ColItem:     o.Item,
			reading.ColRegion:   strconv.Itoa(o.Region),
			reading.ColStrength: string(o.Strength),
			reading.ColVAC:      string(o.VAC),
			reading.ColEIT:      strconv.FormatFloat(o.EIT, 'f', -1, 64),
			reading.ColRTRaw:    strconv.FormatFloat(o.RTRaw, 'f', -1, 64),
		}
	}
	return &excel.ExcelData{
		Headers: append([]string(nil), reading.RequiredColumns...),
		Rows:    rows,
		Source:  "testkit",
	}
}

// SmallBalanced is the 2 subjects x 2 items x 7 regions scenario with
// RT_raw in [200, 900] ms and two weak and two strong trials.
func SmallBalanced() []reading.Observation {
	var obs []reading.Observation
	for s := 0; s < 2; s++ {
		for i := 0; i < 2; i++ {
			for r := 1; r <= reading.MaxRegion; r++ {
				obs = append(obs, reading.Observation{
					Subject:  SubjectID(s),
					Item:     ItemID(i),
					Region:   r,
					Strength: StrengthFor(s, i),
					VAC:      VACFor(i),
					EIT:      float64(25 + 10*s),
					RTRaw:    float64(200 + 100*(r-1) + 7*s + 3*i),
				})
			}
		}
	}
	return obs
}
