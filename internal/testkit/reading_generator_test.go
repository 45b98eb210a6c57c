package testkit

import (
	"testing"

	"govac/domain/reading"

	"github.com/stretchr/testify/assert"
)

func TestReadingGenerator_Deterministic(t *testing.T) {
	cfg := DefaultReadingConfig()
	a := NewReadingDataGenerator(cfg).Observations()
	b := NewReadingDataGenerator(cfg).Observations()
	assert.Equal(t, a, b)
	assert.Len(t, a, cfg.Subjects*cfg.Items*cfg.Regions)
}

func TestReadingGenerator_Balanced(t *testing.T) {
	counts := map[reading.StrengthLabel]int{}
	for s := 0; s < 4; s++ {
		for i := 0; i < 8; i++ {
			counts[StrengthFor(s, i)]++
		}
	}
	assert.Equal(t, counts[reading.StrengthWeak], counts[reading.StrengthStrong])
}

func TestSmallBalanced_Ranges(t *testing.T) {
	obs := SmallBalanced()
	assert.Len(t, obs, 28)
	for _, o := range obs {
		assert.GreaterOrEqual(t, o.RTRaw, 200.0)
		assert.LessOrEqual(t, o.RTRaw, 900.0)
	}
	data := ExcelData(obs)
	assert.Len(t, data.Rows, 28)
	assert.Equal(t, "7", data.Rows[6][reading.ColRegion])
}
