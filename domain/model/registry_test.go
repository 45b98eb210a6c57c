package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSequence_Shape(t *testing.T) {
	seq := BuildSequence("logRT_whole")
	require.Len(t, seq, SequenceLength)

	for i, s := range seq {
		assert.Equal(t, i+1, s.ID)
		assert.Equal(t, "logRT_whole", s.Response)
	}

	assert.Equal(t, []string{"(Intercept)"}, seq[0].FixedColumns())
	assert.Equal(t, []string{"(Intercept)", "strength", "EIT", "VACVconN", "VACVdeN", "VACVenN"}, seq[3].FixedColumns())
	assert.Len(t, seq[7].FixedColumns(), 16)
	assert.Contains(t, seq[7].FixedColumns(), "strength:EIT:VACVenN")
}

func TestBuildSequence_DegreesOfFreedomIncrease(t *testing.T) {
	seq := BuildSequence("VAC_RT")
	want := []int{3, 4, 5, 8, 9, 11, 13, 23}
	for i, s := range seq {
		assert.Equal(t, want[i], s.DF(), "spec %d", s.ID)
		if i > 0 {
			assert.Greater(t, s.DF(), seq[i-1].DF())
		}
	}
}

func TestBuildSequence_IdenticalAcrossResponses(t *testing.T) {
	a := BuildSequence("logRT_whole")
	b := BuildSequence("logRT")
	for i := range a {
		assert.Equal(t, a[i].Fixed, b[i].Fixed)
		assert.Equal(t, a[i].Random, b[i].Random)
		assert.NotEqual(t, a[i].Response, b[i].Response)
	}
}

func TestBuildSequence_ReturnsIndependentCopies(t *testing.T) {
	a := BuildSequence("x")
	a[3].Fixed[1] = "mutated"
	b := BuildSequence("x")
	assert.Equal(t, Term(PredStrength), b[3].Fixed[1])
	assert.Equal(t, Term(PredStrength), a[4].Fixed[1])
}

func TestSpecFormula(t *testing.T) {
	seq := BuildSequence("VAC_RT")
	assert.Equal(t, "VAC_RT ~ 1 + (1 | subject)", seq[0].Formula())
	assert.Equal(t, "VAC_RT ~ 1 + strength + EIT + VAC + (1 + strength | subject) + (1 | item)", seq[5].Formula())
}

func TestTermColumns(t *testing.T) {
	assert.Equal(t, []string{"strength:VACVconN", "strength:VACVdeN", "strength:VACVenN"},
		Interaction(PredStrength, PredConstruction).Columns())
	assert.Nil(t, TermIntercept.Predictors())
}
