package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairAccuracyUpdateCompute(t *testing.T) {
	var m PairAccuracy
	require.NoError(t, m.Update([]float32{0.1, 0.9}, []float32{0.5, 0.5}))

	state := m.State()
	assert.Equal(t, int64(1), state.Correct)
	assert.Equal(t, int64(2), state.Total)

	acc, err := m.Compute()
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc)
}

func TestPairAccuracyEqualScoresNotCorrect(t *testing.T) {
	var m PairAccuracy
	require.NoError(t, m.Update([]float32{0.5}, []float32{0.5}))

	acc, err := m.Compute()
	require.NoError(t, err)
	assert.Zero(t, acc)
}

func TestPairAccuracySizeMismatch(t *testing.T) {
	var m PairAccuracy
	err := m.Update([]float32{0.1}, []float32{0.5, 0.5})
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = m.Compute()
	assert.ErrorIs(t, err, ErrNoObservations)
}

func TestPairAccuracyMerge(t *testing.T) {
	// two workers report (1,2) and (2,2); reduction sums the states
	var m PairAccuracy
	m.Merge(MetricState{Correct: 1, Total: 2}, MetricState{Correct: 2, Total: 2})

	acc, err := m.Compute()
	require.NoError(t, err)
	assert.Equal(t, 0.75, acc)
}

func TestPairAccuracyReset(t *testing.T) {
	var m PairAccuracy
	require.NoError(t, m.Update([]float32{0.1}, []float32{0.5}))
	m.Reset()

	_, err := m.Compute()
	assert.ErrorIs(t, err, ErrNoObservations)
}
