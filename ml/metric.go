package ml

import (
	"errors"
	"sync"
)

var (
	ErrNoObservations = errors.New("pair accuracy: no observations")
	ErrSizeMismatch   = errors.New("pair accuracy: score slices differ in length")
)

// MetricState is the reducible state of PairAccuracy. States from different
// workers merge by summation; the struct is gob-friendly so it can travel
// over the ds network as-is.
type MetricState struct {
	Correct int64
	Total   int64
}

// PairAccuracy counts score pairs where the supposedly less toxic comment
// actually scored below the more toxic one. Accumulation is local to the
// worker; cross-worker reduction happens explicitly via State and Merge
// before Compute is called.
type PairAccuracy struct {
	mu      sync.Mutex
	correct int64
	total   int64
}

// Update scores one batch of pairs. Both slices must have the same length.
func (m *PairAccuracy) Update(lessToxic, moreToxic []float32) error {
	if len(lessToxic) != len(moreToxic) {
		return ErrSizeMismatch
	}
	var correct int64
	for i := range lessToxic {
		if lessToxic[i] < moreToxic[i] {
			correct++
		}
	}
	m.mu.Lock()
	m.correct += correct
	m.total += int64(len(lessToxic))
	m.mu.Unlock()
	return nil
}

// Compute returns correct/total. Calling it before any pair has been scored
// is an error rather than a NaN.
func (m *PairAccuracy) Compute() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.total == 0 {
		return 0, ErrNoObservations
	}
	return float64(m.correct) / float64(m.total), nil
}

// State snapshots the local counters for reduction.
func (m *PairAccuracy) State() MetricState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricState{Correct: m.correct, Total: m.total}
}

// Merge folds peer states into the local counters by summation.
func (m *PairAccuracy) Merge(states ...MetricState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		m.correct += s.Correct
		m.total += s.Total
	}
}

// Reset clears the counters for a fresh scoring phase.
func (m *PairAccuracy) Reset() {
	m.mu.Lock()
	m.correct = 0
	m.total = 0
	m.mu.Unlock()
}
