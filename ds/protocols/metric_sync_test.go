package protocols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toxrank/ds/network"
	"toxrank/ml"
)

func TestMetricSyncShareDrain(t *testing.T) {
	hub := network.NewHub[MetricSyncMessage]()

	var m0, m1 ml.PairAccuracy
	require.NoError(t, m0.Update([]float32{0.1, 0.9}, []float32{0.5, 0.5})) // 1 of 2
	require.NoError(t, m1.Update([]float32{0.1, 0.2}, []float32{0.5, 0.5})) // 2 of 2

	n0, n1 := &MetricSyncNode{}, &MetricSyncNode{}
	n0.Initialize(0, "0", &m0, hub.Node(0))
	n1.Initialize(1, "1", &m1, hub.Node(1))

	require.NoError(t, n0.Share())
	require.NoError(t, n1.Share())

	assert.Equal(t, 1, n0.Drain())
	assert.Equal(t, 1, n1.Drain())

	for _, m := range []*ml.PairAccuracy{&m0, &m1} {
		acc, err := m.Compute()
		require.NoError(t, err)
		assert.Equal(t, 0.75, acc)
	}
}

func TestMetricSyncIgnoresDuplicates(t *testing.T) {
	hub := network.NewHub[MetricSyncMessage]()

	var m ml.PairAccuracy
	node := &MetricSyncNode{}
	node.Initialize(0, "0", &m, hub.Node(0))

	peer := hub.Node(1)
	state := ml.MetricState{Correct: 1, Total: 2}
	require.NoError(t, peer.Send(0, MetricSyncMessage{From: 1, State: state}))
	require.NoError(t, peer.Send(0, MetricSyncMessage{From: 1, State: state}))
	// a stray echo of the node's own state must not be merged either
	require.NoError(t, peer.Send(0, MetricSyncMessage{From: 0, State: state}))

	assert.Equal(t, 1, node.Drain())
	assert.Equal(t, 1, node.Peers())
	assert.Equal(t, ml.MetricState{Correct: 1, Total: 2}, m.State())
}
