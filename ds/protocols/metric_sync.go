package protocols

import (
	"toxrank/ds/network"
	"toxrank/ml"
)

// MetricSyncMessage carries one worker's metric state. Fields are exported
// so gob can move the message over the wire.
type MetricSyncMessage struct {
	From  int
	State ml.MetricState
}

// MetricSyncNode implements the reduction side of the scoring phase: after
// local accumulation, every worker shares its counters and folds in each
// peer's counters exactly once. Compute is only meaningful after the merge.
type MetricSyncNode struct {
	id     int
	name   string
	metric *ml.PairAccuracy
	net    network.Network[MetricSyncMessage]
	seen   map[int]bool
}

func (node *MetricSyncNode) Initialize(id int, name string, metric *ml.PairAccuracy, net network.Network[MetricSyncMessage]) {
	node.id = id
	node.name = name
	node.metric = metric
	node.net = net
	node.seen = make(map[int]bool)
}

// Share broadcasts the local state to every peer.
func (node *MetricSyncNode) Share() error {
	return node.net.Broadcast(MetricSyncMessage{
		From:  node.id,
		State: node.metric.State(),
	})
}

// Drain merges all queued peer states, ignoring duplicates and the node's
// own echoes. It returns how many new peers were merged.
func (node *MetricSyncNode) Drain() int {
	merged := 0
	for {
		msg, ok := node.net.Receive()
		if !ok {
			return merged
		}
		if msg.From == node.id || node.seen[msg.From] {
			continue
		}
		node.seen[msg.From] = true
		node.metric.Merge(msg.State)
		merged++
	}
}

// Peers reports how many distinct peer states have been merged so far.
func (node *MetricSyncNode) Peers() int {
	return len(node.seen)
}
