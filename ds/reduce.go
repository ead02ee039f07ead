package ds

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"toxrank/ds/network"
	"toxrank/ds/protocols"
	"toxrank/ml"
)

// AllReduce shares the locally accumulated metric state and blocks until
// every one of the numNodes-1 peers has been merged in, or the timeout
// expires. On success each worker holds the globally summed counters.
func AllReduce(metric *ml.PairAccuracy, net network.Network[protocols.MetricSyncMessage], rank, numNodes int, timeout time.Duration) error {
	node := &protocols.MetricSyncNode{}
	node.Initialize(rank, strconv.Itoa(rank), metric, net)

	if err := node.Share(); err != nil {
		return errors.Wrap(err, "metric reduce: share failed")
	}

	deadline := time.Now().Add(timeout)
	for node.Peers() < numNodes-1 {
		if node.Drain() == 0 {
			if time.Now().After(deadline) {
				return errors.Errorf("metric reduce: merged %d of %d peer states before timeout",
					node.Peers(), numNodes-1)
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
	return nil
}
