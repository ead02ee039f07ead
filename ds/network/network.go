package network

import (
	"encoding/gob"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// Network delivers messages of one concrete type between numbered nodes.
// Receive drains a per-node queue; delivery order between senders is not
// guaranteed.
type Network[T any] interface {
	Listen() error
	Send(nodeId int, msg T) error
	Broadcast(msg T) error
	Receive() (msg T, ok bool)
}

// TCP is the wire implementation: one short-lived gob-encoded TCP connection
// per message. Peers that are still starting up are retried with exponential
// backoff before Send gives up.
type TCP[T any] struct {
	nodeId int
	port   string

	nodeIdTable map[int]string

	mu    sync.Mutex
	queue []T
}

func NewTCP[T any](nodeId int, port string, nodeIdTable map[int]string) *TCP[T] {
	return &TCP[T]{
		nodeId:      nodeId,
		port:        port,
		nodeIdTable: nodeIdTable,
	}
}

// Listen starts accepting connections on the node's own port.
func (network *TCP[T]) Listen() error {
	return network.ListenOnPort(network.port)
}

func (network *TCP[T]) ListenOnPort(port string) error {
	listener, err := net.Listen("tcp", port)
	if err != nil {
		return errors.Wrap(err, "error opening port")
	}
	go network.listenForever(listener)
	return nil
}

func (network *TCP[T]) listenForever(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			// a connection we cannot accept is dropped, not fatal
			continue
		}
		go network.handleConnection(conn)
	}
}

// Send dials the target node, encodes the message and closes the connection.
func (network *TCP[T]) Send(nodeId int, msg T) error {
	address, ok := network.nodeIdTable[nodeId]
	if !ok {
		return errors.Errorf("node %d: nodeId %d does not exist in network id table", network.nodeId, nodeId)
	}

	var conn net.Conn
	dial := func() error {
		c, err := net.Dial("tcp", address)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(dial, policy); err != nil {
		return errors.Wrapf(err, "node %d: cannot reach node %d at %s", network.nodeId, nodeId, address)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(10 * time.Second))
	return gob.NewEncoder(conn).Encode(&msg)
}

// Broadcast sends to every other node in the table.
func (network *TCP[T]) Broadcast(msg T) error {
	for nodeId := range network.nodeIdTable {
		if nodeId == network.nodeId {
			continue
		}
		if err := network.Send(nodeId, msg); err != nil {
			return err
		}
	}
	return nil
}

func (network *TCP[T]) Multicast(nodeIds []int, msg T) error {
	for _, nodeId := range nodeIds {
		if err := network.Send(nodeId, msg); err != nil {
			return err
		}
	}
	return nil
}

// Receive pops the oldest queued message, if any.
func (network *TCP[T]) Receive() (msg T, ok bool) {
	network.mu.Lock()
	defer network.mu.Unlock()
	if len(network.queue) == 0 {
		var t T
		return t, false
	}
	msg = network.queue[0]
	network.queue = network.queue[1:]
	return msg, true
}

// handleConnection queues the decoded message and closes the connection. The
// network does not check that the message is well-formed; that is downstream
// processing's job.
func (network *TCP[T]) handleConnection(conn net.Conn) {
	decoder := gob.NewDecoder(conn)
	var msg T
	err := decoder.Decode(&msg)
	conn.Close()
	if err != nil {
		return
	}
	network.mu.Lock()
	network.queue = append(network.queue, msg)
	network.mu.Unlock()
}
