package network

import "sync"

// Hub is an in-process message switch for tests and single-machine runs.
// Each node gets a Memory handle that satisfies Network against the shared
// hub.
type Hub[T any] struct {
	mu     sync.Mutex
	queues map[int][]T
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{queues: make(map[int][]T)}
}

// Node returns the network handle for nodeId, registering it with the hub.
func (h *Hub[T]) Node(nodeId int) *Memory[T] {
	h.mu.Lock()
	if _, ok := h.queues[nodeId]; !ok {
		h.queues[nodeId] = nil
	}
	h.mu.Unlock()
	return &Memory[T]{nodeId: nodeId, hub: h}
}

// Memory is the loopback counterpart of TCP.
type Memory[T any] struct {
	nodeId int
	hub    *Hub[T]
}

func (m *Memory[T]) Listen() error { return nil }

func (m *Memory[T]) Send(nodeId int, msg T) error {
	m.hub.mu.Lock()
	m.hub.queues[nodeId] = append(m.hub.queues[nodeId], msg)
	m.hub.mu.Unlock()
	return nil
}

func (m *Memory[T]) Broadcast(msg T) error {
	m.hub.mu.Lock()
	for nodeId := range m.hub.queues {
		if nodeId == m.nodeId {
			continue
		}
		m.hub.queues[nodeId] = append(m.hub.queues[nodeId], msg)
	}
	m.hub.mu.Unlock()
	return nil
}

func (m *Memory[T]) Receive() (msg T, ok bool) {
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	queue := m.hub.queues[m.nodeId]
	if len(queue) == 0 {
		var t T
		return t, false
	}
	msg = queue[0]
	m.hub.queues[m.nodeId] = queue[1:]
	return msg, true
}
