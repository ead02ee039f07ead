package network

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	From    int
	Correct int64
	Total   int64
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return addr
}

func awaitMessage(t *testing.T, n Network[payload]) payload {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if msg, ok := n.Receive(); ok {
			return msg
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no message arrived")
	return payload{}
}

func TestTCPSendReceive(t *testing.T) {
	table := map[int]string{0: freeAddr(t), 1: freeAddr(t)}

	nodes := make(map[int]*TCP[payload])
	for id, addr := range table {
		port := ":" + strings.Split(addr, ":")[1]
		nodes[id] = NewTCP[payload](id, port, table)
		require.NoError(t, nodes[id].Listen())
	}

	want := payload{From: 0, Correct: 3, Total: 4}
	require.NoError(t, nodes[0].Send(1, want))

	got := awaitMessage(t, nodes[1])
	assert.Equal(t, want, got)

	_, ok := nodes[0].Receive()
	assert.False(t, ok)
}

func TestTCPBroadcastSkipsSelf(t *testing.T) {
	table := map[int]string{0: freeAddr(t), 1: freeAddr(t), 2: freeAddr(t)}

	nodes := make(map[int]*TCP[payload])
	for id, addr := range table {
		port := ":" + strings.Split(addr, ":")[1]
		nodes[id] = NewTCP[payload](id, port, table)
		require.NoError(t, nodes[id].Listen())
	}

	require.NoError(t, nodes[0].Broadcast(payload{From: 0, Total: 1}))

	for _, id := range []int{1, 2} {
		msg := awaitMessage(t, nodes[id])
		assert.Equal(t, 0, msg.From)
	}
	_, ok := nodes[0].Receive()
	assert.False(t, ok)
}

func TestTCPSendUnknownNode(t *testing.T) {
	n := NewTCP[payload](0, ":0", map[int]string{0: "127.0.0.1:1"})
	err := n.Send(7, payload{})
	assert.Error(t, err)
}

func TestMemoryHub(t *testing.T) {
	hub := NewHub[payload]()
	a, b, c := hub.Node(0), hub.Node(1), hub.Node(2)

	require.NoError(t, a.Broadcast(payload{From: 0, Correct: 1, Total: 2}))

	for _, n := range []*Memory[payload]{b, c} {
		msg, ok := n.Receive()
		require.True(t, ok)
		assert.Equal(t, int64(2), msg.Total)
	}
	_, ok := a.Receive()
	assert.False(t, ok)

	require.NoError(t, b.Send(0, payload{From: 1}))
	msg, ok := a.Receive()
	require.True(t, ok)
	assert.Equal(t, 1, msg.From)
}
