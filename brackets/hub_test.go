package brackets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	mu      sync.Mutex
	opened  int
	closed  int
	rooms   int
	dropped int
}

func (m *countingMetrics) ConnectionOpened() { m.mu.Lock(); m.opened++; m.mu.Unlock() }
func (m *countingMetrics) ConnectionClosed() { m.mu.Lock(); m.closed++; m.mu.Unlock() }
func (m *countingMetrics) RoomOpened() { m.mu.Lock(); m.rooms++; m.mu.Unlock() }
func (m *countingMetrics) RoomClosed() { m.mu.Lock(); m.rooms--; m.mu.Unlock() }
func (m *countingMetrics) MessageDropped() { m.mu.Lock(); m.dropped++; m.mu.Unlock() }

func (m *countingMetrics) snapshot() (int, int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed, m.rooms, m.dropped
}

func testHub(metrics HubMetrics) *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)
}

func receive(t *testing.T, c *Client) WebSocketMessage {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg WebSocketMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return WebSocketMessage{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message: %s", raw)
	default:
	}
}

func TestHub_BroadcastStaysInRoom(t *testing.T) {
	metrics := &countingMetrics{}
	h := testHub(metrics)
	a := NewClient(h, nil, 1, nil)
	b := NewClient(h, nil, 1, nil)
	other := NewClient(h, nil, 2, nil)

	h.JoinRoom(a, 1)
	h.JoinRoom(b, 1)
	h.JoinRoom(other, 2)
	assert.Equal(t, 2, h.RoomSize(1))

	h.BroadcastToRoom(1, WebSocketMessage{Type: EmitItemAdd, Payload: "x"})
	assert.Equal(t, EmitItemAdd, receive(t, a).Type)
	assert.Equal(t, EmitItemAdd, receive(t, b).Type)
	assertNoMessage(t, other)

	h.BroadcastToRoomExcept(1, a, WebSocketMessage{Type: EmitTitleUpdate, Payload: "t"})
	assert.Equal(t, EmitTitleUpdate, receive(t, b).Type)
	assertNoMessage(t, a)

	_, _, rooms, _ := metrics.snapshot()
	assert.Equal(t, 2, rooms)
}

func TestHub_LeaveRoomClosesEmptyRoom(t *testing.T) {
	metrics := &countingMetrics{}
	h := testHub(metrics)
	a := NewClient(h, nil, 1, nil)

	h.JoinRoom(a, 1)
	h.JoinRoom(a, 1)
	assert.Equal(t, 1, h.RoomSize(1))

	h.LeaveRoom(a)
	assert.Equal(t, 0, h.RoomSize(1))
	_, _, rooms, _ := metrics.snapshot()
	assert.Equal(t, 0, rooms)

	h.BroadcastToRoom(1, WebSocketMessage{Type: EmitItemAdd})
	assertNoMessage(t, a)
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	metrics := &countingMetrics{}
	h := testHub(metrics)
	slow := NewClient(h, nil, 1, nil)
	h.JoinRoom(slow, 1)

	for i := 0; i < sendBufferSize+3; i++ {
		h.BroadcastToRoom(1, WebSocketMessage{Type: EmitItemAdd})
	}
	assert.Len(t, slow.Send, sendBufferSize)
	_, _, _, dropped := metrics.snapshot()
	assert.Equal(t, 3, dropped)
}

func TestHub_RunRegistersAndUnregisters(t *testing.T) {
	metrics := &countingMetrics{}
	h := testHub(metrics)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	a := NewClient(h, nil, 1, nil)
	h.Register <- a
	h.JoinRoom(a, 1)
	h.Unregister <- a

	require.Eventually(t, func() bool {
		a.Mu.Lock()
		defer a.Mu.Unlock()
		return a.IsClosed
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.RoomSize(1))

	b := NewClient(h, nil, 1, nil)
	h.Register <- b
	cancel()
	<-h.Done()

	b.Mu.Lock()
	assert.True(t, b.IsClosed)
	b.Mu.Unlock()

	opened, closed, _, _ := metrics.snapshot()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 2, closed)

	// sends to closed clients are dropped quietly
	h.SendTo(b, AckMessage("1", StatusOK))
}

func TestAckMessage(t *testing.T) {
	raw, err := json.Marshal(AckMessage("7", StatusNoBracket))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","ack":"7","payload":"noBracket"}`, string(raw))
}
