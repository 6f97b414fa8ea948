package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// ErrConnClosed is returned by the mock connection after Close.
var ErrConnClosed = errors.New("connection closed")

// mockConn implements wsConn for tests, recording every frame written.
type mockConn struct {
	mu       sync.Mutex
	messages [][]byte
	pings    int
	closed   bool
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, nil, ErrConnClosed
	}
	return 1, []byte(`{"type":"ping","payload":{}}`), nil
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrConnClosed
	}
	if messageType == 9 { // ping control frame
		m.pings++
		return nil
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockConn) SetReadLimit(int64) {}

func (m *mockConn) SetReadDeadline(time.Time) error { return nil }

func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }

func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// stubResolver resolves external ids from a fixed table.
type stubResolver struct {
	users map[string]uint
}

func (r *stubResolver) Resolve(_ context.Context, externalUserID string) (uint, error) {
	if id, ok := r.users[externalUserID]; ok {
		return id, nil
	}
	return 0, ErrUnknownIdentity
}

func newTestHub() *Hub {
	return NewHub(&stubResolver{users: map[string]uint{
		"ext-10": 10,
		"ext-11": 11,
	}}, nil)
}

// newTestClient admits a connection without starting the pumps; tests feed
// envelopes through handleInbound and drain c.send directly.
func newTestClient(h *Hub) (*Client, *mockConn) {
	conn := &mockConn{}
	c := newClient(h, conn)
	h.register(c)
	return c, conn
}

func authenticate(t *testing.T, h *Hub, c *Client, externalID string) {
	t.Helper()
	h.handleInbound(c, []byte(`{"type":"auth","payload":{"externalUserId":"`+externalID+`"}}`))
	env := recvEnvelope(t, c)
	if env.Type != TypeAuth {
		t.Fatalf("expected auth ack, got %q", env.Type)
	}
}

func subscribeDiscussion(t *testing.T, h *Hub, c *Client, id uint) {
	t.Helper()
	h.handleInbound(c, []byte(`{"type":"subscribe","payload":{"discussionId":`+jsonUint(id)+`}}`))
	env := recvEnvelope(t, c)
	if env.Type != TypeSubscribed {
		t.Fatalf("expected subscribed ack, got %q", env.Type)
	}
}

func jsonUint(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}

type receivedEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// recvEnvelope pops the next queued outbound envelope for the client.
func recvEnvelope(t *testing.T, c *Client) receivedEnvelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env receivedEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return env
	default:
		t.Fatal("no envelope queued")
		return receivedEnvelope{}
	}
}

func expectNoEnvelope(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected envelope queued: %s", data)
	default:
	}
}

// drainAcks discards everything currently queued for the client.
func drainAcks(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
