package realtime

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer before the
	// transport itself gives up
	readWait = 90 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound buffer per connection
	sendBufferSize = 256
)

var ErrClientDisconnected = errors.New("client disconnected")

// wsConn is the slice of *websocket.Conn the client actually uses, kept as
// an interface so tests can drive the hub with an in-memory connection.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
	stateClosed
)

// Client is one live connection. The handle is the sole key other components
// hold; the registry owns the mapping from handle back to the record.
type Client struct {
	handle string
	hub    *Hub
	conn   wsConn

	send  chan []byte
	probe chan struct{}
	done  chan struct{}

	// alive is lowered by each heartbeat sweep and raised by any sign of
	// life from the peer.
	alive atomic.Bool

	mu     sync.Mutex
	state  connState
	userID uint

	// topics this connection subscribed to, mutated only under the
	// registry lock so teardown is a bounded local sweep
	topics map[string]bool

	closeOnce sync.Once
}

func newClient(hub *Hub, conn wsConn) *Client {
	c := &Client{
		handle: uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		probe:  make(chan struct{}, 1),
		done:   make(chan struct{}),
		topics: make(map[string]bool),
	}
	c.alive.Store(true)
	return c
}

// Handle returns the opaque identifier of this connection.
func (c *Client) Handle() string {
	return c.handle
}

// UserID returns the bound user id and whether the connection has
// authenticated yet.
func (c *Client) UserID() (uint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.state == stateAuthenticated
}

func (c *Client) currentState() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) bindUser(userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return
	}
	c.state = stateAuthenticated
	c.userID = userID
}

// markClosed moves the connection to its terminal state. Closed is
// absorbing; every later transition attempt is a no-op.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateClosed
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.markClosed()
		close(c.done)
		if err := c.conn.Close(); err != nil {
			slog.Debug("error closing connection", "handle", c.handle, "error", err)
		}
	})
}

// trySend queues data for the write pump without ever blocking the caller.
// A full buffer means the peer stopped draining and is treated the same as
// a dead socket.
func (c *Client) trySend(data []byte) error {
	if c.currentState() == stateClosed {
		return ErrClientDisconnected
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientDisconnected
	default:
		slog.Warn("send buffer full, dropping client", "handle", c.handle)
		return ErrClientDisconnected
	}
}

func (c *Client) sendEnvelope(data []byte, err error) {
	if err != nil {
		slog.Error("failed to encode envelope", "handle", c.handle, "error", err)
		return
	}
	if sendErr := c.trySend(data); sendErr != nil {
		c.hub.dropClient(c)
	}
}

// requestProbe asks the write pump for one ping control frame. Dropped when
// a probe is already pending so a slow peer cannot back up the sweep.
func (c *Client) requestProbe() {
	select {
	case c.probe <- struct{}{}:
	default:
	}
}

func (c *Client) readPump() {
	defer c.hub.dropClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read error", "handle", c.handle, "error", err)
			} else {
				slog.Debug("websocket connection closed", "handle", c.handle, "error", err)
			}
			return
		}

		// Any inbound traffic proves the peer is alive.
		c.alive.Store(true)
		c.conn.SetReadDeadline(time.Now().Add(readWait))

		c.hub.handleInbound(c, data)

		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("websocket write error", "handle", c.handle, "error", err)
				c.hub.dropClient(c)
				return
			}

		case <-c.probe:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("heartbeat probe failed", "handle", c.handle, "error", err)
				c.hub.dropClient(c)
				return
			}

		case <-c.done:
			return
		}
	}
}
