package realtime

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrUnknownIdentity is returned by an IdentityResolver when the external
// user id does not map to a known user.
var ErrUnknownIdentity = errors.New("unknown external user id")

// IdentityResolver maps the external identity presented during the auth
// handshake to an internal user id.
type IdentityResolver interface {
	Resolve(ctx context.Context, externalUserID string) (uint, error)
}

// Presence is notified when a user gains its first connection state change.
// Optional; a nil Presence disables it.
type Presence interface {
	SetUserOnline(ctx context.Context, userID uint) error
	SetUserOffline(ctx context.Context, userID uint) error
}

// Hub owns the connection registry and subscription index and runs the
// heartbeat sweep. Inbound envelopes are handled on each connection's own
// read goroutine; all shared state lives behind the registry lock.
type Hub struct {
	reg      *registry
	resolver IdentityResolver
	presence Presence

	heartbeatInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(resolver IdentityResolver, presence Presence) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		reg:               newRegistry(),
		resolver:          resolver,
		presence:          presence,
		heartbeatInterval: 30 * time.Second,
		ctx:               ctx,
		cancel:            cancel,
		done:              make(chan struct{}),
	}
}

// SetHeartbeatInterval overrides the default 30s sweep period. Must be
// called before Run.
func (h *Hub) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		h.heartbeatInterval = d
	}
}

// Run blocks on the heartbeat loop until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-h.ctx.Done():
			slog.Info("realtime hub shutting down")
			h.closeAll()
			return
		}
	}
}

// Stop shuts the hub down and closes every live connection.
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}

func (h *Hub) closeAll() {
	for _, c := range h.reg.snapshot() {
		h.dropClient(c)
	}
}

// ConnectionCount reports the number of live connections.
func (h *Hub) ConnectionCount() int {
	return h.reg.connectionCount()
}

// register admits a new connection in the Unauthenticated state and sends
// the connection acknowledgement.
func (h *Hub) register(c *Client) {
	h.reg.add(c)
	slog.Info("client connected", "handle", c.handle)
	c.sendEnvelope(newConnectionAck())
}

// dropClient tears a connection down through the one shared path: registry
// and index entries go away, presence is released, the socket is closed.
// Safe to call any number of times from any goroutine.
func (h *Hub) dropClient(c *Client) {
	if userID, authed := c.UserID(); authed && h.presence != nil {
		if err := h.presence.SetUserOffline(h.ctx, userID); err != nil {
			slog.Error("failed to clear presence", "userID", userID, "error", err)
		}
	}
	h.reg.remove(c)
	c.close()
}

// handleInbound decodes one envelope and advances the connection's state
// machine. Every error class except a failed auth leaves the connection
// open.
func (h *Hub) handleInbound(c *Client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in message handler", "handle", c.handle, "panic", r)
			c.sendEnvelope(newErrorEnvelope("Internal server error"))
		}
	}()

	if c.currentState() == stateClosed {
		return
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		slog.Debug("rejected envelope", "handle", c.handle, "error", err)
		c.sendEnvelope(newErrorEnvelope("Invalid message format"))
		return
	}

	switch env.Type {
	case TypePing:
		c.sendEnvelope(newPong())
	case TypeAuth:
		h.handleAuth(c, env)
	case TypeSubscribe:
		h.handleSubscribe(c, env, true)
	case TypeUnsubscribe:
		h.handleSubscribe(c, env, false)
	default:
		slog.Debug("unknown envelope type", "handle", c.handle, "type", env.Type)
		c.sendEnvelope(newErrorEnvelope("Unknown message type: " + env.Type))
	}
}

// handleAuth is the one fatal validation path: an auth attempt that cannot
// be tied to a known identity closes the connection, because there is no
// identity to retry against.
func (h *Hub) handleAuth(c *Client, env *Envelope) {
	p, err := decodeAuthPayload(env.Payload)
	if err != nil {
		slog.Warn("malformed auth attempt", "handle", c.handle, "error", err)
		c.sendEnvelope(newErrorEnvelope("Invalid auth payload"))
		h.dropClient(c)
		return
	}

	userID, err := h.resolver.Resolve(h.ctx, p.ExternalUserID)
	if err != nil {
		if errors.Is(err, ErrUnknownIdentity) {
			slog.Warn("auth failed, unknown identity", "handle", c.handle, "externalUserId", p.ExternalUserID)
			c.sendEnvelope(newErrorEnvelope("Authentication failed"))
		} else {
			slog.Error("identity resolution error", "handle", c.handle, "error", err)
			c.sendEnvelope(newErrorEnvelope("Authentication failed"))
		}
		h.dropClient(c)
		return
	}

	h.reg.bindUser(c, userID)
	slog.Info("client authenticated", "handle", c.handle, "userID", userID)

	if h.presence != nil {
		if err := h.presence.SetUserOnline(h.ctx, userID); err != nil {
			slog.Error("failed to set presence", "userID", userID, "error", err)
		}
	}

	c.sendEnvelope(newAuthAck(userID))
}

func (h *Hub) handleSubscribe(c *Client, env *Envelope, subscribe bool) {
	if _, authed := c.UserID(); !authed {
		c.sendEnvelope(newErrorEnvelope("Not authenticated"))
		return
	}

	p, err := decodeSubscribePayload(env.Payload)
	if err != nil {
		slog.Debug("rejected subscribe payload", "handle", c.handle, "error", err)
		c.sendEnvelope(newErrorEnvelope("Invalid subscription payload"))
		return
	}

	switch {
	case p.DiscussionID != nil:
		topic := discussionTopic(*p.DiscussionID)
		if subscribe {
			h.reg.subscribe(c, topic)
		} else {
			h.reg.unsubscribe(c, topic)
		}
	case p.Channel == ChannelAllDiscussions:
		if subscribe {
			h.reg.subscribe(c, ChannelAllDiscussions)
		} else {
			h.reg.unsubscribe(c, ChannelAllDiscussions)
		}
	case p.Channel == ChannelMyDiscussions:
		// The owner channel is granted implicitly at authentication; the
		// explicit form is acknowledged without touching the index.
	}

	ackType := TypeSubscribed
	if !subscribe {
		ackType = TypeUnsubscribed
	}
	c.sendEnvelope(newSubscribeAck(ackType, p))
}
