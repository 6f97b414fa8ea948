package realtime

import (
	"encoding/json"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConnectionAckOnRegister(t *testing.T) {
	h := newTestHub()
	c, _ := newTestClient(h)

	env := recvEnvelope(t, c)
	if env.Type != TypeConnectionAck {
		t.Errorf("expected connection-ack first, got %q", env.Type)
	}
}

func TestAuthHandshake(t *testing.T) {
	t.Run("ValidAuthBindsUser", func(t *testing.T) {
		h := newTestHub()
		c, _ := newTestClient(h)
		drainAcks(c)

		h.handleInbound(c, []byte(`{"type":"auth","payload":{"externalUserId":"ext-10"}}`))

		env := recvEnvelope(t, c)
		if env.Type != TypeAuth {
			t.Fatalf("expected auth ack, got %q", env.Type)
		}
		var p struct {
			Status string `json:"status"`
			UserID uint   `json:"userId"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			t.Fatalf("failed to unmarshal payload: %v", err)
		}
		if p.Status != "authenticated" || p.UserID != 10 {
			t.Errorf("unexpected auth ack payload: %+v", p)
		}

		if userID, authed := c.UserID(); !authed || userID != 10 {
			t.Errorf("expected connection bound to user 10, got %d (authed=%v)", userID, authed)
		}
		if got := len(h.reg.connectionsFor(10)); got != 1 {
			t.Errorf("expected user index entry, got %d", got)
		}
	})

	t.Run("UnknownIdentityClosesConnection", func(t *testing.T) {
		h := newTestHub()
		c, conn := newTestClient(h)
		drainAcks(c)

		h.handleInbound(c, []byte(`{"type":"auth","payload":{"externalUserId":"nobody"}}`))

		env := recvEnvelope(t, c)
		if env.Type != TypeError {
			t.Errorf("expected error envelope, got %q", env.Type)
		}
		if !conn.isClosed() {
			t.Error("expected connection closed after failed auth")
		}
		if got := h.reg.connectionCount(); got != 0 {
			t.Errorf("expected registry cleaned up, got %d connections", got)
		}
	})

	t.Run("MalformedAuthClosesConnection", func(t *testing.T) {
		h := newTestHub()
		c, conn := newTestClient(h)
		drainAcks(c)

		h.handleInbound(c, []byte(`{"type":"auth","payload":{}}`))

		env := recvEnvelope(t, c)
		if env.Type != TypeError {
			t.Errorf("expected error envelope, got %q", env.Type)
		}
		if !conn.isClosed() {
			t.Error("expected connection closed after malformed auth")
		}
	})

	t.Run("ReauthRebindsUser", func(t *testing.T) {
		h := newTestHub()
		c, _ := newTestClient(h)
		drainAcks(c)

		authenticate(t, h, c, "ext-10")
		authenticate(t, h, c, "ext-11")

		if got := len(h.reg.connectionsFor(10)); got != 0 {
			t.Errorf("expected old binding gone, got %d", got)
		}
		if got := len(h.reg.connectionsFor(11)); got != 1 {
			t.Errorf("expected new binding, got %d", got)
		}
	})
}

func TestSubscribeRequiresAuth(t *testing.T) {
	h := newTestHub()
	c, conn := newTestClient(h)
	drainAcks(c)

	h.handleInbound(c, []byte(`{"type":"subscribe","payload":{"discussionId":42}}`))

	env := recvEnvelope(t, c)
	if env.Type != TypeError {
		t.Errorf("expected error envelope, got %q", env.Type)
	}
	if conn.isClosed() {
		t.Error("connection must stay open after rejected subscribe")
	}
	if got := len(h.reg.subscribersOf(discussionTopic(42))); got != 0 {
		t.Errorf("expected no subscription recorded, got %d", got)
	}
}

func TestPingDoesNotRequireAuth(t *testing.T) {
	h := newTestHub()
	c, _ := newTestClient(h)
	drainAcks(c)

	h.handleInbound(c, []byte(`{"type":"ping","payload":{}}`))
	env := recvEnvelope(t, c)
	if env.Type != TypePong {
		t.Errorf("expected pong, got %q", env.Type)
	}

	authenticate(t, h, c, "ext-10")
	h.handleInbound(c, []byte(`{"type":"ping","payload":{}}`))
	env = recvEnvelope(t, c)
	if env.Type != TypePong {
		t.Errorf("expected pong after auth, got %q", env.Type)
	}
}

func TestMalformedEnvelopeIsNonFatal(t *testing.T) {
	h := newTestHub()
	c, conn := newTestClient(h)
	drainAcks(c)

	h.handleInbound(c, []byte(`garbage`))
	env := recvEnvelope(t, c)
	if env.Type != TypeError {
		t.Errorf("expected error envelope, got %q", env.Type)
	}

	h.handleInbound(c, []byte(`{"type":"no-such-type","payload":{}}`))
	env = recvEnvelope(t, c)
	if env.Type != TypeError {
		t.Errorf("expected error envelope for unknown type, got %q", env.Type)
	}

	if conn.isClosed() {
		t.Error("connection must stay open after protocol errors")
	}
}

func TestSubscribeUnsubscribeFlow(t *testing.T) {
	h := newTestHub()
	c, _ := newTestClient(h)
	drainAcks(c)
	authenticate(t, h, c, "ext-10")

	t.Run("SubscribeDiscussion", func(t *testing.T) {
		subscribeDiscussion(t, h, c, 42)
		if got := len(h.reg.subscribersOf(discussionTopic(42))); got != 1 {
			t.Errorf("expected 1 subscriber, got %d", got)
		}
	})

	t.Run("SubscribeAllDiscussionsChannel", func(t *testing.T) {
		h.handleInbound(c, []byte(`{"type":"subscribe","payload":{"channel":"all-discussions"}}`))
		env := recvEnvelope(t, c)
		if env.Type != TypeSubscribed {
			t.Fatalf("expected subscribed ack, got %q", env.Type)
		}
		if got := len(h.reg.subscribersOf(ChannelAllDiscussions)); got != 1 {
			t.Errorf("expected 1 channel subscriber, got %d", got)
		}
	})

	t.Run("MyDiscussionsChannelAcksWithoutIndexing", func(t *testing.T) {
		before := h.reg.topicCount()
		h.handleInbound(c, []byte(`{"type":"subscribe","payload":{"channel":"my-discussions"}}`))
		env := recvEnvelope(t, c)
		if env.Type != TypeSubscribed {
			t.Fatalf("expected subscribed ack, got %q", env.Type)
		}
		if h.reg.topicCount() != before {
			t.Error("my-discussions must not add an index entry; the owner channel is implicit")
		}
	})

	t.Run("UnsubscribeNeverSubscribedIsNoop", func(t *testing.T) {
		before := h.reg.topicCount()
		h.handleInbound(c, []byte(`{"type":"unsubscribe","payload":{"discussionId":999}}`))
		env := recvEnvelope(t, c)
		if env.Type != TypeUnsubscribed {
			t.Fatalf("expected unsubscribed ack, got %q", env.Type)
		}
		if h.reg.topicCount() != before {
			t.Error("unsubscribing an unknown topic must not change state")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		h.handleInbound(c, []byte(`{"type":"unsubscribe","payload":{"discussionId":42}}`))
		env := recvEnvelope(t, c)
		if env.Type != TypeUnsubscribed {
			t.Fatalf("expected unsubscribed ack, got %q", env.Type)
		}
		if got := len(h.reg.subscribersOf(discussionTopic(42))); got != 0 {
			t.Errorf("expected no subscribers, got %d", got)
		}
	})
}

func TestClosedConnectionAbsorbsEverything(t *testing.T) {
	h := newTestHub()
	c, _ := newTestClient(h)
	drainAcks(c)
	authenticate(t, h, c, "ext-10")

	h.dropClient(c)
	h.dropClient(c) // second drop must be harmless

	h.handleInbound(c, []byte(`{"type":"ping","payload":{}}`))
	h.handleInbound(c, []byte(`{"type":"subscribe","payload":{"discussionId":1}}`))
	expectNoEnvelope(t, c)

	if got := h.reg.connectionCount(); got != 0 {
		t.Errorf("expected empty registry, got %d", got)
	}
}
