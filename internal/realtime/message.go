package realtime

import (
	"encoding/json"
	"fmt"
)

// Inbound envelope types accepted from clients.
const (
	TypeAuth        = "auth"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

// Outbound envelope types sent to clients. The auth acknowledgement reuses
// the "auth" type on the outbound stream.
const (
	TypeConnectionAck         = "connection-ack"
	TypeSubscribed            = "subscribed"
	TypeUnsubscribed          = "unsubscribed"
	TypePong                  = "pong"
	TypeError                 = "error"
	TypeDiscussionUpdate      = "discussion-update"
	TypeUserDiscussionsUpdate = "user-discussions-update"
)

// Named subscription channels a client may opt into besides a single
// discussion id.
const (
	ChannelAllDiscussions = "all-discussions"
	ChannelMyDiscussions  = "my-discussions"
)

// Envelope is the typed {type, payload} wrapper exchanged over the socket.
// Inbound payloads stay raw until the type is known; outbound payloads are
// plain values marshaled at send time.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// AuthPayload carries the external identity a client authenticates with.
type AuthPayload struct {
	ExternalUserID string `json:"externalUserId"`
}

// SubscribePayload addresses either one discussion or a named channel.
// Exactly one of the two fields must be set.
type SubscribePayload struct {
	DiscussionID *uint  `json:"discussionId,omitempty"`
	Channel      string `json:"channel,omitempty"`
}

type ackPayload struct {
	Status string `json:"status"`
}

type authAckPayload struct {
	Status string `json:"status"`
	UserID uint   `json:"userId"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// DiscussionUpdatePayload is the entity-channel notification. Discussion is
// the full snapshot for created/updated and null for deleted.
type DiscussionUpdatePayload struct {
	Action       Action `json:"action"`
	DiscussionID uint   `json:"discussionId"`
	Discussion   any    `json:"discussion"`
}

// UserDiscussionsUpdatePayload is the owner-channel notification. Discussion
// is the full snapshot for created/updated and {"id": n} for deleted.
type UserDiscussionsUpdatePayload struct {
	Action     Action `json:"action"`
	Discussion any    `json:"discussion"`
}

type deletedRef struct {
	ID uint `json:"id"`
}

func decodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

func decodeAuthPayload(raw json.RawMessage) (*AuthPayload, error) {
	var p AuthPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed auth payload: %w", err)
		}
	}
	if p.ExternalUserID == "" {
		return nil, fmt.Errorf("auth payload requires externalUserId")
	}
	return &p, nil
}

func decodeSubscribePayload(raw json.RawMessage) (*SubscribePayload, error) {
	var p SubscribePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed subscribe payload: %w", err)
		}
	}
	switch {
	case p.DiscussionID != nil && p.Channel != "":
		return nil, fmt.Errorf("subscribe payload takes discussionId or channel, not both")
	case p.DiscussionID == nil && p.Channel == "":
		return nil, fmt.Errorf("subscribe payload requires discussionId or channel")
	case p.Channel != "" && p.Channel != ChannelAllDiscussions && p.Channel != ChannelMyDiscussions:
		return nil, fmt.Errorf("unknown channel %q", p.Channel)
	}
	return &p, nil
}

func encodeEnvelope(msgType string, payload any) ([]byte, error) {
	return json.Marshal(outEnvelope{Type: msgType, Payload: payload})
}

func newConnectionAck() ([]byte, error) {
	return encodeEnvelope(TypeConnectionAck, ackPayload{Status: "connected"})
}

func newAuthAck(userID uint) ([]byte, error) {
	return encodeEnvelope(TypeAuth, authAckPayload{Status: "authenticated", UserID: userID})
}

func newSubscribeAck(msgType string, p *SubscribePayload) ([]byte, error) {
	return encodeEnvelope(msgType, p)
}

func newPong() ([]byte, error) {
	return encodeEnvelope(TypePong, struct{}{})
}

func newErrorEnvelope(msg string) ([]byte, error) {
	return encodeEnvelope(TypeError, errorPayload{Error: msg})
}
