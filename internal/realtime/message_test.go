package realtime

import (
	"encoding/json"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	t.Run("ValidEnvelope", func(t *testing.T) {
		env, err := decodeEnvelope([]byte(`{"type":"ping","payload":{}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Type != TypePing {
			t.Errorf("expected type %q, got %q", TypePing, env.Type)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		if _, err := decodeEnvelope([]byte(`not json`)); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})

	t.Run("MissingType", func(t *testing.T) {
		if _, err := decodeEnvelope([]byte(`{"payload":{}}`)); err == nil {
			t.Error("expected error for envelope without type")
		}
	})
}

func TestDecodeAuthPayload(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		p, err := decodeAuthPayload(json.RawMessage(`{"externalUserId":"ext-1"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ExternalUserID != "ext-1" {
			t.Errorf("expected ext-1, got %q", p.ExternalUserID)
		}
	})

	t.Run("MissingExternalUserID", func(t *testing.T) {
		if _, err := decodeAuthPayload(json.RawMessage(`{}`)); err == nil {
			t.Error("expected error for missing externalUserId")
		}
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		if _, err := decodeAuthPayload(nil); err == nil {
			t.Error("expected error for absent payload")
		}
	})
}

func TestDecodeSubscribePayload(t *testing.T) {
	t.Run("DiscussionID", func(t *testing.T) {
		p, err := decodeSubscribePayload(json.RawMessage(`{"discussionId":42}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.DiscussionID == nil || *p.DiscussionID != 42 {
			t.Errorf("expected discussionId 42, got %v", p.DiscussionID)
		}
	})

	t.Run("NamedChannel", func(t *testing.T) {
		p, err := decodeSubscribePayload(json.RawMessage(`{"channel":"all-discussions"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Channel != ChannelAllDiscussions {
			t.Errorf("expected %q, got %q", ChannelAllDiscussions, p.Channel)
		}
	})

	t.Run("BothFields", func(t *testing.T) {
		if _, err := decodeSubscribePayload(json.RawMessage(`{"discussionId":1,"channel":"all-discussions"}`)); err == nil {
			t.Error("expected error when both fields are set")
		}
	})

	t.Run("NeitherField", func(t *testing.T) {
		if _, err := decodeSubscribePayload(json.RawMessage(`{}`)); err == nil {
			t.Error("expected error when no field is set")
		}
	})

	t.Run("UnknownChannel", func(t *testing.T) {
		if _, err := decodeSubscribePayload(json.RawMessage(`{"channel":"everything"}`)); err == nil {
			t.Error("expected error for unknown channel name")
		}
	})
}

func TestOutboundEnvelopeShapes(t *testing.T) {
	t.Run("ConnectionAck", func(t *testing.T) {
		data, err := newConnectionAck()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var env struct {
			Type    string `json:"type"`
			Payload struct {
				Status string `json:"status"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if env.Type != TypeConnectionAck || env.Payload.Status != "connected" {
			t.Errorf("unexpected ack: %s", data)
		}
	})

	t.Run("AuthAck", func(t *testing.T) {
		data, err := newAuthAck(7)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var env struct {
			Type    string `json:"type"`
			Payload struct {
				Status string `json:"status"`
				UserID uint   `json:"userId"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if env.Type != TypeAuth || env.Payload.Status != "authenticated" || env.Payload.UserID != 7 {
			t.Errorf("unexpected auth ack: %s", data)
		}
	})

	t.Run("Error", func(t *testing.T) {
		data, err := newErrorEnvelope("boom")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var env struct {
			Type    string `json:"type"`
			Payload struct {
				Error string `json:"error"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if env.Type != TypeError || env.Payload.Error != "boom" {
			t.Errorf("unexpected error envelope: %s", data)
		}
	})
}
