package realtime

import "log/slog"

// Action classifies a discussion mutation.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event is the ephemeral record of one successful mutation, produced by the
// CRUD layer after persistence. Payload is the full entity snapshot; it is
// ignored for deletions.
type Event struct {
	DiscussionID uint
	Action       Action
	OwnerUserID  uint
	Payload      any
}

// Broadcast fans an event out to every interested connection exactly once.
// Entity-channel recipients (explicit discussion subscribers plus
// all-discussions subscribers) get a discussion-update; the owner's other
// connections get a user-discussions-update. A connection reachable through
// both paths is served on the entity channel only. Delivery is
// fire-and-forget per connection: a dead recipient is dropped and never
// blocks or fails the rest of the batch.
func (h *Hub) Broadcast(ev Event) {
	entityTargets := make(map[string]*Client)
	for _, c := range h.reg.subscribersOf(discussionTopic(ev.DiscussionID)) {
		entityTargets[c.handle] = c
	}
	for _, c := range h.reg.subscribersOf(ChannelAllDiscussions) {
		entityTargets[c.handle] = c
	}

	ownerTargets := make(map[string]*Client)
	for _, c := range h.reg.connectionsFor(ev.OwnerUserID) {
		if _, seen := entityTargets[c.handle]; !seen {
			ownerTargets[c.handle] = c
		}
	}

	if len(entityTargets) == 0 && len(ownerTargets) == 0 {
		return
	}

	var entityBody any
	if ev.Action != ActionDeleted {
		entityBody = ev.Payload
	}
	entityMsg, err := encodeEnvelope(TypeDiscussionUpdate, DiscussionUpdatePayload{
		Action:       ev.Action,
		DiscussionID: ev.DiscussionID,
		Discussion:   entityBody,
	})
	if err != nil {
		slog.Error("failed to encode discussion update", "discussionId", ev.DiscussionID, "error", err)
		return
	}

	ownerBody := ev.Payload
	if ev.Action == ActionDeleted {
		ownerBody = deletedRef{ID: ev.DiscussionID}
	}
	ownerMsg, err := encodeEnvelope(TypeUserDiscussionsUpdate, UserDiscussionsUpdatePayload{
		Action:     ev.Action,
		Discussion: ownerBody,
	})
	if err != nil {
		slog.Error("failed to encode user discussions update", "discussionId", ev.DiscussionID, "error", err)
		return
	}

	delivered := 0
	for _, c := range entityTargets {
		if err := c.trySend(entityMsg); err != nil {
			slog.Debug("dropping dead recipient", "handle", c.handle, "error", err)
			h.dropClient(c)
			continue
		}
		delivered++
	}
	for _, c := range ownerTargets {
		if err := c.trySend(ownerMsg); err != nil {
			slog.Debug("dropping dead recipient", "handle", c.handle, "error", err)
			h.dropClient(c)
			continue
		}
		delivered++
	}

	slog.Debug("broadcast dispatched",
		"discussionId", ev.DiscussionID,
		"action", ev.Action,
		"delivered", delivered,
	)
}
