package realtime

import (
	"strconv"
	"sync"
)

func discussionTopic(id uint) string {
	return "discussion:" + strconv.FormatUint(uint64(id), 10)
}

// registry is the single shared structure behind the hub: the connection
// table plus the two secondary indexes used for dispatch. Every structural
// change happens in one step under the lock; nothing here blocks.
type registry struct {
	mu sync.RWMutex

	// primary table, keyed by opaque handle
	clients map[string]*Client

	// authenticated user id -> connection handles
	userClients map[uint]map[string]*Client

	// topic (discussion:<id> or all-discussions) -> connection handles
	topicClients map[string]map[string]*Client
}

func newRegistry() *registry {
	return &registry{
		clients:      make(map[string]*Client),
		userClients:  make(map[uint]map[string]*Client),
		topicClients: make(map[string]map[string]*Client),
	}
}

func (r *registry) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.handle] = c
}

// bindUser indexes the connection under userID. Re-authentication simply
// rebinds: the handle moves out of the previous user's set if it changed.
func (r *registry) bindUser(c *Client, userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.handle]; !ok {
		return
	}

	if prev, authed := c.UserID(); authed && prev != userID {
		r.unbindUserLocked(c, prev)
	}

	if r.userClients[userID] == nil {
		r.userClients[userID] = make(map[string]*Client)
	}
	r.userClients[userID][c.handle] = c
	c.bindUser(userID)
}

func (r *registry) unbindUserLocked(c *Client, userID uint) {
	if set, ok := r.userClients[userID]; ok {
		delete(set, c.handle)
		if len(set) == 0 {
			delete(r.userClients, userID)
		}
	}
}

func (r *registry) subscribe(c *Client, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.handle]; !ok {
		return
	}
	if r.topicClients[topic] == nil {
		r.topicClients[topic] = make(map[string]*Client)
	}
	r.topicClients[topic][c.handle] = c
	c.topics[topic] = true
}

// unsubscribe removes the connection from one topic. Removing a subscription
// that never existed is a no-op. Empty topic sets are pruned.
func (r *registry) unsubscribe(c *Client, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(c, topic)
}

func (r *registry) unsubscribeLocked(c *Client, topic string) {
	if set, ok := r.topicClients[topic]; ok {
		delete(set, c.handle)
		if len(set) == 0 {
			delete(r.topicClients, topic)
		}
	}
	delete(c.topics, topic)
}

// remove deletes the connection from the primary table and both indexes.
// Safe to call any number of times; the cascade walks the connection's own
// topic set instead of scanning the whole index.
func (r *registry) remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.handle]; !ok {
		return
	}
	delete(r.clients, c.handle)

	if userID, authed := c.UserID(); authed {
		r.unbindUserLocked(c, userID)
	}

	for topic := range c.topics {
		r.unsubscribeLocked(c, topic)
	}
}

// connectionsFor returns a snapshot of the user's live connections. Empty
// slice when the user has none.
func (r *registry) connectionsFor(userID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.userClients[userID]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// subscribersOf returns a snapshot of the topic's subscribers.
func (r *registry) subscribersOf(topic string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.topicClients[topic]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// snapshot returns every registered connection, for the heartbeat sweep.
func (r *registry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *registry) connectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *registry) topicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topicClients)
}

func (r *registry) userCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userClients)
}
