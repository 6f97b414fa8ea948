package realtime

import "log/slog"

// sweep runs one heartbeat pass over every registered connection. A
// connection whose liveness flag is still down from the previous pass never
// answered its probe and is reaped through the normal close path; everyone
// else gets a fresh probe queued and their flag lowered. Probes go through
// the per-connection write pump, so one slow peer cannot delay the sweep.
func (h *Hub) sweep() {
	clients := h.reg.snapshot()

	reaped := 0
	for _, c := range clients {
		if !c.alive.Load() {
			slog.Info("reaping unresponsive client", "handle", c.handle)
			h.dropClient(c)
			reaped++
			continue
		}
		c.alive.Store(false)
		c.requestProbe()
	}

	if reaped > 0 {
		slog.Info("heartbeat sweep complete", "checked", len(clients), "reaped", reaped)
	}
}
