package websocket

import "sync"

// connRegistry tracks the live Connections belonging to one Endpoint or
// one Acceptor (invariant I6: a Connection is registered with exactly
// one owner — its Endpoint if it dialed out, or the Acceptor that
// accepted it). This mirrors the original library's separate
// per-instance connection lists rather than a single process-wide list.
type connRegistry struct {
	mu    sync.Mutex
	conns map[*Conn]struct{}
}

func newConnRegistry() *connRegistry {
	return &connRegistry{conns: make(map[*Conn]struct{})}
}

func (r *connRegistry) add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

func (r *connRegistry) remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
}

// snapshot returns the currently registered connections. The result is
// a point-in-time copy; connections may close concurrently.
func (r *connRegistry) snapshot() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// closeAll closes every registered connection with the given code and
// reason (used by Acceptor.Close's GOING_AWAY broadcast and
// Endpoint.CloseAll).
func (r *connRegistry) closeAll(code CloseCode, reason string) {
	for _, c := range r.snapshot() {
		c.Close(code, reason)
	}
}
