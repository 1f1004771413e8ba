package gateway

import (
	"context"
	"sync"
)

// Sender is the delivery surface the registry tracks per connection.
type Sender interface {
	ID() string
	Send(event string, data any)
}

// StatusNotifier is invoked outside the registry lock on presence
// transitions: online when a user's first connection registers, offline
// when their last one leaves. At most once per transition.
type StatusNotifier func(ctx context.Context, userID int64, online bool)

// Registry maps user ids to their set of live connections. A user may hold
// arbitrarily many simultaneous connections (multi-device). It is the only
// mutable state shared across connection handlers; it is created at gateway
// startup and injected, never package-global, so tests get a fresh one.
type Registry struct {
	mu     sync.RWMutex
	conns  map[int64]map[Sender]struct{}
	notify StatusNotifier
}

func NewRegistry(notify StatusNotifier) *Registry {
	return &Registry{
		conns:  make(map[int64]map[Sender]struct{}),
		notify: notify,
	}
}

// Register adds a connection for the user. Idempotent: registering the
// same connection twice is a no-op.
func (r *Registry) Register(ctx context.Context, userID int64, conn Sender) {
	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Sender]struct{})
		r.conns[userID] = set
	}
	_, existed := set[conn]
	set[conn] = struct{}{}
	first := !ok
	r.mu.Unlock()

	if first && !existed && r.notify != nil {
		r.notify(ctx, userID, true)
	}
}

// Unregister removes one connection. When the user's set empties the key is
// deleted, so presence in the map means at least one live connection, and
// the offline notice fires exactly once for the transition.
func (r *Registry) Unregister(ctx context.Context, userID int64, conn Sender) {
	r.mu.Lock()
	var last bool
	if set, ok := r.conns[userID]; ok {
		if _, present := set[conn]; present {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.conns, userID)
				last = true
			}
		}
	}
	r.mu.Unlock()

	if last && r.notify != nil {
		r.notify(ctx, userID, false)
	}
}

// ConnectionsFor returns a snapshot of the user's live connections.
// The returned slice is safe to iterate without holding the lock.
func (r *Registry) ConnectionsFor(userID int64) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.conns[userID]
	if !ok {
		return nil
	}

	conns := make([]Sender, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// OnlineUsers reports how many users currently hold at least one connection.
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
