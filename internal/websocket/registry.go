package websocket

import (
	"sync"

	"github.com/luciancaetano/kephasrpc"
)

// Subscriber is anything listeners can be attached to.
type Subscriber interface {
	Subscribe(kind kephasrpc.EventKind, listener kephasrpc.Listener)
}

// Registry keeps every listener ever registered, per event kind, in
// registration order. It is append-only.
type Registry struct {
	mu        sync.RWMutex
	listeners [kephasrpc.NumEventKinds][]kephasrpc.Listener
}

// NewRegistry creates an empty listener registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Add records listener under kind
func (r *Registry) Add(kind kephasrpc.EventKind, listener kephasrpc.Listener) {
	if listener == nil || kind < 0 || int(kind) >= kephasrpc.NumEventKinds {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[kind] = append(r.listeners[kind], listener)
}

// Len returns the number of listeners recorded under kind
func (r *Registry) Len(kind kephasrpc.EventKind) int {
	if kind < 0 || int(kind) >= kephasrpc.NumEventKinds {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[kind])
}

// AttachTo subscribes every recorded listener to s, kind by kind, in
// registration order.
func (r *Registry) AttachTo(s Subscriber) {
	r.mu.RLock()
	var snapshot [kephasrpc.NumEventKinds][]kephasrpc.Listener
	for kind := range r.listeners {
		snapshot[kind] = append([]kephasrpc.Listener(nil), r.listeners[kind]...)
	}
	r.mu.RUnlock()

	for kind, listeners := range snapshot {
		for _, listener := range listeners {
			s.Subscribe(kephasrpc.EventKind(kind), listener)
		}
	}
}
