// Package reload tracks live reload control connections and fans a single
// refresh signal out to all of them.
//
// A Registry maps client ids to Clients, each holding an unbounded queue.
// Broadcast takes a snapshot of the registry and appends to every queue in
// it, so clients registered afterwards never see that message and a client
// that stops reading never blocks the broadcaster. Handler serves one
// WebSocket connection: it registers, waits for exactly one message, sends
// it as a reload frame and closes.
package reload

import (
	"sync"
)

// Registry holds the currently connected reload clients.
//
// Invariants:
//   - clients is only accessed with mu held
//   - once closed, Register hands out clients that are already closed
type Registry struct {
	mu      sync.RWMutex
	clients map[uint64]*Client
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[uint64]*Client),
	}
}

// Register creates a client with a new id and adds it to the registry.
func (r *Registry) Register() *Client {
	client := newClient()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		client.close()
		return client
	}
	r.clients[client.id] = client

	return client
}

// Unregister removes and closes the client with id. Unknown ids are ignored.
func (r *Registry) Unregister(id uint64) {
	r.mu.Lock()
	client, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	r.mu.Unlock()

	if ok {
		client.close()
	}
}

// Broadcast queues msg for every client registered at the time of the call
// and returns how many clients it reached.
func (r *Registry) Broadcast(msg []byte) int {
	r.mu.RLock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		snapshot = append(snapshot, client)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, client := range snapshot {
		// A client unregistered since the snapshot rejects the message.
		if client.enqueue(msg) {
			delivered++
		}
	}

	return delivered
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// Close closes and removes every client. Clients registered afterwards are
// closed immediately.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[uint64]*Client)
	r.closed = true
	r.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}
