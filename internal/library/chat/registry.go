package chat

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Conn is the minimal surface the registry needs from a websocket
// connection, kept narrow so tests can plug in a fake.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type client struct {
	id   string
	conn Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Registry maps usernames to live connections. A reconnect under the same
// username replaces the previous connection.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*client)}
}

// Connect registers conn under username and returns the connection id.
// Any previous connection for that username is closed and dropped.
func (r *Registry) Connect(username string, conn Conn) string {
	id := uuid.NewString()
	r.mu.Lock()
	prev := r.clients[username]
	r.clients[username] = &client{id: id, conn: conn}
	r.mu.Unlock()
	if prev != nil {
		_ = prev.conn.Close()
	}
	return id
}

// Disconnect removes the connection only if it is still the one registered
// under that id; a stale disconnect after a reconnect is a no-op.
func (r *Registry) Disconnect(username, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[username]; ok && c.id == connID {
		delete(r.clients, username)
	}
}

func (r *Registry) get(username string) *client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[username]
}

func (r *Registry) all() []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Usernames returns a sorted snapshot of everyone currently connected.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clients))
	for name := range r.clients {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
