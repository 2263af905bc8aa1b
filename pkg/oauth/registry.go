package oauth

import (
	"sort"
	"sync"
)

// Registry holds the constructed clients for all configured providers.
type Registry struct {
	mu      sync.RWMutex
	clients map[Provider]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[Provider]*Client),
	}
}

// Register adds a client to the registry.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Name()] = client
}

// Get retrieves the client for a provider.
func (r *Registry) Get(p Provider) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[p]
	return c, ok
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for p := range r.clients {
		names = append(names, p.String())
	}
	sort.Strings(names)
	return names
}
