package platform

import "sync"

// Credentials identifies one platform API credential set.
type Credentials struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Cache hands out at most one Client per credential set. Construction is
// guarded so concurrent first callers for the same ClientID share a single
// client instead of each building their own.
type Cache struct {
	construct func(Credentials) Client

	mu      sync.Mutex
	clients map[string]Client
}

// NewCache creates a Cache that builds missing clients with construct.
func NewCache(construct func(Credentials) Client) *Cache {
	return &Cache{
		construct: construct,
		clients:   make(map[string]Client),
	}
}

// Get returns the cached client for creds.ClientID, constructing it on
// first use. The process-wide cache has no teardown; clients live as long
// as the server does.
func (c *Cache) Get(creds Credentials) Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[creds.ClientID]; ok {
		return client
	}
	client := c.construct(creds)
	c.clients[creds.ClientID] = client
	return client
}

// Reset drops all cached clients. Intended for tests.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = make(map[string]Client)
}

// Len returns the number of cached clients.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
