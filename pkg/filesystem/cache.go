package filesystem

import (
	"context"
	"sync"

	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// clientCache maps handle identity to its REST client.
//
// getOrCreate and remove share one lock, so a close is linearizable with
// a concurrent first use and a client is created at most once per handle.
// The factory runs under that lock.
type clientCache struct {
	mu      sync.Mutex
	clients map[string]rest.Client
}

func newClientCache() *clientCache {
	return &clientCache{clients: make(map[string]rest.Client)}
}

func (c *clientCache) getOrCreate(ctx context.Context, h Handle, factory ClientFactory) (rest.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[h.ID()]; ok {
		return client, nil
	}

	client, err := factory.Create(ctx, h)
	if err != nil {
		return nil, err
	}
	c.clients[h.ID()] = client
	return client, nil
}

func (c *clientCache) remove(h Handle) (rest.Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[h.ID()]
	delete(c.clients, h.ID())
	return client, ok
}

func (c *clientCache) contains(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.clients[h.ID()]
	return ok
}

// drain empties the cache and returns what it held.
func (c *clientCache) drain() []rest.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]rest.Client, 0, len(c.clients))
	for _, client := range c.clients {
		out = append(out, client)
	}
	c.clients = make(map[string]rest.Client)
	return out
}

func (c *clientCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
