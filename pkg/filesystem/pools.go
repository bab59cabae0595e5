package filesystem

import (
	"context"
	"sync"
)

// PoolKind distinguishes the two worker pools a handle may own.
type PoolKind int

const (
	ReadPool PoolKind = iota
	WritePool
)

func (k PoolKind) String() string {
	switch k {
	case ReadPool:
		return "read"
	case WritePool:
		return "write"
	default:
		return "unknown"
	}
}

// Pool is a bounded worker pool created by a StreamFactory.
type Pool interface {
	// Submit schedules task, blocking while the pool is saturated. It fails
	// once ctx is done or the pool is shut down.
	Submit(ctx context.Context, task func()) error

	// Shutdown stops accepting tasks and waits for running ones.
	Shutdown()
}

// PoolRegistrar is the Service's record of live pools, handed to stream
// factories so they can register the pools they create.
type PoolRegistrar interface {
	// Acquire returns the handle's pool of kind, calling create and
	// registering the result if none is registered.
	Acquire(h Handle, kind PoolKind, create func() Pool) Pool

	// Release unregisters and returns the handle's pool of kind, or nil.
	// The caller shuts it down.
	Release(h Handle, kind PoolKind) Pool
}

type poolKey struct {
	handle string
	kind   PoolKind
}

// poolRegistry tracks which handles own live pools.
type poolRegistry struct {
	mu    sync.Mutex
	pools map[poolKey]Pool
}

var _ PoolRegistrar = (*poolRegistry)(nil)

func newPoolRegistry() *poolRegistry {
	return &poolRegistry{pools: make(map[poolKey]Pool)}
}

func (r *poolRegistry) Acquire(h Handle, kind PoolKind, create func() Pool) Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := poolKey{handle: h.ID(), kind: kind}
	if p, ok := r.pools[key]; ok {
		return p
	}
	p := create()
	r.pools[key] = p
	return p
}

func (r *poolRegistry) Release(h Handle, kind PoolKind) Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := poolKey{handle: h.ID(), kind: kind}
	p := r.pools[key]
	delete(r.pools, key)
	return p
}

// running reports whether h has a registered read or write pool.
func (r *poolRegistry) running(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, read := r.pools[poolKey{handle: h.ID(), kind: ReadPool}]
	_, write := r.pools[poolKey{handle: h.ID(), kind: WritePool}]
	return read || write
}

// drain unregisters every pool and returns them.
func (r *poolRegistry) drain() []Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	r.pools = make(map[poolKey]Pool)
	return out
}
