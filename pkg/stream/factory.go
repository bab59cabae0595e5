// Package stream provides the read and write streams handed out by the
// filesystem service.
//
// Input streams read the file in BufferSize chunks, pinned to the version
// the file had when it was opened, and prefetch the following chunks on the
// handle's read pool. Output streams buffer writes and upload full buffers
// as positioned appends on the handle's write pool; flushing waits for the
// uploads and commits them.
//
// Pools are created per handle on first use and registered with the
// service, which can then report whether any are still running. They stay
// alive until Factory.Shutdown is called for the handle.
package stream

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/filesystem"
)

const (
	// DefaultBufferSize is used when a stream is opened with no buffer size.
	DefaultBufferSize = 4 * 1024 * 1024

	// DefaultConcurrency is the default size of each pool.
	DefaultConcurrency = 4
)

// Config sizes the pools created by a Factory.
type Config struct {
	// ReadConcurrency bounds concurrent prefetches per handle.
	ReadConcurrency int

	// WriteConcurrency bounds concurrent appends per handle.
	WriteConcurrency int
}

// Factory implements filesystem.StreamFactory.
type Factory struct {
	cfg Config

	mu         sync.Mutex
	registrars map[string]registration
}

type registration struct {
	handle filesystem.Handle
	pools  filesystem.PoolRegistrar
}

var _ filesystem.StreamFactory = (*Factory)(nil)

// NewFactory creates a Factory. Zero sizes take DefaultConcurrency.
func NewFactory(cfg Config) *Factory {
	if cfg.ReadConcurrency <= 0 {
		cfg.ReadConcurrency = DefaultConcurrency
	}
	if cfg.WriteConcurrency <= 0 {
		cfg.WriteConcurrency = DefaultConcurrency
	}
	return &Factory{cfg: cfg, registrars: make(map[string]registration)}
}

// NewInputStream implements filesystem.StreamFactory.
func (f *Factory) NewInputStream(ctx context.Context, p filesystem.InputStreamParams) (filesystem.InputStream, error) {
	var pool filesystem.Pool
	if p.ReadAheadDepth > 0 {
		pool = f.acquire(p.Handle, p.Pools, filesystem.ReadPool, f.cfg.ReadConcurrency)
	}
	return newInputStream(ctx, p, pool), nil
}

// NewOutputStream implements filesystem.StreamFactory.
func (f *Factory) NewOutputStream(ctx context.Context, p filesystem.OutputStreamParams) (filesystem.OutputStream, error) {
	pool := f.acquire(p.Handle, p.Pools, filesystem.WritePool, f.cfg.WriteConcurrency)
	return newOutputStream(ctx, p, pool), nil
}

// acquire returns the handle's pool of kind, or nil when there is no
// registry to record it in.
func (f *Factory) acquire(h filesystem.Handle, pools filesystem.PoolRegistrar, kind filesystem.PoolKind, size int) filesystem.Pool {
	if h == nil || pools == nil {
		return nil
	}

	f.mu.Lock()
	f.registrars[h.ID()] = registration{handle: h, pools: pools}
	f.mu.Unlock()

	return pools.Acquire(h, kind, func() filesystem.Pool {
		logger.Debug("starting %s pool for filesystem: %s size: %d", kind, h.FileSystem(), size)
		return NewWorkerPool(kind.String()+":"+h.FileSystem(), size)
	})
}

// Shutdown stops and unregisters the handle's pools, waiting for running
// tasks. Streams still open for the handle fall back to synchronous calls.
func (f *Factory) Shutdown(h filesystem.Handle) {
	if h == nil {
		return
	}

	f.mu.Lock()
	reg, ok := f.registrars[h.ID()]
	delete(f.registrars, h.ID())
	f.mu.Unlock()
	if !ok {
		return
	}

	shutdownPools(reg)
}

// Close shuts down the pools of every handle this factory has served.
func (f *Factory) Close() error {
	f.mu.Lock()
	regs := f.registrars
	f.registrars = make(map[string]registration)
	f.mu.Unlock()

	var g errgroup.Group
	for _, reg := range regs {
		g.Go(func() error {
			shutdownPools(reg)
			return nil
		})
	}
	return g.Wait()
}

func shutdownPools(reg registration) {
	for _, kind := range []filesystem.PoolKind{filesystem.ReadPool, filesystem.WritePool} {
		if pool := reg.pools.Release(reg.handle, kind); pool != nil {
			pool.Shutdown()
		}
	}
}
