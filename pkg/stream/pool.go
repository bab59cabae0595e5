package stream

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/filesystem"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

// WorkerPool runs tasks on at most size goroutines at a time.
//
// Thread safety: all methods are safe for concurrent use.
type WorkerPool struct {
	name string
	size int
	sem  *semaphore.Weighted

	// mu orders Submit's wg.Add against Shutdown's wg.Wait.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ filesystem.Pool = (*WorkerPool)(nil)

// NewWorkerPool creates a pool. A size below 1 is treated as 1.
func NewWorkerPool(name string, size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Submit runs task on a pool goroutine, blocking until a slot is free.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return err
	}

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		task()
	}()
	return nil
}

// Shutdown rejects new tasks and waits for submitted ones to finish.
// Calling it more than once is safe.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debug("%s pool shut down", p.name)
}

// Closed reports whether Shutdown has been called.
func (p *WorkerPool) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Size returns the pool's concurrency limit.
func (p *WorkerPool) Size() int {
	return p.size
}
