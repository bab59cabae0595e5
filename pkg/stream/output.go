package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/filesystem"
	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// outputStream implements filesystem.OutputStream.
//
// Full buffers are uploaded as positioned appends, possibly concurrently
// and out of order. Commits happen only after every upload before them
// has finished.
type outputStream struct {
	ctx          context.Context
	client       rest.Client
	pool         filesystem.Pool
	path         string
	bufferSize   int
	flushEnabled bool

	mu       sync.Mutex
	closed   bool
	buf      []byte
	position int64 // file offset of buf[0]

	uploads  sync.WaitGroup
	errMu    sync.Mutex
	firstErr error
}

func newOutputStream(ctx context.Context, p filesystem.OutputStreamParams, pool filesystem.Pool) *outputStream {
	bufferSize := p.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &outputStream{
		ctx:          ctx,
		client:       p.Client,
		pool:         pool,
		path:         p.Path,
		bufferSize:   bufferSize,
		flushEnabled: p.FlushEnabled,
		position:     p.Position,
		buf:          make([]byte, 0, bufferSize),
	}
}

func (s *outputStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if err := s.err(); err != nil {
		return 0, err
	}

	written := 0
	for len(p) > 0 {
		n := s.bufferSize - len(s.buf)
		if n > len(p) {
			n = len(p)
		}
		s.buf = append(s.buf, p[:n]...)
		p = p[n:]
		written += n

		if len(s.buf) == s.bufferSize {
			if err := s.upload(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush uploads buffered data, waits for outstanding appends and commits
// them when flushing is enabled.
func (s *outputStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.flush(s.flushEnabled)
}

// Close flushes and commits regardless of the flush setting.
func (s *outputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.flush(true)
}

func (s *outputStream) flush(commit bool) error {
	if err := s.upload(); err != nil {
		return err
	}
	s.uploads.Wait()
	if err := s.err(); err != nil {
		return err
	}
	if !commit {
		return nil
	}

	if _, err := s.client.FlushPath(s.ctx, s.path, s.position); err != nil {
		return filesystem.Classify("flush", s.path, err)
	}
	logger.Debug("flushed %s at position %d", s.path, s.position)
	return nil
}

// upload hands the buffer to the write pool and advances the position.
// Without a pool, or once the pool is shut down, it appends inline.
func (s *outputStream) upload() error {
	if len(s.buf) == 0 {
		return nil
	}

	data := s.buf
	position := s.position
	s.buf = make([]byte, 0, s.bufferSize)
	s.position += int64(len(data))

	task := func() {
		if _, err := s.client.AppendPath(s.ctx, s.path, position, data); err != nil {
			s.setErr(filesystem.Classify("append", s.path, err))
		}
	}

	if s.pool != nil {
		s.uploads.Add(1)
		err := s.pool.Submit(s.ctx, func() {
			defer s.uploads.Done()
			task()
		})
		if err == nil {
			return nil
		}
		s.uploads.Done()
		if !errors.Is(err, ErrPoolClosed) {
			s.setErr(err)
			return err
		}
	}

	task()
	return s.err()
}

func (s *outputStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.firstErr == nil {
		s.firstErr = err
	}
}

func (s *outputStream) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.firstErr
}
