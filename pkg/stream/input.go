package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/dfsgate/pkg/filesystem"
	"github.com/marmos91/dfsgate/pkg/fserrors"
	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// ErrClosed is returned by operations on a closed stream.
var ErrClosed = errors.New("stream is closed")

// prefetch is one chunk being read ahead.
type prefetch struct {
	done chan struct{}
	data []byte
	err  error
}

// inputStream implements filesystem.InputStream.
type inputStream struct {
	ctx        context.Context
	client     rest.Client
	pool       filesystem.Pool
	path       string
	eTag       string
	length     int64
	bufferSize int
	readAhead  int
	stats      *filesystem.Statistics

	mu       sync.Mutex
	closed   bool
	pos      int64
	buf      []byte
	bufStart int64
	pending  map[int64]*prefetch
}

func newInputStream(ctx context.Context, p filesystem.InputStreamParams, pool filesystem.Pool) *inputStream {
	bufferSize := p.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &inputStream{
		ctx:        ctx,
		client:     p.Client,
		pool:       pool,
		path:       p.Path,
		eTag:       p.ETag,
		length:     p.ContentLength,
		bufferSize: bufferSize,
		readAhead:  p.ReadAheadDepth,
		stats:      p.Stats,
		pending:    make(map[int64]*prefetch),
	}
}

func (s *inputStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.length {
		return 0, io.EOF
	}

	if s.pos < s.bufStart || s.pos >= s.bufStart+int64(len(s.buf)) {
		data, err := s.chunk(s.pos)
		if err != nil {
			return 0, err
		}
		s.buf = data
		s.bufStart = s.pos
	}

	n := copy(p, s.buf[s.pos-s.bufStart:])
	s.pos += int64(n)
	s.stats.AddBytesRead(int64(n))
	return n, nil
}

// chunk returns the chunk starting at offset, from a prefetch when one is
// pending, and schedules the chunks after it.
func (s *inputStream) chunk(offset int64) ([]byte, error) {
	for off := range s.pending {
		if off < offset {
			delete(s.pending, off)
		}
	}

	var data []byte
	var err error
	if f, ok := s.pending[offset]; ok {
		delete(s.pending, offset)
		select {
		case <-f.done:
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
		data, err = f.data, f.err
	} else {
		data, err = s.fetch(offset)
	}
	if err != nil {
		return nil, err
	}

	s.schedule(offset + int64(len(data)))
	return data, nil
}

// schedule queues up to readAhead chunks from offset on the read pool.
func (s *inputStream) schedule(offset int64) {
	if s.pool == nil {
		return
	}
	for i := 0; i < s.readAhead; i++ {
		off := offset + int64(i)*int64(s.bufferSize)
		if off >= s.length {
			return
		}
		if _, ok := s.pending[off]; ok {
			continue
		}

		f := &prefetch{done: make(chan struct{})}
		s.pending[off] = f
		err := s.pool.Submit(s.ctx, func() {
			defer close(f.done)
			f.data, f.err = s.fetch(off)
		})
		if err != nil {
			delete(s.pending, off)
			return
		}
	}
}

// fetch reads one chunk at offset. It does not touch stream state other
// than the statistics, so prefetch tasks may call it.
func (s *inputStream) fetch(offset int64) ([]byte, error) {
	n := int64(s.bufferSize)
	if remaining := s.length - offset; remaining < n {
		n = remaining
	}

	res, err := s.client.ReadPath(s.ctx, s.path, offset, int(n), s.eTag)
	s.stats.IncrementReadOps()
	if err != nil {
		return nil, filesystem.Classify("read", s.path, err)
	}
	if len(res.Body) == 0 {
		return nil, fserrors.Wrap(fserrors.ErrTransport,
			fmt.Sprintf("read at offset %d returned no data", offset), io.ErrUnexpectedEOF)
	}
	return res.Body, nil
}

func (s *inputStream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.length + offset
	default:
		return 0, fserrors.New(fserrors.ErrInvalidParameter, fmt.Sprintf("invalid whence %d", whence))
	}
	if target < 0 {
		return 0, fserrors.New(fserrors.ErrInvalidParameter, fmt.Sprintf("negative seek position %d", target))
	}

	s.pos = target
	return target, nil
}

func (s *inputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.buf = nil
	s.pending = make(map[int64]*prefetch)
	return nil
}
