package filesystem

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// ============================================================================
// Stream Collaborators
// ============================================================================

// InputStream is a positioned reader over one remote file.
type InputStream interface {
	io.ReadSeekCloser
}

// OutputStream is a buffered writer for one remote file. Flush commits
// what has been written so far; Close flushes and releases the stream.
type OutputStream interface {
	io.WriteCloser
	Flush() error
}

// InputStreamParams describes a stream returned by OpenForRead.
type InputStreamParams struct {
	Client         rest.Client
	Handle         Handle
	Pools          PoolRegistrar
	Path           string
	ContentLength  int64
	BufferSize     int
	ReadAheadDepth int
	ETag           string
	Stats          *Statistics
}

// OutputStreamParams describes a stream returned by CreateFile or OpenForWrite.
type OutputStreamParams struct {
	Client       rest.Client
	Handle       Handle
	Pools        PoolRegistrar
	Path         string
	Position     int64
	BufferSize   int
	FlushEnabled bool
}

// StreamFactory builds the streams handed out by the Service. Any pool a
// factory creates must be registered through the params' PoolRegistrar.
type StreamFactory interface {
	NewInputStream(ctx context.Context, p InputStreamParams) (InputStream, error)
	NewOutputStream(ctx context.Context, p OutputStreamParams) (OutputStream, error)
}

// ============================================================================
// Statistics
// ============================================================================

// Statistics collects per-caller read counters. A nil *Statistics
// discards updates.
type Statistics struct {
	bytesRead atomic.Int64
	readOps   atomic.Int64
}

func (s *Statistics) AddBytesRead(n int64) {
	if s != nil {
		s.bytesRead.Add(n)
	}
}

func (s *Statistics) IncrementReadOps() {
	if s != nil {
		s.readOps.Add(1)
	}
}

func (s *Statistics) BytesRead() int64 {
	if s == nil {
		return 0
	}
	return s.bytesRead.Load()
}

func (s *Statistics) ReadOps() int64 {
	if s == nil {
		return 0
	}
	return s.readOps.Load()
}
