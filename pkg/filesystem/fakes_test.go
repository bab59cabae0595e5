package filesystem

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// ============================================================================
// Scripted REST Client
// ============================================================================

// fakeClient answers only the calls a test scripts. Unscripted calls fail.
type fakeClient struct {
	rest.Client

	account    string
	fileSystem string

	getFilesystemProperties func(ctx context.Context) (*rest.Result, error)
	setFilesystemProperties func(ctx context.Context, props string) (*rest.Result, error)
	getPathProperties       func(ctx context.Context, path string) (*rest.Result, error)
	setPathProperties       func(ctx context.Context, path, props string) (*rest.Result, error)
	renamePath              func(ctx context.Context, src, dst, continuation string) (*rest.Result, error)
	deletePath              func(ctx context.Context, path string, recursive bool, continuation string) (*rest.Result, error)
	listPath                func(ctx context.Context, dir string, recursive bool, maxResults int, continuation string) (*rest.Result, error)

	closed atomic.Bool
}

var errUnscripted = errors.New("unscripted call")

func (c *fakeClient) FileSystem() string { return c.fileSystem }
func (c *fakeClient) Account() string    { return c.account }

func (c *fakeClient) GetFilesystemProperties(ctx context.Context) (*rest.Result, error) {
	if c.getFilesystemProperties == nil {
		return nil, errUnscripted
	}
	return c.getFilesystemProperties(ctx)
}

func (c *fakeClient) SetFilesystemProperties(ctx context.Context, props string) (*rest.Result, error) {
	if c.setFilesystemProperties == nil {
		return nil, errUnscripted
	}
	return c.setFilesystemProperties(ctx, props)
}

func (c *fakeClient) GetPathProperties(ctx context.Context, path string) (*rest.Result, error) {
	if c.getPathProperties == nil {
		return nil, errUnscripted
	}
	return c.getPathProperties(ctx, path)
}

func (c *fakeClient) SetPathProperties(ctx context.Context, path, props string) (*rest.Result, error) {
	if c.setPathProperties == nil {
		return nil, errUnscripted
	}
	return c.setPathProperties(ctx, path, props)
}

func (c *fakeClient) RenamePath(ctx context.Context, src, dst, continuation string) (*rest.Result, error) {
	if c.renamePath == nil {
		return nil, errUnscripted
	}
	return c.renamePath(ctx, src, dst, continuation)
}

func (c *fakeClient) DeletePath(ctx context.Context, path string, recursive bool, continuation string) (*rest.Result, error) {
	if c.deletePath == nil {
		return nil, errUnscripted
	}
	return c.deletePath(ctx, path, recursive, continuation)
}

func (c *fakeClient) ListPath(ctx context.Context, dir string, recursive bool, maxResults int, continuation string) (*rest.Result, error) {
	if c.listPath == nil {
		return nil, errUnscripted
	}
	return c.listPath(ctx, dir, recursive, maxResults, continuation)
}

func (c *fakeClient) Close() error {
	c.closed.Store(true)
	return nil
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func ok(kv ...string) *rest.Result {
	return &rest.Result{StatusCode: http.StatusOK, Headers: headers(kv...)}
}

// ============================================================================
// Stream Factory and Pools
// ============================================================================

type fakePool struct {
	shutdown atomic.Bool
}

func (p *fakePool) Submit(_ context.Context, task func()) error {
	task()
	return nil
}

func (p *fakePool) Shutdown() { p.shutdown.Store(true) }

type fakeStream struct {
	params any
}

func (s *fakeStream) Read([]byte) (int, error)       { return 0, errUnscripted }
func (s *fakeStream) Seek(int64, int) (int64, error) { return 0, errUnscripted }
func (s *fakeStream) Write(p []byte) (int, error)    { return len(p), nil }
func (s *fakeStream) Flush() error                   { return nil }
func (s *fakeStream) Close() error                   { return nil }

// fakeStreams records stream requests and registers one pool per kind,
// like a real factory would.
type fakeStreams struct {
	mu     sync.Mutex
	inputs []InputStreamParams
	output []OutputStreamParams
}

func (f *fakeStreams) NewInputStream(_ context.Context, p InputStreamParams) (InputStream, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, p)
	f.mu.Unlock()
	p.Pools.Acquire(p.Handle, ReadPool, func() Pool { return &fakePool{} })
	return &fakeStream{params: p}, nil
}

func (f *fakeStreams) NewOutputStream(_ context.Context, p OutputStreamParams) (OutputStream, error) {
	f.mu.Lock()
	f.output = append(f.output, p)
	f.mu.Unlock()
	p.Pools.Acquire(p.Handle, WritePool, func() Pool { return &fakePool{} })
	return &fakeStream{params: p}, nil
}

func (f *fakeStreams) lastInput() InputStreamParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[len(f.inputs)-1]
}

func (f *fakeStreams) lastOutput() OutputStreamParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output[len(f.output)-1]
}

// ============================================================================
// Clock and Metrics
// ============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMetrics struct {
	mu     sync.Mutex
	ops    map[string]int
	failed map[string]int
	pages  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ops: map[string]int{}, failed: map[string]int{}, pages: map[string]int{}}
}

func (m *recordingMetrics) ObserveOperation(op string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op]++
	if err != nil {
		m.failed[op]++
	}
}

func (m *recordingMetrics) ObservePages(op string, pages int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[op] += pages
}
