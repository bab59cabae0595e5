package filesystem

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/fserrors"
	"github.com/marmos91/dfsgate/pkg/properties"
	"github.com/marmos91/dfsgate/pkg/store/emulator"
	"github.com/marmos91/dfsgate/pkg/store/rest"
)

const lastModified = "Tue, 15 Jan 2019 10:30:00 GMT"

// lastModifiedMillis is lastModified in epoch milliseconds.
const lastModifiedMillis = int64(1547548200000)

var testConfig = Config{
	ReadBufferSize:      1024,
	WriteBufferSize:     2048,
	ReadAheadQueueDepth: 3,
	BlockSize:           512 * 1024 * 1024,
	FlushEnabled:        true,
	AtomicRenameDirs:    "/hbase",
}

func newFakeService(t *testing.T, client *fakeClient, opts ...Option) (*Service, *fakeStreams) {
	t.Helper()
	if client.fileSystem == "" {
		client.fileSystem = "fs"
	}
	streams := &fakeStreams{}
	svc, err := New(testConfig, ClientFactoryFunc(func(context.Context, Handle) (rest.Client, error) {
		return client, nil
	}), streams, opts...)
	require.NoError(t, err)
	return svc, streams
}

func newEmulatorService(t *testing.T) (*Service, *Instance) {
	t.Helper()
	store := emulator.NewMemory(emulator.Options{})
	t.Cleanup(func() { _ = store.Close() })

	svc, err := New(testConfig, ClientFactoryFunc(func(_ context.Context, h Handle) (rest.Client, error) {
		return store.Client(h.Account(), h.FileSystem()), nil
	}), &fakeStreams{})
	require.NoError(t, err)

	h := NewHandle("acct", "fs")
	require.NoError(t, svc.CreateFilesystem(context.Background(), h))
	return svc, h
}

func captureLogs(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLevel(level)
	t.Cleanup(func() {
		logger.SetOutput(os.Stdout)
		logger.SetLevel("INFO")
	})
	return &buf
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(testConfig, nil, &fakeStreams{})
	assert.True(t, fserrors.Is(err, fserrors.ErrInvalidParameter))

	_, err = New(testConfig, ClientFactoryFunc(func(context.Context, Handle) (rest.Client, error) {
		return nil, nil
	}), nil)
	assert.True(t, fserrors.Is(err, fserrors.ErrInvalidParameter))
}

// ============================================================================
// Properties
// ============================================================================

func TestProperties_RoundTrip(t *testing.T) {
	svc, h := newEmulatorService(t)
	ctx := context.Background()

	props, err := svc.GetFilesystemProperties(ctx, h)
	require.NoError(t, err)
	assert.Empty(t, props)

	want := properties.Properties{"owner": "Zoë", "purpose": "a=b,c"}
	require.NoError(t, svc.SetFilesystemProperties(ctx, h, want))
	got, err := svc.GetFilesystemProperties(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, svc.CreateDirectory(ctx, h, "/dir"))
	require.NoError(t, svc.SetPathProperties(ctx, h, "/dir", properties.Properties{"k": "v"}))
	got, err = svc.GetPathProperties(ctx, h, "/dir")
	require.NoError(t, err)
	assert.Equal(t, properties.Properties{"k": "v"}, got)
}

func TestProperties_EmptyMappingSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	client := &fakeClient{
		setFilesystemProperties: func(context.Context, string) (*rest.Result, error) {
			calls.Add(1)
			return ok(), nil
		},
		setPathProperties: func(context.Context, string, string) (*rest.Result, error) {
			calls.Add(1)
			return ok(), nil
		},
	}
	svc, _ := newFakeService(t, client)
	h := NewHandle("acct", "fs")

	require.NoError(t, svc.SetFilesystemProperties(context.Background(), h, nil))
	require.NoError(t, svc.SetPathProperties(context.Background(), h, "/p", properties.Properties{}))
	assert.Zero(t, calls.Load())
}

func TestProperties_InvalidValue(t *testing.T) {
	var calls atomic.Int32
	client := &fakeClient{
		setPathProperties: func(context.Context, string, string) (*rest.Result, error) {
			calls.Add(1)
			return ok(), nil
		},
	}
	svc, _ := newFakeService(t, client)

	err := svc.SetPathProperties(context.Background(), NewHandle("acct", "fs"), "/p", properties.Properties{"k": "日本"})
	assert.True(t, fserrors.Is(err, fserrors.ErrInvalidPropertyValue))
	assert.Zero(t, calls.Load())
}

func TestProperties_MalformedHeader(t *testing.T) {
	client := &fakeClient{
		getPathProperties: func(context.Context, string) (*rest.Result, error) {
			return ok(rest.HeaderProperties, "novalue"), nil
		},
		getFilesystemProperties: func(context.Context) (*rest.Result, error) {
			return ok(rest.HeaderProperties, "k=!!!"), nil
		},
	}
	svc, _ := newFakeService(t, client)
	h := NewHandle("acct", "fs")

	_, err := svc.GetPathProperties(context.Background(), h, "/p")
	assert.True(t, fserrors.Is(err, fserrors.ErrInvalidFormat))
	var fe *fserrors.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "/p", fe.Path)

	_, err = svc.GetFilesystemProperties(context.Background(), h)
	assert.True(t, fserrors.Is(err, fserrors.ErrInvalidFormat))
}

// ============================================================================
// Status
// ============================================================================

func TestGetFileStatus_Root(t *testing.T) {
	client := &fakeClient{
		account: "acct",
		getFilesystemProperties: func(context.Context) (*rest.Result, error) {
			return ok(rest.HeaderETag, `"0x1"`, rest.HeaderLastModified, lastModified,
				rest.HeaderContentLength, "999", rest.HeaderResourceType, rest.ResourceFile), nil
		},
	}
	svc, _ := newFakeService(t, client)
	h := NewHandle("acct", "fs")

	for _, root := range []string{"", "/", "abfs://fs@acct/", "abfs://fs@acct"} {
		t.Run(root, func(t *testing.T) {
			status, err := svc.GetFileStatus(context.Background(), h, root)
			require.NoError(t, err)
			assert.True(t, status.IsDir)
			assert.Equal(t, int64(0), status.Length)
			assert.Equal(t, 1, status.Replication)
			assert.Equal(t, testConfig.BlockSize, status.BlockSize)
			assert.Equal(t, lastModifiedMillis, status.ModificationTime)
			assert.Equal(t, `"0x1"`, status.Version)
			assert.Equal(t, "abfs://fs@acct/", status.Path)
		})
	}
}

func TestGetFileStatus_Path(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		wantLen  int64
		wantDir  bool
		wantTime int64
		wantCode *fserrors.ErrorCode
	}{
		{
			name:     "file",
			headers:  []string{rest.HeaderResourceType, "file", rest.HeaderContentLength, "42", rest.HeaderLastModified, lastModified},
			wantLen:  42,
			wantTime: lastModifiedMillis,
		},
		{
			name:    "directory case insensitive",
			headers: []string{rest.HeaderResourceType, "Directory", rest.HeaderContentLength, "0"},
			wantDir: true,
		},
		{
			name:    "missing content length",
			headers: []string{rest.HeaderResourceType, "file"},
			wantLen: -1,
		},
		{
			name:     "malformed last modified",
			headers:  []string{rest.HeaderResourceType, "file", rest.HeaderLastModified, "yesterday"},
			wantCode: ptr(fserrors.ErrInvalidFormat),
		},
		{
			name:     "malformed content length",
			headers:  []string{rest.HeaderContentLength, "lots"},
			wantCode: ptr(fserrors.ErrInvalidFormat),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			client := &fakeClient{
				getPathProperties: func(_ context.Context, p string) (*rest.Result, error) {
					gotPath = p
					return ok(tt.headers...), nil
				},
			}
			svc, _ := newFakeService(t, client)

			status, err := svc.GetFileStatus(context.Background(), NewHandle("acct", "fs"), "dir/file")
			assert.Equal(t, "/dir/file", gotPath)
			if tt.wantCode != nil {
				assert.True(t, fserrors.Is(err, *tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, status.Length)
			assert.Equal(t, tt.wantDir, status.IsDir)
			assert.Equal(t, tt.wantTime, status.ModificationTime)
			assert.Equal(t, "abfs://fs@acct/dir/file", status.Path)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestGetFileStatus_Emulator(t *testing.T) {
	svc, h := newEmulatorService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateDirectory(ctx, h, "/a/b"))

	status, err := svc.GetFileStatus(ctx, h, "/a")
	require.NoError(t, err)
	assert.True(t, status.IsDir)
	assert.NotEmpty(t, status.Version)
	assert.NotZero(t, status.ModificationTime)

	_, err = svc.GetFileStatus(ctx, h, "/missing")
	assert.True(t, fserrors.Is(err, fserrors.ErrService))
	assert.True(t, rest.IsPathNotFound(err))
}

// ============================================================================
// Listing
// ============================================================================

func TestListStatus_AccumulatesPagesInOrder(t *testing.T) {
	size := func(n int64) *int64 { return &n }
	yes := true

	pages := map[string]struct {
		entries []rest.ListEntry
		next    string
	}{
		"": {entries: []rest.ListEntry{
			{Name: "dir/a", IsDirectory: &yes, LastModified: lastModified, ETag: "e1"},
		}, next: "a"},
		"a": {entries: []rest.ListEntry{
			{Name: "dir/b", ContentLength: size(7), LastModified: ""},
			{Name: "dir/c", ContentLength: size(9), LastModified: "   "},
		}, next: "b"},
		"b": {entries: []rest.ListEntry{
			{Name: "dir/d"},
		}},
	}

	var tokens []string
	client := &fakeClient{
		account: "acct",
		listPath: func(_ context.Context, dir string, recursive bool, maxResults int, continuation string) (*rest.Result, error) {
			assert.Equal(t, "dir", dir)
			assert.False(t, recursive)
			assert.Equal(t, ListMaxResults, maxResults)
			tokens = append(tokens, continuation)

			page := pages[continuation]
			res := ok(rest.HeaderContinuation, page.next)
			res.List = &rest.ListSchema{Paths: page.entries}
			return res, nil
		},
	}
	metrics := newRecordingMetrics()
	svc, _ := newFakeService(t, client, WithMetrics(metrics))

	statuses, err := svc.ListStatus(context.Background(), NewHandle("acct", "fs"), "/dir")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "a", "b"}, tokens)

	require.Len(t, statuses, 4)
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.Path
	}
	assert.Equal(t, []string{
		"abfs://fs@acct/dir/a",
		"abfs://fs@acct/dir/b",
		"abfs://fs@acct/dir/c",
		"abfs://fs@acct/dir/d",
	}, names)

	assert.True(t, statuses[0].IsDir)
	assert.Equal(t, lastModifiedMillis, statuses[0].ModificationTime)
	assert.Equal(t, "e1", statuses[0].Version)

	assert.Equal(t, int64(7), statuses[1].Length)
	assert.Zero(t, statuses[1].ModificationTime)
	assert.Zero(t, statuses[2].ModificationTime)

	assert.False(t, statuses[3].IsDir)
	assert.Zero(t, statuses[3].Length)
	assert.Equal(t, 1, statuses[3].Replication)
	assert.Equal(t, testConfig.BlockSize, statuses[3].BlockSize)

	assert.Equal(t, 3, metrics.pages["listStatus"])
}

func TestListStatus_NoSchema(t *testing.T) {
	client := &fakeClient{
		listPath: func(context.Context, string, bool, int, string) (*rest.Result, error) {
			return ok(), nil
		},
	}
	svc, _ := newFakeService(t, client)

	_, err := svc.ListStatus(context.Background(), NewHandle("acct", "fs"), "/")
	assert.True(t, fserrors.Is(err, fserrors.ErrService))
	assert.True(t, rest.IsPathNotFound(err))
}

func TestListStatus_Emulator(t *testing.T) {
	svc, h := newEmulatorService(t)
	ctx := context.Background()

	statuses, err := svc.ListStatus(ctx, h, "/")
	require.NoError(t, err)
	assert.NotNil(t, statuses)
	assert.Empty(t, statuses)

	require.NoError(t, svc.CreateDirectory(ctx, h, "/d/sub"))
	out, err := svc.CreateFile(ctx, h, "/d/file", false)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	statuses, err = svc.ListStatus(ctx, h, "/d")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "abfs://fs@acct/d/file", statuses[0].Path)
	assert.False(t, statuses[0].IsDir)
	assert.Equal(t, "abfs://fs@acct/d/sub", statuses[1].Path)
	assert.True(t, statuses[1].IsDir)

	_, err = svc.ListStatus(ctx, h, "/nope")
	assert.True(t, rest.IsPathNotFound(err))
}

// ============================================================================
// Rename and Delete
// ============================================================================

func TestRename_Paginates(t *testing.T) {
	var calls []string
	client := &fakeClient{
		renamePath: func(_ context.Context, src, dst, continuation string) (*rest.Result, error) {
			assert.Equal(t, "/src", src)
			assert.Equal(t, "/dst", dst)
			calls = append(calls, continuation)
			next := map[string]string{"": "a", "a": "b"}[continuation]
			return ok(rest.HeaderContinuation, next), nil
		},
	}
	metrics := newRecordingMetrics()
	svc, _ := newFakeService(t, client, WithMetrics(metrics))

	require.NoError(t, svc.Rename(context.Background(), NewHandle("acct", "fs"), "src", "/dst"))
	assert.Equal(t, []string{"", "a", "b"}, calls)
	assert.Equal(t, 3, metrics.pages["rename"])
}

func TestRenameAndDelete_Timeout(t *testing.T) {
	clock := &fakeClock{now: time.Date(2019, 1, 15, 10, 30, 0, 0, time.UTC)}
	var renames, deletes int
	client := &fakeClient{
		renamePath: func(context.Context, string, string, string) (*rest.Result, error) {
			renames++
			clock.Advance(61 * time.Second)
			return ok(rest.HeaderContinuation, "more"), nil
		},
		deletePath: func(context.Context, string, bool, string) (*rest.Result, error) {
			deletes++
			clock.Advance(PaginatedTimeout + time.Millisecond)
			return ok(rest.HeaderContinuation, "more"), nil
		},
	}
	svc, _ := newFakeService(t, client, WithClock(clock.Now))
	h := NewHandle("acct", "fs")

	err := svc.Rename(context.Background(), h, "/a", "/b")
	assert.True(t, fserrors.Is(err, fserrors.ErrTimeout), "got %v", err)
	assert.Equal(t, 3, renames)

	err = svc.Delete(context.Background(), h, "/a", true)
	assert.True(t, fserrors.Is(err, fserrors.ErrTimeout), "got %v", err)
	assert.Equal(t, 1, deletes)
}

func TestDeleteAndRename_ErrorClassification(t *testing.T) {
	client := &fakeClient{
		deletePath: func(context.Context, string, bool, string) (*rest.Result, error) {
			return nil, rest.NewServiceError(http.StatusConflict, rest.CodeDirectoryNotEmpty, "not empty")
		},
		renamePath: func(context.Context, string, string, string) (*rest.Result, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc, _ := newFakeService(t, client)
	h := NewHandle("acct", "fs")

	err := svc.Delete(context.Background(), h, "/d", false)
	assert.True(t, fserrors.Is(err, fserrors.ErrService))
	assert.True(t, rest.HasCode(err, rest.CodeDirectoryNotEmpty))

	err = svc.Rename(context.Background(), h, "/a", "/b")
	assert.True(t, fserrors.Is(err, fserrors.ErrTransport))
	assert.ErrorContains(t, err, "connection reset")
}

func TestRename_AtomicDirectoryWarning(t *testing.T) {
	tests := []struct {
		name     string
		dirs     string
		source   string
		wantWarn bool
	}{
		{name: "empty entry matches every name", dirs: "", source: "/hbase/table", wantWarn: true},
		{name: "name outside configured dirs", dirs: "/hbase", source: "/data/table", wantWarn: false},
		{name: "only the last element is matched", dirs: "/hbase", source: "/hbase/table", wantWarn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t, "WARN")
			cfg := testConfig
			cfg.AtomicRenameDirs = tt.dirs
			client := &fakeClient{
				fileSystem: "fs",
				renamePath: func(context.Context, string, string, string) (*rest.Result, error) {
					return ok(), nil
				},
			}
			svc, err := New(cfg, ClientFactoryFunc(func(context.Context, Handle) (rest.Client, error) {
				return client, nil
			}), &fakeStreams{})
			require.NoError(t, err)

			require.NoError(t, svc.Rename(context.Background(), NewHandle("acct", "fs"), tt.source, "/dst"))
			if tt.wantWarn {
				assert.Contains(t, logs.String(), "[WARN]")
				assert.Contains(t, logs.String(), "not atomic")
			} else {
				assert.NotContains(t, logs.String(), "[WARN]")
			}
		})
	}
}

func TestRenameAndDelete_Emulator(t *testing.T) {
	svc, h := newEmulatorService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateDirectory(ctx, h, "/src/sub"))

	require.NoError(t, svc.Rename(ctx, h, "/src", "/dst"))
	_, err := svc.GetFileStatus(ctx, h, "/src")
	assert.True(t, rest.IsPathNotFound(err))
	status, err := svc.GetFileStatus(ctx, h, "/dst/sub")
	require.NoError(t, err)
	assert.True(t, status.IsDir)

	err = svc.Delete(ctx, h, "/dst", false)
	assert.True(t, rest.HasCode(err, rest.CodeDirectoryNotEmpty))
	require.NoError(t, svc.Delete(ctx, h, "/dst", true))
	_, err = svc.GetFileStatus(ctx, h, "/dst")
	assert.True(t, rest.IsPathNotFound(err))
}

// ============================================================================
// Streams
// ============================================================================

func TestOpenForRead(t *testing.T) {
	client := &fakeClient{
		getPathProperties: func(context.Context, string) (*rest.Result, error) {
			return ok(rest.HeaderResourceType, "file", rest.HeaderContentLength, "1234", rest.HeaderETag, `"0xE"`), nil
		},
	}
	svc, streams := newFakeService(t, client)
	h := NewHandle("acct", "fs")
	stats := &Statistics{}

	in, err := svc.OpenForRead(context.Background(), h, "/f", stats)
	require.NoError(t, err)
	require.NotNil(t, in)

	p := streams.lastInput()
	assert.Equal(t, "/f", p.Path)
	assert.Equal(t, int64(1234), p.ContentLength)
	assert.Equal(t, testConfig.ReadBufferSize, p.BufferSize)
	assert.Equal(t, testConfig.ReadAheadQueueDepth, p.ReadAheadDepth)
	assert.Equal(t, `"0xE"`, p.ETag)
	assert.Same(t, stats, p.Stats)
	assert.Same(t, client, p.Client)
}

func TestOpen_DirectoryIsPathNotFound(t *testing.T) {
	client := &fakeClient{
		getPathProperties: func(context.Context, string) (*rest.Result, error) {
			return ok(rest.HeaderResourceType, "directory", rest.HeaderContentLength, "0"), nil
		},
	}
	svc, _ := newFakeService(t, client)
	h := NewHandle("acct", "fs")

	_, err := svc.OpenForRead(context.Background(), h, "/d", nil)
	assert.True(t, fserrors.Is(err, fserrors.ErrService))
	assert.True(t, rest.IsPathNotFound(err))
	assert.ErrorContains(t, err, "must be used with files and not directories")

	_, err = svc.OpenForWrite(context.Background(), h, "/d", false)
	assert.True(t, rest.IsPathNotFound(err))
	assert.ErrorContains(t, err, "must be used with files and not directories")
}

func TestOpenForRead_MissingContentLength(t *testing.T) {
	client := &fakeClient{
		getPathProperties: func(context.Context, string) (*rest.Result, error) {
			return ok(rest.HeaderResourceType, "file"), nil
		},
	}
	svc, _ := newFakeService(t, client)

	_, err := svc.OpenForRead(context.Background(), NewHandle("acct", "fs"), "/f", nil)
	assert.True(t, fserrors.Is(err, fserrors.ErrInvalidFormat))
}

func TestOpenForWrite_Position(t *testing.T) {
	client := &fakeClient{
		getPathProperties: func(context.Context, string) (*rest.Result, error) {
			return ok(rest.HeaderResourceType, "file", rest.HeaderContentLength, "77"), nil
		},
	}
	svc, streams := newFakeService(t, client)
	h := NewHandle("acct", "fs")

	_, err := svc.OpenForWrite(context.Background(), h, "/f", false)
	require.NoError(t, err)
	assert.Equal(t, int64(77), streams.lastOutput().Position)
	assert.Equal(t, testConfig.WriteBufferSize, streams.lastOutput().BufferSize)
	assert.True(t, streams.lastOutput().FlushEnabled)

	_, err = svc.OpenForWrite(context.Background(), h, "/f", true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), streams.lastOutput().Position)
}

func TestCreateFile_Emulator(t *testing.T) {
	svc, h := newEmulatorService(t)
	ctx := context.Background()

	_, err := svc.CreateFile(ctx, h, "/f", false)
	require.NoError(t, err)

	_, err = svc.CreateFile(ctx, h, "/f", false)
	assert.True(t, rest.HasCode(err, rest.CodePathAlreadyExists))

	_, err = svc.CreateFile(ctx, h, "/f", true)
	require.NoError(t, err)
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestClientCache_CreatesOncePerHandle(t *testing.T) {
	var created atomic.Int32
	factory := ClientFactoryFunc(func(_ context.Context, h Handle) (rest.Client, error) {
		created.Add(1)
		time.Sleep(time.Millisecond)
		return &fakeClient{
			fileSystem: h.FileSystem(),
			getFilesystemProperties: func(context.Context) (*rest.Result, error) {
				return ok(), nil
			},
		}, nil
	})
	svc, err := New(testConfig, factory, &fakeStreams{})
	require.NoError(t, err)

	h := NewHandle("acct", "fs")
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetFilesystemProperties(context.Background(), h)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())

	other := NewHandle("acct", "fs")
	_, err = svc.GetFilesystemProperties(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), created.Load())
	assert.Equal(t, 2, svc.cache.len())

	require.NoError(t, svc.CloseFileSystem(h))
	assert.False(t, svc.cache.contains(h))
	_, err = svc.GetFilesystemProperties(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, int32(3), created.Load())
}

func TestClientFactoryFailure(t *testing.T) {
	svc, err := New(testConfig, ClientFactoryFunc(func(context.Context, Handle) (rest.Client, error) {
		return nil, errors.New("no credentials")
	}), &fakeStreams{})
	require.NoError(t, err)

	_, err = svc.GetFilesystemProperties(context.Background(), NewHandle("acct", "fs"))
	assert.True(t, fserrors.Is(err, fserrors.ErrTransport))

	_, err = svc.GetFilesystemProperties(context.Background(), nil)
	assert.True(t, fserrors.Is(err, fserrors.ErrInvalidParameter))
}

func TestCloseFileSystem_PoolLiveness(t *testing.T) {
	client := &fakeClient{
		getPathProperties: func(context.Context, string) (*rest.Result, error) {
			return ok(rest.HeaderResourceType, "file", rest.HeaderContentLength, "10"), nil
		},
	}
	svc, _ := newFakeService(t, client)
	h := NewHandle("acct", "fs")
	assert.False(t, svc.PoolsRunning(h))

	_, err := svc.OpenForRead(context.Background(), h, "/f", nil)
	require.NoError(t, err)
	_, err = svc.OpenForWrite(context.Background(), h, "/f", false)
	require.NoError(t, err)
	assert.True(t, svc.PoolsRunning(h))

	require.NoError(t, svc.CloseFileSystem(h))
	assert.True(t, client.closed.Load())
	assert.True(t, svc.PoolsRunning(h))

	for _, kind := range []PoolKind{ReadPool, WritePool} {
		pool := svc.Pools().Release(h, kind)
		require.NotNil(t, pool, kind.String())
		pool.Shutdown()
	}
	assert.False(t, svc.PoolsRunning(h))
	assert.False(t, svc.PoolsRunning(nil))
}

func TestShutdown(t *testing.T) {
	client := &fakeClient{
		getPathProperties: func(context.Context, string) (*rest.Result, error) {
			return ok(rest.HeaderResourceType, "file", rest.HeaderContentLength, "10"), nil
		},
	}
	svc, _ := newFakeService(t, client)
	h := NewHandle("acct", "fs")

	_, err := svc.OpenForWrite(context.Background(), h, "/f", false)
	require.NoError(t, err)
	pool := svc.pools.Acquire(h, WritePool, func() Pool { return &fakePool{} }).(*fakePool)

	require.NoError(t, svc.Shutdown())
	assert.True(t, client.closed.Load())
	assert.True(t, pool.shutdown.Load())
	assert.False(t, svc.PoolsRunning(h))
	assert.Zero(t, svc.cache.len())
}

func TestIsAtomicRenameKey(t *testing.T) {
	cfg := testConfig
	cfg.AtomicRenameDirs = "logs,/hbase"
	svc, err := New(cfg, ClientFactoryFunc(func(context.Context, Handle) (rest.Client, error) {
		return nil, nil
	}), &fakeStreams{})
	require.NoError(t, err)

	assert.True(t, svc.IsAtomicRenameKey("logs/app1"))
	assert.False(t, svc.IsAtomicRenameKey("logsXYZ"))
	assert.True(t, svc.IsAtomicRenameKey("/hbase/t1"))
}

func TestOperationMetrics(t *testing.T) {
	client := &fakeClient{
		getPathProperties: func(context.Context, string) (*rest.Result, error) {
			return nil, rest.PathNotFound("gone")
		},
	}
	metrics := newRecordingMetrics()
	svc, _ := newFakeService(t, client, WithMetrics(metrics))
	h := NewHandle("acct", "fs")

	_, _ = svc.GetPathProperties(context.Background(), h, "/x")
	_, _ = svc.GetFileStatus(context.Background(), h, "/x")

	assert.Equal(t, 1, metrics.ops["getPathProperties"])
	assert.Equal(t, 1, metrics.failed["getPathProperties"])
	assert.Equal(t, 1, metrics.failed["getFileStatus"])
}

func TestRelativePath(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"/":                  "",
		"dir/file":           "dir/file",
		"/dir/file":          "dir/file",
		"abfs://fs@acct/d/f": "d/f",
		"abfs://fs@acct":     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, relativePath(in), in)
		assert.Equal(t, want == "", isRoot(in), in)
	}
}
