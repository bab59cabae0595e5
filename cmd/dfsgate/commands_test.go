package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfsgate/pkg/config"
	"github.com/marmos91/dfsgate/pkg/filesystem"
	"github.com/marmos91/dfsgate/pkg/store/emulator"
	"github.com/marmos91/dfsgate/pkg/store/rest"
	"github.com/marmos91/dfsgate/pkg/stream"
)

func newSession(t *testing.T) *session {
	t.Helper()
	cfg := config.GetDefaultConfig()

	store := emulator.NewMemory(emulator.Options{})
	clients := filesystem.ClientFactoryFunc(func(_ context.Context, h filesystem.Handle) (rest.Client, error) {
		return store.Client(h.Account(), h.FileSystem()), nil
	})
	svc, err := filesystem.New(config.ServiceConfig(cfg), clients, stream.NewFactory(config.StreamConfig(cfg)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown() })

	s := &session{svc: svc, handle: filesystem.NewHandle("acct", "data"), cfg: cfg}
	require.NoError(t, runMkfs(context.Background(), s, nil))
	return s
}

func TestParseProperties(t *testing.T) {
	props, err := parseProperties([]string{"owner=alice", "empty=", "expr=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "alice", props["owner"])
	assert.Equal(t, "", props["empty"])
	assert.Equal(t, "a=b", props["expr"])

	_, err = parseProperties([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseProperties([]string{"=value"})
	assert.Error(t, err)
}

func TestFormatStatus(t *testing.T) {
	line := formatStatus(filesystem.FileStatus{
		Length:           42,
		IsDir:            false,
		ModificationTime: 1547548200000,
		Path:             "abfs://data@acct/file",
	})
	assert.Equal(t, "-           42 2019-01-15T10:30:00Z abfs://data@acct/file", line)
}

func TestCommands_FileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	local := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(local, []byte("payload"), 0644))

	require.NoError(t, runMkdir(ctx, s, []string{"/dir"}))
	require.NoError(t, runPut(ctx, s, []string{local, "/dir/a.txt"}))
	assert.Error(t, runPut(ctx, s, []string{local, "/dir/a.txt"}), "put without -overwrite must not replace")
	require.NoError(t, runPut(ctx, s, []string{"-overwrite", local, "/dir/a.txt"}))

	st, err := s.svc.GetFileStatus(ctx, s.handle, "/dir/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), st.Length)

	require.NoError(t, runSetProps(ctx, s, []string{"-path", "/dir/a.txt", "owner=alice"}))
	props, err := s.svc.GetPathProperties(ctx, s.handle, "/dir/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alice", props["owner"])

	require.NoError(t, runMv(ctx, s, []string{"/dir", "/moved"}))
	_, err = s.svc.GetFileStatus(ctx, s.handle, "/moved/a.txt")
	require.NoError(t, err)

	assert.Error(t, runRm(ctx, s, []string{"/moved"}), "non-recursive delete of a non-empty directory")
	require.NoError(t, runRm(ctx, s, []string{"-r", "/moved"}))
	_, err = s.svc.GetFileStatus(ctx, s.handle, "/moved")
	assert.True(t, rest.IsPathNotFound(err))
}

func TestCommands_ArgumentCount(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	assert.Error(t, runStat(ctx, s, nil))
	assert.Error(t, runMv(ctx, s, []string{"/only-one"}))
	assert.Error(t, runMkfs(ctx, s, []string{"extra"}))
}

func TestCommands_FilesystemProperties(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	require.NoError(t, runSetProps(ctx, s, []string{"team=storage"}))
	props, err := s.svc.GetFilesystemProperties(ctx, s.handle)
	require.NoError(t, err)
	assert.Equal(t, "storage", props["team"])
}
