// Package filesystem is the filesystem service layer on top of the store's
// REST protocol.
//
// A Service resolves one rest.Client per Handle and translates filesystem
// operations (status, listing, properties, rename, delete, streams) into
// REST calls. Paginated calls go through package pagination; rename and
// delete are bounded by PaginatedTimeout.
//
// Every error returned by a Service method is an *fserrors.Error. Store
// reported failures are classified as fserrors.ErrService and keep the
// *rest.ServiceError as their cause:
//
//	_, err := svc.OpenForRead(ctx, h, "/dir", nil)
//	if rest.IsPathNotFound(err) {
//	    // missing, or a directory
//	}
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/atomicrename"
	"github.com/marmos91/dfsgate/pkg/fserrors"
	"github.com/marmos91/dfsgate/pkg/pagination"
	"github.com/marmos91/dfsgate/pkg/properties"
	"github.com/marmos91/dfsgate/pkg/store/rest"
)

const (
	// PaginatedTimeout bounds rename and delete loops.
	PaginatedTimeout = 180000 * time.Millisecond

	// ListMaxResults caps the entries requested per list page.
	ListMaxResults = 5000
)

// ClientFactory creates the REST client of a handle.
type ClientFactory interface {
	Create(ctx context.Context, h Handle) (rest.Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(ctx context.Context, h Handle) (rest.Client, error)

func (f ClientFactoryFunc) Create(ctx context.Context, h Handle) (rest.Client, error) {
	return f(ctx, h)
}

// Config holds the tunables the Service applies to streams and statuses.
type Config struct {
	ReadBufferSize      int
	WriteBufferSize     int
	ReadAheadQueueDepth int
	BlockSize           int64
	FlushEnabled        bool

	// AtomicRenameDirs is the comma separated list of directories whose
	// renames callers expect to be atomic.
	AtomicRenameDirs string
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics sets the operation metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the clock used for pagination deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service implements filesystem operations for any number of handles.
//
// Thread safety: all methods are safe for concurrent use.
type Service struct {
	cfg     Config
	clients ClientFactory
	streams StreamFactory
	matcher *atomicrename.Matcher
	cache   *clientCache
	pools   *poolRegistry
	metrics Metrics
	now     func() time.Time
}

// New creates a Service.
func New(cfg Config, clients ClientFactory, streams StreamFactory, opts ...Option) (*Service, error) {
	if clients == nil {
		return nil, fserrors.New(fserrors.ErrInvalidParameter, "client factory is required")
	}
	if streams == nil {
		return nil, fserrors.New(fserrors.ErrInvalidParameter, "stream factory is required")
	}

	s := &Service{
		cfg:     cfg,
		clients: clients,
		streams: streams,
		matcher: atomicrename.Parse(cfg.AtomicRenameDirs),
		cache:   newClientCache(),
		pools:   newPoolRegistry(),
		metrics: noopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Pools returns the registry stream factories register their pools with.
func (s *Service) Pools() PoolRegistrar {
	return s.pools
}

// client resolves the handle's client, creating it on first use.
func (s *Service) client(ctx context.Context, h Handle) (rest.Client, error) {
	if h == nil {
		return nil, fserrors.New(fserrors.ErrInvalidParameter, "filesystem handle is required")
	}
	c, err := s.cache.getOrCreate(ctx, h, s.clients)
	if err != nil {
		return nil, Classify("create client", "", err)
	}
	return c, nil
}

func (s *Service) observe(op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, time.Since(start), err)
}

// ============================================================================
// Properties
// ============================================================================

// GetFilesystemProperties returns the filesystem's user metadata.
func (s *Service) GetFilesystemProperties(ctx context.Context, h Handle) (props properties.Properties, err error) {
	defer func(start time.Time) { s.observe("getFilesystemProperties", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return nil, err
	}
	logger.Debug("getFilesystemProperties for filesystem: %s", client.FileSystem())

	res, err := client.GetFilesystemProperties(ctx)
	if err != nil {
		return nil, Classify("getFilesystemProperties", "", err)
	}
	return decodeProperties(res, "")
}

// SetFilesystemProperties replaces the filesystem's user metadata. An empty
// mapping issues no request.
func (s *Service) SetFilesystemProperties(ctx context.Context, h Handle, props properties.Properties) (err error) {
	defer func(start time.Time) { s.observe("setFilesystemProperties", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return err
	}
	logger.Debug("setFilesystemProperties for filesystem: %s with properties: %v", client.FileSystem(), props)

	if len(props) == 0 {
		return nil
	}
	encoded, err := properties.Encode(props)
	if err != nil {
		return err
	}
	if _, err := client.SetFilesystemProperties(ctx, encoded); err != nil {
		return Classify("setFilesystemProperties", "", err)
	}
	return nil
}

// GetPathProperties returns the path's user metadata.
func (s *Service) GetPathProperties(ctx context.Context, h Handle, p string) (props properties.Properties, err error) {
	defer func(start time.Time) { s.observe("getPathProperties", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return nil, err
	}
	logger.Debug("getPathProperties for filesystem: %s path: %s", client.FileSystem(), p)

	res, err := client.GetPathProperties(ctx, storePath(p))
	if err != nil {
		return nil, Classify("getPathProperties", p, err)
	}
	return decodeProperties(res, p)
}

// SetPathProperties replaces the path's user metadata. An empty mapping
// issues no request.
func (s *Service) SetPathProperties(ctx context.Context, h Handle, p string, props properties.Properties) (err error) {
	defer func(start time.Time) { s.observe("setPathProperties", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return err
	}
	logger.Debug("setPathProperties for filesystem: %s path: %s with properties: %v", client.FileSystem(), p, props)

	if len(props) == 0 {
		return nil
	}
	encoded, err := properties.Encode(props)
	if err != nil {
		return err
	}
	if _, err := client.SetPathProperties(ctx, storePath(p), encoded); err != nil {
		return Classify("setPathProperties", p, err)
	}
	return nil
}

func decodeProperties(res *rest.Result, p string) (properties.Properties, error) {
	props, err := properties.Decode(res.Header(rest.HeaderProperties))
	if err != nil {
		var fe *fserrors.Error
		if p != "" && errors.As(err, &fe) {
			return nil, fe.WithPath(p)
		}
		return nil, err
	}
	return props, nil
}

// ============================================================================
// Filesystem Lifecycle
// ============================================================================

// CreateFilesystem creates the handle's filesystem on the store.
func (s *Service) CreateFilesystem(ctx context.Context, h Handle) (err error) {
	defer func(start time.Time) { s.observe("createFilesystem", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return err
	}
	logger.Debug("createFilesystem for filesystem: %s", client.FileSystem())

	if _, err := client.CreateFilesystem(ctx); err != nil {
		return Classify("createFilesystem", "", err)
	}
	return nil
}

// DeleteFilesystem deletes the handle's filesystem and everything in it.
func (s *Service) DeleteFilesystem(ctx context.Context, h Handle) (err error) {
	defer func(start time.Time) { s.observe("deleteFilesystem", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return err
	}
	logger.Debug("deleteFilesystem for filesystem: %s", client.FileSystem())

	if _, err := client.DeleteFilesystem(ctx); err != nil {
		return Classify("deleteFilesystem", "", err)
	}
	return nil
}

// ============================================================================
// Files and Directories
// ============================================================================

// CreateFile creates p as a file and returns a stream writing from offset 0.
func (s *Service) CreateFile(ctx context.Context, h Handle, p string, overwrite bool) (out OutputStream, err error) {
	defer func(start time.Time) { s.observe("createFile", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return nil, err
	}
	logger.Debug("createFile filesystem: %s path: %s overwrite: %t", client.FileSystem(), p, overwrite)

	if _, err := client.CreatePath(ctx, storePath(p), true, overwrite); err != nil {
		return nil, Classify("createFile", p, err)
	}
	return s.newOutputStream(ctx, client, h, p, 0)
}

// CreateDirectory creates p as a directory.
func (s *Service) CreateDirectory(ctx context.Context, h Handle, p string) (err error) {
	defer func(start time.Time) { s.observe("createDirectory", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return err
	}
	logger.Debug("createDirectory filesystem: %s path: %s", client.FileSystem(), p)

	if _, err := client.CreatePath(ctx, storePath(p), false, true); err != nil {
		return Classify("createDirectory", p, err)
	}
	return nil
}

// OpenForRead returns a stream over the current version of file p. stats
// may be nil.
func (s *Service) OpenForRead(ctx context.Context, h Handle, p string, stats *Statistics) (in InputStream, err error) {
	defer func(start time.Time) { s.observe("openFileForRead", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return nil, err
	}
	logger.Debug("openFileForRead filesystem: %s path: %s", client.FileSystem(), p)

	res, err := client.GetPathProperties(ctx, storePath(p))
	if err != nil {
		return nil, Classify("openFileForRead", p, err)
	}
	if isDirectoryResource(res.Header(rest.HeaderResourceType)) {
		return nil, Classify("openFileForRead", p,
			rest.PathNotFound("openFileForRead must be used with files and not directories"))
	}

	length, err := contentLength(res.Headers)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fserrors.New(fserrors.ErrInvalidFormat, "openFileForRead: store returned no content length").WithPath(p)
	}

	in, err = s.streams.NewInputStream(ctx, InputStreamParams{
		Client:         client,
		Handle:         h,
		Pools:          s.pools,
		Path:           storePath(p),
		ContentLength:  length,
		BufferSize:     s.cfg.ReadBufferSize,
		ReadAheadDepth: s.cfg.ReadAheadQueueDepth,
		ETag:           res.Header(rest.HeaderETag),
		Stats:          stats,
	})
	if err != nil {
		return nil, Classify("openFileForRead", p, err)
	}
	return in, nil
}

// OpenForWrite returns a stream writing to file p, from offset 0 when
// overwrite is set and appending otherwise.
func (s *Service) OpenForWrite(ctx context.Context, h Handle, p string, overwrite bool) (out OutputStream, err error) {
	defer func(start time.Time) { s.observe("openFileForWrite", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return nil, err
	}
	logger.Debug("openFileForWrite filesystem: %s path: %s overwrite: %t", client.FileSystem(), p, overwrite)

	res, err := client.GetPathProperties(ctx, storePath(p))
	if err != nil {
		return nil, Classify("openFileForWrite", p, err)
	}
	if isDirectoryResource(res.Header(rest.HeaderResourceType)) {
		return nil, Classify("openFileForWrite", p,
			rest.PathNotFound("openFileForWrite must be used with files and not directories"))
	}

	length, err := contentLength(res.Headers)
	if err != nil {
		return nil, err
	}

	var position int64
	if !overwrite {
		if length < 0 {
			return nil, fserrors.New(fserrors.ErrInvalidFormat, "openFileForWrite: store returned no content length").WithPath(p)
		}
		position = length
	}
	return s.newOutputStream(ctx, client, h, p, position)
}

func (s *Service) newOutputStream(ctx context.Context, client rest.Client, h Handle, p string, position int64) (OutputStream, error) {
	out, err := s.streams.NewOutputStream(ctx, OutputStreamParams{
		Client:       client,
		Handle:       h,
		Pools:        s.pools,
		Path:         storePath(p),
		Position:     position,
		BufferSize:   s.cfg.WriteBufferSize,
		FlushEnabled: s.cfg.FlushEnabled,
	})
	if err != nil {
		return nil, Classify("open output stream", p, err)
	}
	return out, nil
}

// Rename moves source to destination.
//
// Directory renames may take several store calls. If they do not finish
// within PaginatedTimeout the operation fails with ErrTimeout and the
// entries moved so far stay moved.
func (s *Service) Rename(ctx context.Context, h Handle, source, destination string) (err error) {
	defer func(start time.Time) { s.observe("rename", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return err
	}
	logger.Debug("renameAsync filesystem: %s source: %s destination: %s", client.FileSystem(), source, destination)

	// Only the last element of source is matched against the configured
	// directories, so "/hbase/table" is not flagged for "/hbase".
	if s.IsAtomicRenameKey(path.Base(relativePath(source))) {
		logger.Warn("The atomic rename feature is not supported by the store, rename of %s to %s is not atomic", source, destination)
	}

	src, dst := storePath(source), storePath(destination)
	pages, err := pagination.Run(ctx, s.paginated("rename"), func(ctx context.Context, continuation string) (string, error) {
		res, err := client.RenamePath(ctx, src, dst, continuation)
		if err != nil {
			return "", Classify("rename", source, err)
		}
		return res.Continuation(), nil
	})
	s.metrics.ObservePages("rename", pages)
	return err
}

// Delete removes p, and everything below it when recursive is set. The
// timeout contract is the same as Rename's.
func (s *Service) Delete(ctx context.Context, h Handle, p string, recursive bool) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return err
	}
	logger.Debug("delete filesystem: %s path: %s recursive: %t", client.FileSystem(), p, recursive)

	target := storePath(p)
	pages, err := pagination.Run(ctx, s.paginated("delete"), func(ctx context.Context, continuation string) (string, error) {
		res, err := client.DeletePath(ctx, target, recursive, continuation)
		if err != nil {
			return "", Classify("delete", p, err)
		}
		return res.Continuation(), nil
	})
	s.metrics.ObservePages("delete", pages)
	return err
}

func (s *Service) paginated(op string) pagination.Options {
	return pagination.Options{Operation: op, Timeout: PaginatedTimeout, Now: s.now}
}

// ============================================================================
// Status
// ============================================================================

// GetFileStatus describes p. The root is always a directory of length 0.
func (s *Service) GetFileStatus(ctx context.Context, h Handle, p string) (status *FileStatus, err error) {
	defer func(start time.Time) { s.observe("getFileStatus", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return nil, err
	}
	logger.Debug("getFileStatus filesystem: %s path: %s", client.FileSystem(), p)

	if isRoot(p) {
		res, err := client.GetFilesystemProperties(ctx)
		if err != nil {
			return nil, Classify("getFileStatus", p, err)
		}
		modified, err := parseLastModified(res.Header(rest.HeaderLastModified))
		if err != nil {
			return nil, err
		}
		return &FileStatus{
			Length:           0,
			IsDir:            true,
			Replication:      DefaultReplication,
			BlockSize:        s.cfg.BlockSize,
			ModificationTime: modified,
			Path:             Qualify(h, ""),
			Version:          res.Header(rest.HeaderETag),
		}, nil
	}

	res, err := client.GetPathProperties(ctx, storePath(p))
	if err != nil {
		return nil, Classify("getFileStatus", p, err)
	}
	length, err := contentLength(res.Headers)
	if err != nil {
		return nil, err
	}
	modified, err := parseLastModified(res.Header(rest.HeaderLastModified))
	if err != nil {
		return nil, err
	}
	return &FileStatus{
		Length:           length,
		IsDir:            isDirectoryResource(res.Header(rest.HeaderResourceType)),
		Replication:      DefaultReplication,
		BlockSize:        s.cfg.BlockSize,
		ModificationTime: modified,
		Path:             Qualify(h, relativePath(p)),
		Version:          res.Header(rest.HeaderETag),
	}, nil
}

// ListStatus returns the direct children of directory p in store order.
func (s *Service) ListStatus(ctx context.Context, h Handle, p string) (statuses []FileStatus, err error) {
	defer func(start time.Time) { s.observe("listStatus", start, err) }(time.Now())

	client, err := s.client(ctx, h)
	if err != nil {
		return nil, err
	}
	logger.Debug("listStatus filesystem: %s path: %s", client.FileSystem(), p)

	dir := relativePath(p)
	calls := 0
	pages, err := pagination.Collect(ctx, pagination.Options{Operation: "listStatus", Now: s.now},
		func(ctx context.Context, continuation string) ([]rest.ListEntry, string, error) {
			calls++
			res, err := client.ListPath(ctx, dir, false, ListMaxResults, continuation)
			if err != nil {
				return nil, "", Classify("listStatus", p, err)
			}
			if res.List == nil {
				return nil, "", Classify("listStatus", p, rest.PathNotFound("listStatus path not found"))
			}
			return res.List.Paths, res.Continuation(), nil
		})
	s.metrics.ObservePages("listStatus", calls)
	if err != nil {
		return nil, err
	}

	statuses = []FileStatus{}
	for _, page := range pages {
		for _, entry := range page {
			status, err := s.entryStatus(h, entry)
			if err != nil {
				return nil, err
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func (s *Service) entryStatus(h Handle, entry rest.ListEntry) (FileStatus, error) {
	modified, err := parseLastModified(entry.LastModified)
	if err != nil {
		return FileStatus{}, err
	}

	status := FileStatus{
		Replication:      DefaultReplication,
		BlockSize:        s.cfg.BlockSize,
		ModificationTime: modified,
		Path:             Qualify(h, entry.Name),
		Version:          entry.ETag,
	}
	if entry.ContentLength != nil {
		status.Length = *entry.ContentLength
	}
	if entry.IsDirectory != nil {
		status.IsDir = *entry.IsDirectory
	}
	return status, nil
}

// ============================================================================
// Lifecycle
// ============================================================================

// IsAtomicRenameKey reports whether key lies in a directory configured for
// atomic rename.
func (s *Service) IsAtomicRenameKey(key string) bool {
	return s.matcher.Match(key)
}

// CloseFileSystem drops the handle's cached client. Worker pools created
// for the handle are not stopped; their owner shuts them down.
func (s *Service) CloseFileSystem(h Handle) error {
	if h == nil {
		return nil
	}
	client, ok := s.cache.remove(h)
	if !ok {
		return nil
	}
	logger.Debug("closeFileSystem for filesystem: %s", h.FileSystem())
	return closeClient(client)
}

// PoolsRunning reports whether a read or write pool is still registered
// for the handle.
func (s *Service) PoolsRunning(h Handle) bool {
	if h == nil {
		return false
	}
	return s.pools.running(h)
}

// Shutdown drops every cached client and stops every registered pool.
func (s *Service) Shutdown() error {
	var errs []error
	for _, client := range s.cache.drain() {
		if err := closeClient(client); err != nil {
			errs = append(errs, err)
		}
	}
	for _, pool := range s.pools.drain() {
		pool.Shutdown()
	}
	return errors.Join(errs...)
}

func closeClient(client rest.Client) error {
	if c, ok := client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ============================================================================
// Error Classification
// ============================================================================

// Classify wraps a collaborator failure into the service taxonomy. Errors
// that are already classified pass through unchanged.
func Classify(op, p string, err error) error {
	if err == nil {
		return nil
	}

	var fe *fserrors.Error
	if errors.As(err, &fe) {
		return err
	}

	code := fserrors.ErrTransport
	if _, ok := rest.AsServiceError(err); ok {
		code = fserrors.ErrService
	}
	return &fserrors.Error{
		Code:    code,
		Message: fmt.Sprintf("%s failed", op),
		Path:    p,
		Err:     err,
	}
}
