package emulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// Client is a rest.Client over one emulated filesystem.
type Client struct {
	store      *Store
	account    string
	fileSystem string
	prefix     string
	fsKey      string
}

var _ rest.Client = (*Client)(nil)

func (c *Client) FileSystem() string { return c.fileSystem }

func (c *Client) Account() string { return c.account }

// ============================================================================
// State Access (callers hold store.mu)
// ============================================================================

func (c *Client) loadFS() (*fsRecord, error) {
	raw, ok, err := c.store.kv.Get(c.fsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errFilesystemNotFound()
	}
	var rec fsRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("emulator: decode filesystem %s: %w", c.fsKey, err)
	}
	return &rec, nil
}

func (c *Client) loadPath(name string) (*pathRecord, bool, error) {
	raw, ok, err := c.store.kv.Get(c.prefix + name)
	if err != nil || !ok {
		return nil, false, err
	}
	var rec pathRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("emulator: decode path %s: %w", name, err)
	}
	return &rec, true, nil
}

type namedRecord struct {
	name string
	rec  *pathRecord
}

// descendants returns every path below dir ("" for the root) in key order.
func (c *Client) descendants(dir string) ([]namedRecord, error) {
	prefix := c.prefix
	if dir != "" {
		prefix += dir + "/"
	}

	entries, err := c.store.kv.Scan(prefix)
	if err != nil {
		return nil, err
	}

	out := make([]namedRecord, 0, len(entries))
	for _, e := range entries {
		var rec pathRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("emulator: decode path %s: %w", e.Key, err)
		}
		out = append(out, namedRecord{name: strings.TrimPrefix(e.Key, c.prefix), rec: &rec})
	}
	return out, nil
}

// batch accumulates one atomic change.
type batch struct {
	puts    map[string][]byte
	deletes []string
	err     error
}

func (c *Client) newBatch() *batch {
	return &batch{puts: make(map[string][]byte)}
}

func (b *batch) put(key string, v any) {
	if b.err != nil {
		return
	}
	raw, err := marshal(v)
	if err != nil {
		b.err = err
		return
	}
	b.puts[key] = raw
}

func (b *batch) del(key string) {
	b.deletes = append(b.deletes, key)
}

func (c *Client) commit(b *batch) error {
	if b.err != nil {
		return b.err
	}
	return c.store.kv.Apply(b.puts, b.deletes)
}

// ensureParents queues implicit directories for every missing ancestor of name.
func (c *Client) ensureParents(b *batch, name string) error {
	parts := strings.Split(name, "/")
	for i := 1; i < len(parts); i++ {
		ancestor := strings.Join(parts[:i], "/")
		rec, ok, err := c.loadPath(ancestor)
		if err != nil {
			return err
		}
		if !ok {
			b.put(c.prefix+ancestor, c.store.newPath(true))
			continue
		}
		if !rec.Directory {
			return errConflict(rest.CodePathConflict, fmt.Sprintf("parent %q is a file", ancestor))
		}
	}
	return nil
}

func (c *Client) begin(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.store.mu.Lock()
	return c.store.mu.Unlock, nil
}

// ============================================================================
// Filesystem Level
// ============================================================================

func (c *Client) GetFilesystemProperties(ctx context.Context) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fs, err := c.loadFS()
	if err != nil {
		return nil, err
	}

	h := stampHeaders(nil, fs.ETag, fs.LastModified)
	if fs.Properties != "" {
		h.Set(rest.HeaderProperties, fs.Properties)
	}
	return result(http.StatusOK, h), nil
}

func (c *Client) SetFilesystemProperties(ctx context.Context, properties string) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return c.setFilesystemProperties(properties)
}

func (c *Client) setFilesystemProperties(properties string) (*rest.Result, error) {
	fs, err := c.loadFS()
	if err != nil {
		return nil, err
	}

	fs.Properties = properties
	fs.ETag, fs.LastModified = c.store.stamp()

	b := c.newBatch()
	b.put(c.fsKey, fs)
	if err := c.commit(b); err != nil {
		return nil, err
	}
	return result(http.StatusOK, stampHeaders(nil, fs.ETag, fs.LastModified)), nil
}

func (c *Client) CreateFilesystem(ctx context.Context) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := c.loadFS(); err == nil {
		return nil, errConflict(rest.CodeFilesystemAlreadyExists, "The specified filesystem already exists.")
	} else if !rest.HasCode(err, rest.CodeFilesystemNotFound) {
		return nil, err
	}

	fs := &fsRecord{}
	fs.ETag, fs.LastModified = c.store.stamp()

	b := c.newBatch()
	b.put(c.fsKey, fs)
	if err := c.commit(b); err != nil {
		return nil, err
	}
	return result(http.StatusCreated, stampHeaders(nil, fs.ETag, fs.LastModified)), nil
}

func (c *Client) DeleteFilesystem(ctx context.Context) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := c.loadFS(); err != nil {
		return nil, err
	}

	all, err := c.descendants("")
	if err != nil {
		return nil, err
	}

	b := c.newBatch()
	b.del(c.fsKey)
	for _, nr := range all {
		b.del(c.prefix + nr.name)
	}
	if err := c.commit(b); err != nil {
		return nil, err
	}
	return result(http.StatusAccepted, nil), nil
}

func (c *Client) ListPath(ctx context.Context, directory string, recursive bool, maxResults int, continuation string) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := c.loadFS(); err != nil {
		return nil, err
	}

	dir := cleanPath(directory)
	if dir != "" {
		rec, ok, err := c.loadPath(dir)
		if err != nil {
			return nil, err
		}
		if !ok || !rec.Directory {
			return nil, errPathNotFound()
		}
	}

	after := ""
	if continuation != "" {
		if after, err = decodeToken(continuation); err != nil {
			return nil, err
		}
	}

	all, err := c.descendants(dir)
	if err != nil {
		return nil, err
	}

	limit := c.store.pageSize
	if maxResults > 0 && maxResults < limit {
		limit = maxResults
	}

	schema := &rest.ListSchema{Paths: []rest.ListEntry{}}
	h := http.Header{}
	for _, nr := range all {
		if after != "" && nr.name <= after {
			continue
		}
		if !recursive && strings.Contains(strings.TrimPrefix(nr.name, dir+"/"), "/") {
			continue
		}
		if len(schema.Paths) == limit {
			h.Set(rest.HeaderContinuation, encodeToken(schema.Paths[limit-1].Name))
			break
		}
		schema.Paths = append(schema.Paths, listEntry(nr))
	}

	res := result(http.StatusOK, h)
	res.List = schema
	return res, nil
}

func listEntry(nr namedRecord) rest.ListEntry {
	length := int64(len(nr.rec.Data))
	e := rest.ListEntry{
		Name:          nr.name,
		ContentLength: &length,
		LastModified:  nr.rec.LastModified.UTC().Format(rest.TimeFormat),
		ETag:          nr.rec.ETag,
	}
	if nr.rec.Directory {
		isDir := true
		e.IsDirectory = &isDir
	}
	return e
}

// ============================================================================
// Path Level
// ============================================================================

func (c *Client) GetPathProperties(ctx context.Context, p string) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fs, err := c.loadFS()
	if err != nil {
		return nil, err
	}

	name := cleanPath(p)
	if name == "" {
		root := &pathRecord{Directory: true, Properties: fs.Properties, ETag: fs.ETag, LastModified: fs.LastModified}
		return result(http.StatusOK, pathHeaders(root)), nil
	}

	rec, ok, err := c.loadPath(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPathNotFound()
	}
	return result(http.StatusOK, pathHeaders(rec)), nil
}

func (c *Client) SetPathProperties(ctx context.Context, p string, properties string) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	name := cleanPath(p)
	if name == "" {
		return c.setFilesystemProperties(properties)
	}

	if _, err := c.loadFS(); err != nil {
		return nil, err
	}
	rec, ok, err := c.loadPath(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPathNotFound()
	}

	rec.Properties = properties
	c.store.touch(rec)

	b := c.newBatch()
	b.put(c.prefix+name, rec)
	if err := c.commit(b); err != nil {
		return nil, err
	}
	return result(http.StatusOK, stampHeaders(nil, rec.ETag, rec.LastModified)), nil
}

func (c *Client) CreatePath(ctx context.Context, p string, isFile bool, overwrite bool) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := c.loadFS(); err != nil {
		return nil, err
	}

	name := cleanPath(p)
	if name == "" {
		return nil, errInvalidInput("cannot create the root directory")
	}

	existing, ok, err := c.loadPath(name)
	if err != nil {
		return nil, err
	}
	if ok {
		if !overwrite {
			return nil, errConflict(rest.CodePathAlreadyExists, "The specified path already exists.")
		}
		if existing.Directory == isFile {
			return nil, errConflict(rest.CodePathConflict, "The specified path exists with a different resource type.")
		}
		if existing.Directory {
			return result(http.StatusCreated, stampHeaders(nil, existing.ETag, existing.LastModified)), nil
		}
	}

	b := c.newBatch()
	if err := c.ensureParents(b, name); err != nil {
		return nil, err
	}
	rec := c.store.newPath(!isFile)
	b.put(c.prefix+name, rec)
	if err := c.commit(b); err != nil {
		return nil, err
	}
	return result(http.StatusCreated, stampHeaders(nil, rec.ETag, rec.LastModified)), nil
}

// DeletePath removes a file, or up to one page of a directory's contents.
// The directory itself is removed with the last page.
func (c *Client) DeletePath(ctx context.Context, p string, recursive bool, continuation string) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := c.loadFS(); err != nil {
		return nil, err
	}

	name := cleanPath(p)
	if name != "" {
		rec, ok, err := c.loadPath(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errPathNotFound()
		}
		if !rec.Directory {
			b := c.newBatch()
			b.del(c.prefix + name)
			if err := c.commit(b); err != nil {
				return nil, err
			}
			return result(http.StatusOK, nil), nil
		}
	}

	children, err := c.descendants(name)
	if err != nil {
		return nil, err
	}
	if len(children) > 0 && !recursive {
		return nil, errConflict(rest.CodeDirectoryNotEmpty, "The recursive query parameter value must be true to delete a non-empty directory.")
	}

	b := c.newBatch()
	h := http.Header{}
	page := children
	if len(page) > c.store.pageSize {
		page = page[:c.store.pageSize]
		h.Set(rest.HeaderContinuation, encodeToken(page[len(page)-1].name))
	}
	for _, nr := range page {
		b.del(c.prefix + nr.name)
	}
	if h.Get(rest.HeaderContinuation) == "" && name != "" {
		b.del(c.prefix + name)
	}

	if err := c.commit(b); err != nil {
		return nil, err
	}
	return result(http.StatusOK, h), nil
}

// RenamePath moves a file, or up to one page of a directory's contents. The
// source directory disappears with the last page.
func (c *Client) RenamePath(ctx context.Context, source, destination string, continuation string) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := c.loadFS(); err != nil {
		return nil, err
	}

	src, dst := cleanPath(source), cleanPath(destination)
	if src == "" || dst == "" {
		return nil, errInvalidInput("cannot rename the root directory")
	}
	if strings.HasPrefix(dst, src+"/") {
		return nil, errInvalidInput("cannot rename a directory into itself")
	}

	srcRec, ok, err := c.loadPath(src)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rest.NewServiceError(http.StatusNotFound, rest.CodeSourcePathNotFound, "The source path for a rename operation does not exist.")
	}
	if src == dst {
		return result(http.StatusCreated, nil), nil
	}

	b := c.newBatch()
	if continuation == "" {
		dstRec, exists, err := c.loadPath(dst)
		if err != nil {
			return nil, err
		}
		if exists && (dstRec.Directory || srcRec.Directory) {
			return nil, errConflict(rest.CodePathAlreadyExists, "The specified path already exists.")
		}
		if err := c.ensureParents(b, dst); err != nil {
			return nil, err
		}
	}

	if !srcRec.Directory {
		b.put(c.prefix+dst, srcRec)
		b.del(c.prefix + src)
		if err := c.commit(b); err != nil {
			return nil, err
		}
		return result(http.StatusCreated, nil), nil
	}

	children, err := c.descendants(src)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	page := children
	if len(page) > c.store.pageSize {
		page = page[:c.store.pageSize]
		h.Set(rest.HeaderContinuation, encodeToken(page[len(page)-1].name))
	}

	b.put(c.prefix+dst, srcRec)
	for _, nr := range page {
		b.put(c.prefix+dst+strings.TrimPrefix(nr.name, src), nr.rec)
		b.del(c.prefix + nr.name)
	}
	if h.Get(rest.HeaderContinuation) == "" {
		b.del(c.prefix + src)
	}

	if err := c.commit(b); err != nil {
		return nil, err
	}
	return result(http.StatusCreated, h), nil
}

// ============================================================================
// Data
// ============================================================================

func (c *Client) loadFile(name string) (*pathRecord, error) {
	if _, err := c.loadFS(); err != nil {
		return nil, err
	}
	rec, ok, err := c.loadPath(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPathNotFound()
	}
	if rec.Directory {
		return nil, errInvalidInput("the operation is not supported on a directory")
	}
	return rec, nil
}

func (c *Client) ReadPath(ctx context.Context, p string, offset int64, length int, eTag string) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := c.loadFile(cleanPath(p))
	if err != nil {
		return nil, err
	}
	if eTag != "" && eTag != rec.ETag {
		return nil, rest.NewServiceError(http.StatusPreconditionFailed, rest.CodeConditionNotMet, "The condition specified using HTTP conditional header(s) is not met.")
	}

	size := int64(len(rec.Data))
	if length <= 0 || offset < 0 || offset >= size {
		return nil, rest.NewServiceError(http.StatusRequestedRangeNotSatisfiable, rest.CodeInvalidRange, "The range specified is invalid for the current size of the resource.")
	}

	end := offset + int64(length)
	if end > size {
		end = size
	}

	h := stampHeaders(nil, rec.ETag, rec.LastModified)
	h.Set(rest.HeaderContentLength, strconv.FormatInt(end-offset, 10))
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end-1, size))

	res := result(http.StatusPartialContent, h)
	res.Body = append([]byte(nil), rec.Data[offset:end]...)
	return res, nil
}

func (c *Client) AppendPath(ctx context.Context, p string, position int64, data []byte) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	name := cleanPath(p)
	rec, err := c.loadFile(name)
	if err != nil {
		return nil, err
	}
	if position < int64(len(rec.Data)) {
		return nil, errInvalidInput(fmt.Sprintf("append position %d is below the committed length %d", position, len(rec.Data)))
	}

	rec.Pending = append(rec.Pending, chunk{Position: position, Data: append([]byte(nil), data...)})

	b := c.newBatch()
	b.put(c.prefix+name, rec)
	if err := c.commit(b); err != nil {
		return nil, err
	}
	return result(http.StatusAccepted, nil), nil
}

// FlushPath commits staged chunks so that the file is exactly position
// bytes long. Chunks must be contiguous from the committed length.
func (c *Client) FlushPath(ctx context.Context, p string, position int64) (*rest.Result, error) {
	unlock, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	name := cleanPath(p)
	rec, err := c.loadFile(name)
	if err != nil {
		return nil, err
	}

	pending := append([]chunk(nil), rec.Pending...)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Position < pending[j].Position })

	invalid := rest.NewServiceError(http.StatusBadRequest, rest.CodeInvalidFlushPosition,
		fmt.Sprintf("flush position %d does not match the uploaded data", position))

	data := rec.Data
	cursor := int64(len(data))
	var keep []chunk
	for _, ch := range pending {
		switch {
		case ch.Position >= position:
			keep = append(keep, ch)
		case ch.Position == cursor:
			data = append(data, ch.Data...)
			cursor += int64(len(ch.Data))
		default:
			return nil, invalid
		}
	}
	if cursor != position {
		return nil, invalid
	}

	if len(keep) != len(rec.Pending) {
		rec.Data = data
		rec.Pending = keep
		c.store.touch(rec)

		b := c.newBatch()
		b.put(c.prefix+name, rec)
		if err := c.commit(b); err != nil {
			return nil, err
		}
	}

	h := stampHeaders(nil, rec.ETag, rec.LastModified)
	h.Set(rest.HeaderContentLength, "0")
	return result(http.StatusOK, h), nil
}
