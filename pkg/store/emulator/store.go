// Package emulator serves the store's REST contract from a local key-value
// engine, for tests, demos and offline use.
//
// A Store holds any number of accounts and filesystems. Each filesystem is
// addressed through a Client obtained from Store.Client, which implements
// rest.Client with the same status codes, error codes, headers and
// continuation behavior as the service:
//   - parent directories are created implicitly
//   - list, recursive delete and directory rename are served in pages of
//     Options.PageSize entries, continued through x-ms-continuation
//   - appends are staged at explicit positions and committed by flush
//   - ETags are quoted and change on every mutation
//
// Storage Model:
//
//	fs/{account}/{filesystem}         -> fsRecord (JSON)
//	p/{account}/{filesystem}/{path}   -> pathRecord (JSON)
//
// Paths are stored without a leading slash, so a prefix scan over
// "p/{account}/{filesystem}/{dir}/" yields every descendant of dir in key
// order.
//
// Thread Safety:
// All operations on one Store are serialized by a single mutex.
package emulator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// DefaultPageSize is the largest number of entries one paged call handles.
const DefaultPageSize = 5000

// Options configures a Store.
type Options struct {
	// PageSize caps entries per list, recursive delete and rename call.
	// Defaults to DefaultPageSize.
	PageSize int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Store is the shared state behind every emulated filesystem.
type Store struct {
	mu       sync.Mutex
	kv       KV
	pageSize int
	now      func() time.Time
}

// New creates a store over kv.
func New(kv KV, opts Options) *Store {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{kv: kv, pageSize: opts.PageSize, now: opts.Now}
}

// NewMemory creates a store that keeps everything in memory.
func NewMemory(opts Options) *Store {
	return New(NewMemoryKV(), opts)
}

// OpenBadger creates a store persisted by badger.
func OpenBadger(cfg BadgerConfig, opts Options) (*Store, error) {
	kv, err := OpenBadgerKV(cfg)
	if err != nil {
		return nil, err
	}
	return New(kv, opts), nil
}

// Client returns a client bound to one filesystem of one account. The
// filesystem does not need to exist yet.
func (s *Store) Client(account, fileSystem string) *Client {
	return &Client{
		store:      s,
		account:    account,
		fileSystem: fileSystem,
		prefix:     "p/" + account + "/" + fileSystem + "/",
		fsKey:      "fs/" + account + "/" + fileSystem,
	}
}

// Close releases the underlying engine.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Close()
}

// ============================================================================
// Records
// ============================================================================

type fsRecord struct {
	Properties   string    `json:"properties,omitempty"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
}

type chunk struct {
	Position int64  `json:"position"`
	Data     []byte `json:"data"`
}

type pathRecord struct {
	Directory    bool      `json:"directory"`
	Properties   string    `json:"properties,omitempty"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`

	// Data is the committed content.
	Data []byte `json:"data,omitempty"`

	// Pending holds appended chunks awaiting a flush.
	Pending []chunk `json:"pending,omitempty"`
}

func (s *Store) stamp() (string, time.Time) {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return `"0x` + id[:16] + `"`, s.now().UTC().Truncate(time.Second)
}

func (s *Store) newPath(directory bool) *pathRecord {
	etag, lm := s.stamp()
	return &pathRecord{Directory: directory, ETag: etag, LastModified: lm}
}

func (s *Store) touch(rec *pathRecord) {
	rec.ETag, rec.LastModified = s.stamp()
}

// ============================================================================
// Helpers
// ============================================================================

// cleanPath turns a request path into its storage form: no leading or
// trailing slash, "" for the root.
func cleanPath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func encodeToken(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

func decodeToken(token string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", errInvalidInput("invalid continuation token")
	}
	return string(b), nil
}

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("emulator: encode record: %w", err)
	}
	return b, nil
}

func result(status int, header http.Header) *rest.Result {
	if header == nil {
		header = http.Header{}
	}
	return &rest.Result{StatusCode: status, Headers: header}
}

func stampHeaders(h http.Header, etag string, lm time.Time) http.Header {
	if h == nil {
		h = http.Header{}
	}
	h.Set(rest.HeaderETag, etag)
	h.Set(rest.HeaderLastModified, lm.UTC().Format(rest.TimeFormat))
	return h
}

func pathHeaders(rec *pathRecord) http.Header {
	h := stampHeaders(nil, rec.ETag, rec.LastModified)
	if rec.Directory {
		h.Set(rest.HeaderResourceType, rest.ResourceDirectory)
	} else {
		h.Set(rest.HeaderResourceType, rest.ResourceFile)
	}
	h.Set(rest.HeaderContentLength, strconv.Itoa(len(rec.Data)))
	if rec.Properties != "" {
		h.Set(rest.HeaderProperties, rec.Properties)
	}
	return h
}

func errFilesystemNotFound() error {
	return rest.NewServiceError(http.StatusNotFound, rest.CodeFilesystemNotFound, "The specified filesystem does not exist.")
}

func errPathNotFound() error {
	return rest.PathNotFound("The specified path does not exist.")
}

func errInvalidInput(message string) error {
	return rest.NewServiceError(http.StatusBadRequest, rest.CodeInvalidInput, message)
}

func errConflict(code, message string) error {
	return rest.NewServiceError(http.StatusConflict, code, message)
}
