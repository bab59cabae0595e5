// Package rest defines the REST protocol surface of the store as consumed by
// the filesystem service.
//
// The filesystem service never speaks HTTP itself. It depends on Client,
// which has two implementations in this module:
//   - dfs.Client: signed HTTP calls against a real DFS endpoint
//   - emulator.Client: the same contract served from a local key-value store
//
// Paths passed to a Client are filesystem-relative and carry a leading '/'
// (for example "/dir/file.txt"). Listing takes the directory without it.
package rest

import (
	"context"
	"net/http"
)

// ============================================================================
// Header and Parameter Names
// ============================================================================

const (
	// HeaderProperties carries user metadata (see package properties).
	HeaderProperties = "x-ms-properties"

	// HeaderContinuation carries the continuation token of a paged response.
	HeaderContinuation = "x-ms-continuation"

	// HeaderResourceType is "file" or "directory" on path property responses.
	HeaderResourceType = "x-ms-resource-type"

	// HeaderRenameSource names the source of a rename, as "/{filesystem}/{path}".
	HeaderRenameSource = "x-ms-rename-source"

	// HeaderClientRequestID is a caller generated id echoed in server logs.
	HeaderClientRequestID = "x-ms-client-request-id"

	// HeaderRequestID is the server generated request id.
	HeaderRequestID = "x-ms-request-id"

	// HeaderErrorCode carries the error code on responses without a body.
	HeaderErrorCode = "x-ms-error-code"

	HeaderContentLength = "Content-Length"
	HeaderETag          = "ETag"
	HeaderLastModified  = "Last-Modified"
)

const (
	// ResourceFilesystem, ResourceFile and ResourceDirectory are the values
	// of the "resource" query parameter and of HeaderResourceType.
	ResourceFilesystem = "filesystem"
	ResourceFile       = "file"
	ResourceDirectory  = "directory"
)

// TimeFormat is the layout of Last-Modified values, always in GMT.
const TimeFormat = http.TimeFormat

// ============================================================================
// Results
// ============================================================================

// Result is the outcome of one successful REST call.
type Result struct {
	// StatusCode is the HTTP status returned by the store.
	StatusCode int

	// Headers holds every response header.
	Headers http.Header

	// List is the parsed listing schema. Only list calls set it, and it may
	// be nil when the store returned no body.
	List *ListSchema

	// Body is the raw response body of read calls.
	Body []byte
}

// Header returns the first value of the named response header, or "".
func (r *Result) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Continuation returns the continuation token, or "" when there are no more pages.
func (r *Result) Continuation() string {
	return r.Header(HeaderContinuation)
}

// ListSchema is the body of a list response.
type ListSchema struct {
	Paths []ListEntry `json:"paths"`
}

// ListEntry describes one path of a listing. Optional fields are nil when
// the store omitted them.
type ListEntry struct {
	Name          string `json:"name"`
	IsDirectory   *bool  `json:"isDirectory,omitempty"`
	ContentLength *int64 `json:"contentLength,omitempty"`
	LastModified  string `json:"lastModified,omitempty"`
	ETag          string `json:"etag,omitempty"`
}

// ============================================================================
// Client Interface
// ============================================================================

// Client issues REST calls for one filesystem (container) of one account.
//
// Every method returns a *ServiceError when the store answered with a
// structured failure. Any other error is a transport failure.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Client interface {
	// FileSystem returns the filesystem this client is bound to.
	FileSystem() string

	// Account returns the account name this client authenticates as.
	Account() string

	// ========================================================================
	// Filesystem Level
	// ========================================================================

	// GetFilesystemProperties returns the filesystem's metadata, ETag and
	// Last-Modified headers.
	GetFilesystemProperties(ctx context.Context) (*Result, error)

	// SetFilesystemProperties replaces the filesystem's metadata with the
	// encoded properties header.
	SetFilesystemProperties(ctx context.Context, properties string) (*Result, error)

	CreateFilesystem(ctx context.Context) (*Result, error)

	DeleteFilesystem(ctx context.Context) (*Result, error)

	// ========================================================================
	// Path Level
	// ========================================================================

	// GetPathProperties returns the path's metadata, resource type, content
	// length, ETag and Last-Modified headers.
	GetPathProperties(ctx context.Context, path string) (*Result, error)

	// SetPathProperties replaces the path's metadata with the encoded
	// properties header.
	SetPathProperties(ctx context.Context, path string, properties string) (*Result, error)

	// CreatePath creates a file (isFile) or directory. Without overwrite the
	// call fails with PathAlreadyExists if the path exists.
	CreatePath(ctx context.Context, path string, isFile bool, overwrite bool) (*Result, error)

	// DeletePath deletes one page worth of the path. A non-empty
	// continuation in the result means the caller must call again with it.
	DeletePath(ctx context.Context, path string, recursive bool, continuation string) (*Result, error)

	// RenamePath moves one page worth of source to destination, with the
	// same continuation contract as DeletePath.
	RenamePath(ctx context.Context, source, destination string, continuation string) (*Result, error)

	// ListPath lists at most maxResults entries below directory ("" for the
	// root). Result.List holds the entries.
	ListPath(ctx context.Context, directory string, recursive bool, maxResults int, continuation string) (*Result, error)

	// ========================================================================
	// Data
	// ========================================================================

	// ReadPath reads up to length bytes at offset into Result.Body. A
	// non-empty eTag makes the read conditional on the path's version.
	ReadPath(ctx context.Context, path string, offset int64, length int, eTag string) (*Result, error)

	// AppendPath uploads data at position without committing it.
	AppendPath(ctx context.Context, path string, position int64, data []byte) (*Result, error)

	// FlushPath commits every byte appended before position.
	FlushPath(ctx context.Context, path string, position int64) (*Result, error)
}
