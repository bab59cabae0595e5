// Package dfs implements rest.Client over HTTPS against a DFS endpoint.
//
// Every call is throttled by an optional rate limiter, tagged with a fresh
// client request id, signed with the account's shared key immediately before
// dispatch and reported to the Metrics hook.
//
// URL layout:
//
//	{scheme}://{account}.{suffix}/{filesystem}[/{path}]?{query}
//
// An explicit Endpoint replaces scheme, host and any path prefix, which is
// how local emulators are addressed.
package dfs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dfsgate/internal/ratelimiter"
	"github.com/marmos91/dfsgate/pkg/auth/sharedkey"
	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// DefaultEndpointSuffix is the public cloud DNS suffix for DFS endpoints.
const DefaultEndpointSuffix = "dfs.core.windows.net"

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 90 * time.Second

// Config configures a Client.
type Config struct {
	// Account is the raw account name ("myaccount") or its full host name
	// ("myaccount.dfs.core.windows.net").
	Account string

	// AccountKey is the base64 encoded shared key.
	AccountKey string

	// FileSystem is the filesystem (container) the client is bound to.
	FileSystem string

	// EndpointSuffix is appended to the account to form the host.
	// Defaults to DefaultEndpointSuffix.
	EndpointSuffix string

	// UseHTTPS selects https over http when Endpoint is empty.
	UseHTTPS bool

	// Endpoint overrides the base URL, e.g. "http://127.0.0.1:10004/devaccount".
	Endpoint string

	// HTTPClient is used for every request. Defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout bounds each HTTP exchange when HTTPClient is nil.
	Timeout time.Duration

	// Limiter throttles outgoing requests. Nil disables throttling.
	Limiter *ratelimiter.Limiter

	// Metrics receives one observation per request. Nil disables metrics.
	Metrics Metrics
}

// Client is a rest.Client speaking the DFS REST protocol.
//
// Thread safety:
// Safe for concurrent use by multiple goroutines.
type Client struct {
	account    string
	fileSystem string
	baseURL    *url.URL
	signer     *sharedkey.Signer
	http       *http.Client
	limiter    *ratelimiter.Limiter
	metrics    Metrics
}

var _ rest.Client = (*Client)(nil)

// New creates a client for one filesystem.
func New(cfg Config) (*Client, error) {
	if cfg.FileSystem == "" {
		return nil, fmt.Errorf("dfs: filesystem name is required")
	}
	if cfg.Account == "" {
		return nil, fmt.Errorf("dfs: account name is required")
	}

	account := cfg.Account
	host := ""
	if raw, ok := ExtractRawAccount(cfg.Account); ok {
		account = raw
		host = cfg.Account
	} else if name, _, found := strings.Cut(cfg.Account, "."); found {
		// Sovereign clouds use other suffixes; the first label is still the account.
		account = name
		host = cfg.Account
	}

	signer, err := sharedkey.NewSigner(account, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("dfs: %w", err)
	}

	base, err := baseURL(cfg, account, host)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Client{
		account:    account,
		fileSystem: cfg.FileSystem,
		baseURL:    base,
		signer:     signer,
		http:       httpClient,
		limiter:    cfg.Limiter,
		metrics:    metrics,
	}, nil
}

func baseURL(cfg Config, account, host string) (*url.URL, error) {
	if cfg.Endpoint != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.Endpoint, "/"))
		if err != nil {
			return nil, fmt.Errorf("dfs: invalid endpoint %q: %w", cfg.Endpoint, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("dfs: endpoint %q must be an absolute URL", cfg.Endpoint)
		}
		return u, nil
	}

	if host == "" {
		suffix := cfg.EndpointSuffix
		if suffix == "" {
			suffix = DefaultEndpointSuffix
		}
		host = account + "." + suffix
	}

	scheme := "http"
	if cfg.UseHTTPS {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: host}, nil
}

// FileSystem returns the filesystem name.
func (c *Client) FileSystem() string { return c.fileSystem }

// Account returns the raw account name.
func (c *Client) Account() string { return c.account }

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// ============================================================================
// Filesystem Level
// ============================================================================

func (c *Client) GetFilesystemProperties(ctx context.Context) (*rest.Result, error) {
	q := url.Values{"resource": {rest.ResourceFilesystem}}
	return c.call(ctx, "get_filesystem_properties", http.MethodHead, "", q, nil, nil)
}

func (c *Client) SetFilesystemProperties(ctx context.Context, properties string) (*rest.Result, error) {
	q := url.Values{"resource": {rest.ResourceFilesystem}}
	h := http.Header{}
	h.Set(rest.HeaderProperties, properties)
	return c.call(ctx, "set_filesystem_properties", http.MethodPatch, "", q, h, nil)
}

func (c *Client) CreateFilesystem(ctx context.Context) (*rest.Result, error) {
	q := url.Values{"resource": {rest.ResourceFilesystem}}
	return c.call(ctx, "create_filesystem", http.MethodPut, "", q, nil, nil)
}

func (c *Client) DeleteFilesystem(ctx context.Context) (*rest.Result, error) {
	q := url.Values{"resource": {rest.ResourceFilesystem}}
	return c.call(ctx, "delete_filesystem", http.MethodDelete, "", q, nil, nil)
}

func (c *Client) ListPath(ctx context.Context, directory string, recursive bool, maxResults int, continuation string) (*rest.Result, error) {
	q := url.Values{
		"resource":  {rest.ResourceFilesystem},
		"recursive": {strconv.FormatBool(recursive)},
	}
	if directory != "" {
		q.Set("directory", directory)
	}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}
	if continuation != "" {
		q.Set("continuation", continuation)
	}

	result, err := c.call(ctx, "list_path", http.MethodGet, "", q, nil, nil)
	if err != nil {
		return nil, err
	}

	list, err := decodeList(result.Body)
	if err != nil {
		return nil, err
	}
	result.List = list
	result.Body = nil
	return result, nil
}

// ============================================================================
// Path Level
// ============================================================================

func (c *Client) GetPathProperties(ctx context.Context, path string) (*rest.Result, error) {
	return c.call(ctx, "get_path_properties", http.MethodHead, path, nil, nil, nil)
}

func (c *Client) SetPathProperties(ctx context.Context, path string, properties string) (*rest.Result, error) {
	q := url.Values{"action": {"setProperties"}}
	h := http.Header{}
	h.Set(rest.HeaderProperties, properties)
	return c.call(ctx, "set_path_properties", http.MethodPatch, path, q, h, nil)
}

func (c *Client) CreatePath(ctx context.Context, path string, isFile bool, overwrite bool) (*rest.Result, error) {
	resource := rest.ResourceDirectory
	if isFile {
		resource = rest.ResourceFile
	}
	q := url.Values{"resource": {resource}}

	h := http.Header{}
	if !overwrite {
		h.Set("If-None-Match", "*")
	}
	return c.call(ctx, "create_path", http.MethodPut, path, q, h, nil)
}

func (c *Client) DeletePath(ctx context.Context, path string, recursive bool, continuation string) (*rest.Result, error) {
	q := url.Values{"recursive": {strconv.FormatBool(recursive)}}
	if continuation != "" {
		q.Set("continuation", continuation)
	}
	return c.call(ctx, "delete_path", http.MethodDelete, path, q, nil, nil)
}

func (c *Client) RenamePath(ctx context.Context, source, destination string, continuation string) (*rest.Result, error) {
	q := url.Values{}
	if continuation != "" {
		q.Set("continuation", continuation)
	}

	h := http.Header{}
	h.Set(rest.HeaderRenameSource, (&url.URL{Path: "/" + c.fileSystem + source}).EscapedPath())
	return c.call(ctx, "rename_path", http.MethodPut, destination, q, h, nil)
}

// ============================================================================
// Data
// ============================================================================

func (c *Client) ReadPath(ctx context.Context, path string, offset int64, length int, eTag string) (*rest.Result, error) {
	h := http.Header{}
	h.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(length)-1))
	if eTag != "" {
		h.Set("If-Match", eTag)
	}
	return c.call(ctx, "read_path", http.MethodGet, path, nil, h, nil)
}

func (c *Client) AppendPath(ctx context.Context, path string, position int64, data []byte) (*rest.Result, error) {
	q := url.Values{
		"action":   {"append"},
		"position": {strconv.FormatInt(position, 10)},
	}
	return c.call(ctx, "append_path", http.MethodPatch, path, q, nil, data)
}

func (c *Client) FlushPath(ctx context.Context, path string, position int64) (*rest.Result, error) {
	q := url.Values{
		"action":   {"flush"},
		"position": {strconv.FormatInt(position, 10)},
	}
	return c.call(ctx, "flush_path", http.MethodPatch, path, q, nil, nil)
}
