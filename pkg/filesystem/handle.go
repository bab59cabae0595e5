package filesystem

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Scheme prefixes qualified paths.
const Scheme = "abfs"

// Handle identifies one logical filesystem instance. Every per-instance
// cache of the Service is keyed by ID, so two handles for the same
// account and filesystem have independent clients and pools.
type Handle interface {
	ID() string
	Account() string
	FileSystem() string
}

// Instance is the default Handle implementation.
type Instance struct {
	id         string
	account    string
	fileSystem string
}

var _ Handle = (*Instance)(nil)

// NewHandle creates a handle with a fresh identity.
func NewHandle(account, fileSystem string) *Instance {
	return &Instance{id: uuid.NewString(), account: account, fileSystem: fileSystem}
}

func (i *Instance) ID() string         { return i.id }
func (i *Instance) Account() string    { return i.account }
func (i *Instance) FileSystem() string { return i.fileSystem }

// URI returns the handle's root, e.g. "abfs://data@myaccount".
func (i *Instance) URI() string {
	return Scheme + "://" + i.fileSystem + "@" + i.account
}

func (i *Instance) String() string {
	return i.URI() + " (" + i.id + ")"
}

// Qualify turns a filesystem-relative name into an absolute URI against h:
//
//	Qualify(h, "dir/file") // "abfs://data@myaccount/dir/file"
func Qualify(h Handle, name string) string {
	return Scheme + "://" + h.FileSystem() + "@" + h.Account() + "/" + strings.TrimPrefix(name, "/")
}

// isRoot reports whether p names the filesystem root.
func isRoot(p string) bool {
	return relativePath(p) == ""
}

// relativePath returns p without its scheme and authority and with one
// leading slash removed. The root is "".
func relativePath(p string) string {
	if strings.Contains(p, "://") {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	return strings.TrimPrefix(p, "/")
}

// storePath is the form passed to rest.Client path operations.
func storePath(p string) string {
	return "/" + relativePath(p)
}
