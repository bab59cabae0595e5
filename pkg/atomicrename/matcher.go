// Package atomicrename classifies paths against the configured set of
// directories for which callers assume renames are atomic.
//
// The store only approximates multi-object rename atomicity, so the
// filesystem service uses this matcher to warn when a rename touches one
// of these directories.
package atomicrename

import (
	"net/url"
	"strings"

	"github.com/marmos91/dfsgate/internal/logger"
)

// Matcher holds an immutable directory set. The zero value matches nothing.
type Matcher struct {
	dirs []string
}

// New creates a matcher over dirs. Entries may be bare path prefixes
// ("/hbase", "logs") or full URIs. An empty entry matches every key.
// Duplicates are collapsed; the order of dirs is otherwise preserved.
func New(dirs []string) *Matcher {
	seen := make(map[string]struct{}, len(dirs))
	set := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		set = append(set, d)
	}
	return &Matcher{dirs: set}
}

// Parse builds a matcher from a comma separated list. Trailing empty
// entries are dropped, but an entirely empty list yields one empty entry
// (which matches every key).
func Parse(list string) *Matcher {
	parts := strings.Split(list, ",")
	for len(parts) > 1 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return New(parts)
}

// Dirs returns a copy of the configured set.
func (m *Matcher) Dirs() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.dirs...)
}

// Match reports whether key lives under one of the configured directories.
//
// A key matches dir when it starts with dir + "/". Entries that parse as a
// URI without an authority are additionally matched on their raw text.
// Entries that fail to parse are logged and only take part in the plain
// prefix check.
func (m *Matcher) Match(key string) bool {
	if m == nil {
		return false
	}

	for _, dir := range m.dirs {
		if dir == "" || strings.HasPrefix(key, dir+"/") {
			return true
		}

		u, err := url.Parse(dir)
		if err != nil {
			logger.Info("URI syntax error creating URI for %s: %v", dir, err)
			continue
		}
		if u.Host == "" && u.User == nil {
			if strings.HasPrefix(key, dir+"/") {
				return true
			}
		}
	}

	return false
}
