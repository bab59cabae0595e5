package filesystem

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dfsgate/pkg/fserrors"
	"github.com/marmos91/dfsgate/pkg/store/rest"
)

// DefaultReplication is reported for every status; the store does not
// expose replication.
const DefaultReplication = 1

// FileStatus describes one file or directory.
type FileStatus struct {
	Length           int64
	IsDir            bool
	Replication      int
	BlockSize        int64
	ModificationTime int64 // milliseconds since the Unix epoch
	Path             string
	Version          string
}

// ModTime returns ModificationTime as a time.Time in UTC.
func (s FileStatus) ModTime() time.Time {
	return time.UnixMilli(s.ModificationTime).UTC()
}

// parseLastModified converts the store's Last-Modified text to epoch
// milliseconds. Absent or blank values are 0.
func parseLastModified(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	t, err := time.ParseInLocation(rest.TimeFormat, value, time.UTC)
	if err != nil {
		return 0, fserrors.Wrap(fserrors.ErrInvalidFormat, "malformed last-modified value "+strconv.Quote(value), err)
	}
	return t.UnixMilli(), nil
}

func isDirectoryResource(resourceType string) bool {
	return strings.EqualFold(resourceType, rest.ResourceDirectory)
}

// contentLength parses the Content-Length header, or -1 when absent.
func contentLength(h http.Header) (int64, error) {
	value := strings.TrimSpace(h.Get(rest.HeaderContentLength))
	if value == "" {
		return -1, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fserrors.Wrap(fserrors.ErrInvalidFormat, "malformed content-length value "+strconv.Quote(value), err)
	}
	return n, nil
}
