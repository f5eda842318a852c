package traversal

import (
	"net/url"
	"strings"
)

// boundary fences a crawl to a single host and path prefix, mirroring
// spec's (boundary_host, boundary_prefix) pair derived from the
// upstream root URL.
type boundary struct {
	host   string
	prefix string // always ends with "/"
}

func newBoundary(root *url.URL) boundary {
	prefix := root.Path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return boundary{host: root.Hostname(), prefix: prefix}
}

// contains reports whether u falls inside the boundary.
func (b boundary) contains(u *url.URL) bool {
	return u.Hostname() == b.host && strings.HasPrefix(u.Path, b.prefix)
}

// relative splits u's path, relative to the boundary prefix, into
// non-empty path components.
func (b boundary) relative(u *url.URL) []string {
	rest := strings.TrimPrefix(u.Path, b.prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
