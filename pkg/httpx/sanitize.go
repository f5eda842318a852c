package httpx

import (
	"net/url"
	"regexp"
)

var trailingIndexRe = regexp.MustCompile(`(?i)index\.html?$`)

// Sanitize strips a trailing index.html/index.htm (case-insensitively)
// from a URL's path. Some servers 200 a directory request by internally
// rewriting it to its index file and report that as the final URL after
// redirects; without this, every directory would look like it redirected
// to a different path and get misclassified as a symlink.
func Sanitize(u *url.URL) *url.URL {
	if !trailingIndexRe.MatchString(u.Path) {
		return u
	}
	sanitized := *u
	sanitized.Path = trailingIndexRe.ReplaceAllString(u.Path, "")
	return &sanitized
}

// SamePath reports whether a and b refer to the same resource once both
// have been sanitized and compared without a trailing slash, per the
// traversal engine's "final URL differs from U" check.
func SamePath(a, b *url.URL) bool {
	sa, sb := Sanitize(a), Sanitize(b)
	return trimTrailingSlash(sa.Path) == trimTrailingSlash(sb.Path) && sa.Host == sb.Host && sa.Scheme == sb.Scheme
}

func trimTrailingSlash(p string) string {
	if len(p) > 0 && p[len(p)-1] == '/' {
		return p[:len(p)-1]
	}
	return p
}
