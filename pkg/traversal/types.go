// Package traversal crawls an upstream HTTP(S) directory tree, enforcing
// a URL boundary, classifying paths through a policy.Set, and handing
// files and symlinks off to pkg/reconcile for local materialization.
package traversal

import (
	"net/url"

	"github.com/tsumugu-mirror/tsumugu/pkg/listing"
)

// TaskKind distinguishes the three things a worker can be asked to do.
type TaskKind int

const (
	ListDir TaskKind = iota
	FetchFile
	MakeSymlink
)

func (k TaskKind) String() string {
	switch k {
	case ListDir:
		return "list-dir"
	case FetchFile:
		return "fetch-file"
	case MakeSymlink:
		return "make-symlink"
	default:
		return "unknown"
	}
}

// Task is a single unit of traversal work. URL is unused for
// MakeSymlink; SymlinkTarget is unused otherwise.
type Task struct {
	URL      *url.URL
	Relative []string
	Kind     TaskKind
	Retry    int

	// FetchFile-only: the listing record that produced this task, carrying
	// the size/mtime information reconciliation needs.
	Item listing.Item

	// MakeSymlink-only: path components, relative to the local mirror
	// root, the new symlink should resolve to.
	SymlinkTarget []string
}
