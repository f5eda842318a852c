// Package reconcile compares remote listing metadata to local filesystem
// state and performs the writes that bring the two into agreement:
// downloads, symlink materialization, and capped orphan deletion.
package reconcile

import (
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/listing"
)

// LocalEntry describes one local filesystem entry. Nothing in this module
// builds one: ShouldDownload stats each candidate file itself, and the
// traversal engine's orphan check reads only entry names via os.ReadDir.
type LocalEntry struct {
	Name  string
	Kind  listing.Kind
	Size  int64
	MTime time.Time
}
