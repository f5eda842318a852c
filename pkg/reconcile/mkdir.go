package reconcile

import (
	"fmt"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/tsumugu-mirror/tsumugu/pkg/metrics"
	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
	"github.com/tsumugu-mirror/tsumugu/pkg/sharded"
	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

// DirEnsurer deduplicates MkdirAll calls across concurrent traversal
// workers landing on the same destination directory at roughly the same
// time — a single tsumugu listing page can fan out hundreds of file
// tasks that all need their shared parent created first.
type DirEnsurer struct {
	created *sharded.Set
	group   singleflight.Group
	metrics metrics.Metrics
}

// NewDirEnsurer builds a DirEnsurer.
func NewDirEnsurer(m metrics.Metrics) *DirEnsurer {
	if m == nil {
		m = metrics.NoopMetrics{}
	}
	return &DirEnsurer{created: sharded.NewSet(16), metrics: m}
}

// Ensure creates path and any missing parents, exactly once per path
// regardless of how many workers call Ensure concurrently. A pre-existing
// non-directory entry at path is removed first, matching how symlink
// materialization treats corrupt local state.
func (d *DirEnsurer) Ensure(path string) error {
	if d.created.Has(path) {
		return nil
	}

	_, err, _ := d.group.Do(path, func() (any, error) {
		if d.created.Has(path) {
			return nil, nil
		}

		info, statErr := os.Lstat(path)
		switch {
		case statErr == nil && !info.IsDir():
			plog.Warn("destination path exists but is not a directory, removing", "path", path, "mode", info.Mode().String())
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("remove conflicting entry at %s: %w", path, err)
			}
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", path, err)
			}
			d.metrics.AddDirsCreated(1)
		case statErr == nil:
			// already a directory
		case os.IsNotExist(statErr):
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", path, err)
			}
			d.metrics.AddDirsCreated(1)
		default:
			return nil, fmt.Errorf("lstat %s: %w", path, statErr)
		}

		d.created.Store(path)
		return nil, nil
	})
	if err != nil {
		return tserr.WithPath(tserr.FilesystemError, path, err)
	}
	return nil
}
