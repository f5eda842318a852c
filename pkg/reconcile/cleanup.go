package reconcile

import (
	"fmt"
	"os"

	"github.com/tsumugu-mirror/tsumugu/pkg/metrics"
	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

// Cleanup removes every path recorded in the ledger, unless noDelete is
// set, in which case it logs what would have been removed and returns
// without touching the filesystem. It applies no cap of its own:
// Ledger.Add reports when the cap is passed, and the traversal engine
// returns that error instead of calling Cleanup. This is only reached
// once the crawl has fully drained.
func Cleanup(ledger *Ledger, noDelete bool, m metrics.Metrics) error {
	if m == nil {
		m = metrics.NoopMetrics{}
	}

	paths := ledger.Paths()
	if len(paths) == 0 {
		return nil
	}

	if noDelete {
		plog.Info("skipping deletion of orphaned local paths", "count", len(paths))
		return nil
	}

	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			return tserr.WithPath(tserr.FilesystemError, path, fmt.Errorf("delete orphaned path: %w", err))
		}
		m.AddFilesDeleted(1)
		plog.Info("DELETE", "path", path)
	}
	return nil
}
