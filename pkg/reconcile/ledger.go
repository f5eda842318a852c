package reconcile

import (
	"fmt"

	"github.com/tsumugu-mirror/tsumugu/pkg/sharded"
	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

// Ledger accumulates local paths observed during traversal that have no
// remote counterpart, for deletion once the crawl drains. It's backed by
// a sharded.Set the same way the traversal engine's visited set is: many
// workers append concurrently, one final pass reads it all out.
type Ledger struct {
	paths     *sharded.Set
	maxDelete int
}

// NewLedger builds a Ledger whose Add reports an error once it holds
// more than maxDelete entries; a negative maxDelete means unbounded.
func NewLedger(maxDelete int) *Ledger {
	return &Ledger{paths: sharded.NewSet(16), maxDelete: maxDelete}
}

// Add records path as orphaned. The path is stored even past the cap;
// every Add that leaves the ledger holding more than maxDelete paths
// returns a DeletionCapExceeded error, so the caller can abort
// cleanup immediately rather than silently truncating the deletion list.
func (l *Ledger) Add(path string) error {
	l.paths.Store(path)
	if l.maxDelete >= 0 && l.paths.Count() > l.maxDelete {
		return tserr.New(tserr.DeletionCapExceeded, fmt.Errorf("%d paths queued for deletion exceeds cap of %d", l.paths.Count(), l.maxDelete))
	}
	return nil
}

// Paths returns every accumulated path, in no particular order.
func (l *Ledger) Paths() []string {
	return l.paths.Keys()
}

// Count returns how many paths are currently in the ledger.
func (l *Ledger) Count() int {
	return l.paths.Count()
}
