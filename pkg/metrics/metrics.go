package metrics

import (
	"sync/atomic"

	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
)

// Metrics defines the interface for collecting and reporting sync
// statistics. The traversal and reconciliation packages only see this
// interface, never the concrete counters, so a NoopMetrics can stand in
// for `list` runs that never touch the local filesystem.
type Metrics interface {
	AddFilesDownloaded(n int64)
	AddBytesDownloaded(n int64)
	AddFilesUpToDate(n int64)
	AddFilesDeleted(n int64)
	AddDirsCreated(n int64)
	AddSymlinksCreated(n int64)
	AddFilesExcluded(n int64)
	AddListingErrors(n int64)
	Log()
}

// RunMetrics holds the atomic counters for a single invocation.
type RunMetrics struct {
	FilesDownloaded atomic.Int64
	BytesDownloaded atomic.Int64
	FilesUpToDate   atomic.Int64
	FilesDeleted    atomic.Int64
	DirsCreated     atomic.Int64
	SymlinksCreated atomic.Int64
	FilesExcluded   atomic.Int64
	ListingErrors   atomic.Int64
}

func (m *RunMetrics) AddFilesDownloaded(n int64) { m.FilesDownloaded.Add(n) }
func (m *RunMetrics) AddBytesDownloaded(n int64) { m.BytesDownloaded.Add(n) }
func (m *RunMetrics) AddFilesUpToDate(n int64)   { m.FilesUpToDate.Add(n) }
func (m *RunMetrics) AddFilesDeleted(n int64)    { m.FilesDeleted.Add(n) }
func (m *RunMetrics) AddDirsCreated(n int64)     { m.DirsCreated.Add(n) }
func (m *RunMetrics) AddSymlinksCreated(n int64) { m.SymlinksCreated.Add(n) }
func (m *RunMetrics) AddFilesExcluded(n int64)   { m.FilesExcluded.Add(n) }
func (m *RunMetrics) AddListingErrors(n int64)   { m.ListingErrors.Add(n) }

// Log prints a summary of the run.
func (m *RunMetrics) Log() {
	plog.Info("SUM",
		"filesDownloaded", m.FilesDownloaded.Load(),
		"bytesDownloaded", m.BytesDownloaded.Load(),
		"filesUpToDate", m.FilesUpToDate.Load(),
		"filesDeleted", m.FilesDeleted.Load(),
		"dirsCreated", m.DirsCreated.Load(),
		"symlinksCreated", m.SymlinksCreated.Load(),
		"filesExcluded", m.FilesExcluded.Load(),
		"listingErrors", m.ListingErrors.Load(),
	)
}

// NoopMetrics discards every update.
type NoopMetrics struct{}

func (NoopMetrics) AddFilesDownloaded(int64) {}
func (NoopMetrics) AddBytesDownloaded(int64) {}
func (NoopMetrics) AddFilesUpToDate(int64)   {}
func (NoopMetrics) AddFilesDeleted(int64)    {}
func (NoopMetrics) AddDirsCreated(int64)     {}
func (NoopMetrics) AddSymlinksCreated(int64) {}
func (NoopMetrics) AddFilesExcluded(int64)   {}
func (NoopMetrics) AddListingErrors(int64)   {}
func (NoopMetrics) Log()                     {}

var _ Metrics = (*RunMetrics)(nil)
var _ Metrics = NoopMetrics{}
