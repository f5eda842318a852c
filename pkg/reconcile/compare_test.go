package reconcile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/listing"
)

func writeTestFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestShouldDownloadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")
	item := listing.Item{Kind: listing.File, Size: listing.Size{Bytes: 10, Known: true}}
	if !ShouldDownload(path, item, true, 0) {
		t.Error("expected download for a missing local file")
	}
}

func TestShouldDownloadSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeTestFile(t, path, 5, time.Now())
	item := listing.Item{Kind: listing.File, Size: listing.Size{Bytes: 10, Known: true}}
	if !ShouldDownload(path, item, true, 0) {
		t.Error("expected download on size mismatch")
	}
}

func TestShouldDownloadTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	item := listing.Item{Kind: listing.File, Size: listing.Size{Bytes: 0, Known: false}}
	if !ShouldDownload(path, item, true, 0) {
		t.Error("expected download when local is a directory but remote is a file")
	}
}

func TestShouldDownloadFreshWithKnownTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	local := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeTestFile(t, path, 4, local)

	// Remote mtime is in a naive +2h timezone; subtracting the known
	// 2h offset should land exactly on the local mtime.
	remoteOffset := 2 * time.Hour
	remoteNaive := local.Add(remoteOffset)
	item := listing.Item{Kind: listing.File, Size: listing.Size{Bytes: 4, Known: true}, MTime: remoteNaive}

	if ShouldDownload(path, item, true, remoteOffset) {
		t.Error("expected file to be considered fresh once the timezone offset is applied")
	}
}

func TestShouldDownloadStaleWithUnknownTimezoneSlop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	local := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeTestFile(t, path, 4, local)

	remote := local.Add(36 * time.Hour)
	item := listing.Item{Kind: listing.File, Size: listing.Size{Bytes: 4, Known: true}, MTime: remote}

	if !ShouldDownload(path, item, false, 0) {
		t.Error("expected download once drift exceeds the 24h unknown-timezone slop")
	}
}

func TestShouldDownloadNoMTimeInfoTrustsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeTestFile(t, path, 4, time.Now())
	item := listing.Item{Kind: listing.File, Size: listing.Size{Bytes: 4, Known: true}}
	if ShouldDownload(path, item, true, 0) {
		t.Error("expected no download when remote reports no mtime and size matches")
	}
}
