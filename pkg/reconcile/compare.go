package reconcile

import (
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/tsumugu-mirror/tsumugu/pkg/listing"
	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
)

// freshnessSlopUnknownTZ is how far local and remote mtimes may drift
// before a re-download is triggered when the remote clock's offset from
// UTC is unknown (the naive mtime is then assumed to already be UTC).
const freshnessSlopUnknownTZ = 24 * time.Hour

// freshnessSlopKnownTZ is the tighter tolerance used once the remote
// timezone has been resolved (by explicit flag or the startup probe).
const freshnessSlopKnownTZ = time.Minute

// ShouldDownload decides whether remote should be fetched given the local
// file at path (absent if stat fails with fs.ErrNotExist). remoteTZKnown
// reports whether remoteOffset reflects a resolved timezone (vs. the
// zero-value default meaning "treat the listing mtime as UTC already").
func ShouldDownload(path string, remote listing.Item, remoteTZKnown bool, remoteOffset time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			plog.Warn("failed to stat local path, forcing download", "path", path, "error", err)
		}
		return true
	}

	if !compareFileType(info, remote.Kind) {
		plog.Warn("type mismatch, forcing download", "path", path, "remote_kind", remote.Kind)
		return true
	}

	if remote.Size.Known && info.Size() != remote.Size.Bytes {
		return true
	}

	if remote.MTime.IsZero() {
		return false
	}

	remoteMTime := remote.MTime.UTC()
	if remoteTZKnown {
		remoteMTime = remote.MTime.Add(-remoteOffset).UTC()
	}

	localMTime := info.ModTime().UTC()
	offset := remoteMTime.Sub(localMTime)
	if offset < 0 {
		offset = -offset
	}

	slop := freshnessSlopUnknownTZ
	if remoteTZKnown {
		slop = freshnessSlopKnownTZ
	}
	return offset > slop
}

func compareFileType(info fs.FileInfo, kind listing.Kind) bool {
	mode := info.Mode()
	switch kind {
	case listing.Directory:
		return mode.IsDir()
	case listing.Symlink:
		return mode&os.ModeSymlink != 0
	default:
		return mode.IsRegular()
	}
}

// MatchesAny reports whether name matches any of patterns, used for
// --skip-if-exists and --compare-size-only.
func MatchesAny(patterns []*regexp.Regexp, name string) bool {
	for _, p := range patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
