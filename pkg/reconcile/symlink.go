package reconcile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsumugu-mirror/tsumugu/pkg/metrics"
	"github.com/tsumugu-mirror/tsumugu/pkg/plog"
	"github.com/tsumugu-mirror/tsumugu/pkg/tserr"
)

// tempSymlinkPrefix names the placeholder used while a symlink is built;
// os.CreateTemp only needs it to mint a unique path, the file itself is
// removed before os.Symlink claims the name.
const tempSymlinkPrefix = "tsumugu-ln-*.tmp"

// MakeRelativeSymlink creates (or repairs) a symlink at fromPath pointing
// at toPath, storing the link target as a path relative to fromPath's
// directory so the mirror tree stays portable across mount points.
//
// If fromPath already exists as a symlink with the correct target this
// is a no-op. Any other existing entry at fromPath — a regular file, a
// directory, or a symlink pointing elsewhere — is removed first; stale
// local state at a symlink's path is never trustworthy.
func MakeRelativeSymlink(fromPath, toPath string, m metrics.Metrics) error {
	if m == nil {
		m = metrics.NoopMetrics{}
	}

	target, err := filepath.Rel(filepath.Dir(fromPath), toPath)
	if err != nil {
		return tserr.WithPath(tserr.FilesystemError, fromPath, fmt.Errorf("compute relative symlink target: %w", err))
	}

	if existing, err := os.Readlink(fromPath); err == nil {
		if existing == target {
			return nil
		}
		if err := os.Remove(fromPath); err != nil {
			return tserr.WithPath(tserr.FilesystemError, fromPath, fmt.Errorf("remove stale symlink: %w", err))
		}
	} else if info, statErr := os.Lstat(fromPath); statErr == nil {
		plog.Warn("replacing non-symlink local entry with symlink", "path", fromPath, "mode", info.Mode().String())
		if err := os.RemoveAll(fromPath); err != nil {
			return tserr.WithPath(tserr.FilesystemError, fromPath, fmt.Errorf("remove existing entry: %w", err))
		}
	}

	if err := createSymlinkAtomic(fromPath, target); err != nil {
		return tserr.WithPath(tserr.FilesystemError, fromPath, err)
	}

	m.AddSymlinksCreated(1)
	plog.Info("SYMLINK", "path", fromPath, "target", target)
	return nil
}

// createSymlinkAtomic creates a symlink at linkPath by first building it
// under a temp name in the same directory and renaming it into place, so
// a concurrent reader never observes a half-created link.
func createSymlinkAtomic(linkPath, target string) error {
	dir := filepath.Dir(linkPath)
	f, err := os.CreateTemp(dir, tempSymlinkPrefix)
	if err != nil {
		return fmt.Errorf("reserve temp symlink name in %s: %w", dir, err)
	}
	tempPath := f.Name()
	f.Close()
	os.Remove(tempPath)

	defer func() {
		if tempPath != "" {
			os.Remove(tempPath)
		}
	}()

	if err := os.Symlink(target, tempPath); err != nil {
		return fmt.Errorf("create symlink %s -> %s: %w", tempPath, target, err)
	}
	if err := os.Rename(tempPath, linkPath); err != nil {
		return fmt.Errorf("rename temp symlink to %s: %w", linkPath, err)
	}
	tempPath = ""
	return nil
}
