// Package preflight runs the checks a sync performs before any network
// I/O: validating the upstream URL contract and confirming LOCAL is a
// sane, writable place to mirror into.
package preflight

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// CheckUpstreamURL validates the upstream URL contract: an absolute
// http(s) URL whose path ends with "/". A missing trailing slash is a
// fatal configuration error since it makes the traversal boundary
// (host + path prefix) ambiguous.
func CheckUpstreamURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("upstream URL %q is missing a host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		return nil, fmt.Errorf("upstream URL %q must end with a trailing slash", raw)
	}
	return u, nil
}

// CheckLocalDirAccessible performs pre-flight checks to ensure LOCAL is
// usable before a sync starts writing into it. It gives a more
// user-friendly error than letting the first MkdirAll deep inside a
// crawl fail.
//
// The checks:
//  1. Rejects LOCAL values too ambiguous to mirror into, like "." or a
//     bare filesystem/drive root.
//  2. On Windows, verifies the drive or network share exists.
//  3. If LOCAL exists, confirms it is a directory.
//  4. If LOCAL doesn't exist, confirms its parent is accessible.
func CheckLocalDirAccessible(localDir string) error {
	if isUnsafeRoot(localDir) {
		return fmt.Errorf("local directory %q is too ambiguous to mirror into; use a specific subdirectory", localDir)
	}

	if err := checkVolumeExists(localDir); err != nil {
		return err
	}

	info, err := os.Stat(localDir)
	if os.IsNotExist(err) {
		ancestor := localDir
		for {
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				break
			}
			if _, err := os.Stat(parent); err == nil {
				ancestor = parent
				break
			}
			ancestor = parent
		}

		if err := validateMountPoint(ancestor); err != nil {
			return err
		}

		parentDir := filepath.Dir(localDir)
		if _, err := os.Stat(parentDir); os.IsNotExist(err) {
			return fmt.Errorf("local directory and its parent do not exist: %s", parentDir)
		} else if err != nil {
			return fmt.Errorf("cannot access parent directory %s: %w", parentDir, err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("cannot access local directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("local path exists but is not a directory: %s", localDir)
	}

	return validateMountPoint(localDir)
}

// isUnsafeRoot reports whether path is the current directory, the
// filesystem root, or (on Windows) a bare drive letter, all too
// ambiguous to accept as LOCAL: a sync that deletes orphaned local
// paths has no business being pointed at one of these.
func isUnsafeRoot(path string) bool {
	clean := filepath.Clean(path)
	if clean == "." || clean == string(filepath.Separator) {
		return true
	}
	return isBareDrive(clean)
}

// CheckLocalDirWritable ensures LOCAL can be created and is writable,
// by actually creating it and a throwaway file inside it.
func CheckLocalDirWritable(localDir string) error {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return fmt.Errorf("failed to create local directory %s: %w", localDir, err)
	}

	tempFile := filepath.Join(localDir, ".tsumugu-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("local directory %s is not writable: %w", localDir, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}
