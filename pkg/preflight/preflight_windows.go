//go:build windows

package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// checkVolumeExists verifies the drive or network share root for path
// exists, e.g. for "Z:\mirror" it checks "Z:\".
func checkVolumeExists(path string) error {
	volume := filepath.VolumeName(path)
	if volume == "" {
		return nil
	}

	checkVol := volume
	if !strings.HasSuffix(checkVol, string(filepath.Separator)) {
		checkVol += string(filepath.Separator)
	}
	checkVol = filepath.Clean(checkVol)

	if _, err := os.Stat(checkVol); os.IsNotExist(err) {
		return fmt.Errorf("volume root does not exist: %s; ensure the drive is connected", checkVol)
	}
	return nil
}

// validateMountPoint is a no-op on Windows beyond the volume-existence
// check checkVolumeExists already performs.
func validateMountPoint(string) error { return nil }

// isBareDrive reports whether path is nothing but a drive letter, e.g.
// "C:" or "C:\", too ambiguous to accept as LOCAL on Windows.
func isBareDrive(path string) bool {
	vol := filepath.VolumeName(path)
	if vol == "" {
		return false
	}
	return path == vol || path == vol+string(filepath.Separator) || path == vol+"."
}
