//go:build !windows

package preflight

// checkVolumeExists is a no-op on Unix; there's no separate drive/share
// existence check distinct from the path just being stat-able.
func checkVolumeExists(string) error { return nil }

// validateMountPoint is a no-op on Unix. Unlike a dedicated backup
// target, a mirror's LOCAL directory routinely lives on the same
// filesystem as everything else (e.g. /srv/mirror), so there's no
// "did the external drive actually mount" footgun to guard against here.
func validateMountPoint(string) error { return nil }

// isBareDrive never applies on Unix; there's no drive-letter concept.
func isBareDrive(string) bool { return false }
