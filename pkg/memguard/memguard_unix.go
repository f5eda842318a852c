//go:build !windows

package memguard

import "golang.org/x/sys/unix"

// currentRSS reads this process's max resident set size via getrusage.
// Linux and most other Unix-likes report ru_maxrss in KiB.
func currentRSS() (int64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	return int64(ru.Maxrss) * 1024, nil
}
