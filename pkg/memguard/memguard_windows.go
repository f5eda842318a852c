//go:build windows

package memguard

import (
	"golang.org/x/sys/windows"
)

// currentRSS reads this process's current working set size via the
// Windows process-status API.
func currentRSS() (int64, error) {
	var counters windows.PROCESS_MEMORY_COUNTERS
	handle := windows.CurrentProcess()
	if err := windows.GetProcessMemoryInfo(handle, &counters); err != nil {
		return 0, err
	}
	return int64(counters.WorkingSetSize), nil
}
