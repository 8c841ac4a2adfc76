//go:build windows

package lock

import "os"

// processExists relies on FindProcess opening a handle, which fails for exited pids
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release() //nolint:errcheck // Handle is only used for the existence check
	return true
}
