//go:build !windows

package lock

import (
	"errors"
	"syscall"
)

// processExists checks pid with signal 0
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}

	// EPERM means the process exists but belongs to someone else
	return errors.Is(err, syscall.EPERM)
}
