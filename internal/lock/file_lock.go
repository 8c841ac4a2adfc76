// Package lock serialises transcript writes between concurrent procfake runs.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Static error variables to satisfy err113 linter
var (
	ErrLockTimeout       = errors.New("failed to acquire lock within timeout")
	ErrNotOwner          = errors.New("cannot unlock: lock is held by another process")
	ErrInvalidLockFormat = errors.New("invalid lock file format")
)

const (
	retryInterval = 50 * time.Millisecond
	// A lock file that cannot be parsed is only reclaimed after this long,
	// since its owner may still be writing it.
	corruptGrace = time.Second
)

// FileLock is an exclusive lock backed by a file holding the owner's pid,
// acquisition time and purpose.
type FileLock struct {
	lockFile    string
	lockTimeout time.Duration
	locked      bool
}

// Info describes the current holder of a lock file
type Info struct {
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
	Purpose   string    `json:"purpose,omitempty"`
	IsStale   bool      `json:"is_stale"`
}

// NewFileLock creates a lock on lockFile that gives up after timeout
func NewFileLock(lockFile string, timeout time.Duration) *FileLock {
	return &FileLock{
		lockFile:    lockFile,
		lockTimeout: timeout,
	}
}

// Path returns the lock file location
func (fl *FileLock) Path() string {
	return fl.lockFile
}

// Lock acquires the lock, removing it first if its holder has exited.
// purpose is recorded in the lock file for diagnostics.
func (fl *FileLock) Lock(ctx context.Context, purpose string) error {
	if fl.locked {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(fl.lockFile), 0o750); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, fl.lockTimeout)
	defer cancel()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		acquired, err := fl.tryCreate(purpose)
		if err != nil {
			return err
		}
		if acquired {
			fl.locked = true
			return nil
		}

		// An unremovable stale lock is retried on the ticker like a live one
		if fl.isStale() {
			if err := os.Remove(fl.lockFile); err == nil || os.IsNotExist(err) {
				continue
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %v", ErrLockTimeout, fl.lockTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (fl *FileLock) tryCreate(purpose string) (bool, error) {
	file, err := os.OpenFile(fl.lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer file.Close()

	data := fmt.Sprintf("%d\n%d\n%s\n", os.Getpid(), time.Now().Unix(), purpose)
	if _, err := file.WriteString(data); err != nil {
		_ = os.Remove(fl.lockFile) //nolint:errcheck // Half-written lock is useless
		return false, fmt.Errorf("failed to write lock data: %w", err)
	}
	return true, nil
}

// isStale reports whether the lock file belongs to an exited process
// or has been unreadable for longer than corruptGrace.
func (fl *FileLock) isStale() bool {
	info, err := fl.GetLockInfo()
	if err == nil {
		return info.IsStale
	}
	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	stat, statErr := os.Stat(fl.lockFile)
	if statErr != nil {
		return false
	}
	return time.Since(stat.ModTime()) > corruptGrace
}

// Unlock releases the lock if this process holds it
func (fl *FileLock) Unlock() error {
	if !fl.locked {
		return nil
	}

	info, err := fl.GetLockInfo()
	if err == nil && info.PID != os.Getpid() {
		return ErrNotOwner
	}

	if err := os.Remove(fl.lockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	fl.locked = false
	return nil
}

// IsLocked reports whether any process holds the lock
func (fl *FileLock) IsLocked() bool {
	if fl.locked {
		return true
	}
	_, err := os.Stat(fl.lockFile)
	return err == nil
}

// GetLockInfo reads the lock file
func (fl *FileLock) GetLockInfo() (*Info, error) {
	data, err := os.ReadFile(fl.lockFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}
	return parseLockFile(string(data))
}

func parseLockFile(data string) (*Info, error) {
	lines := strings.Split(strings.TrimRight(data, "\n"), "\n")
	if len(lines) < 2 {
		return nil, ErrInvalidLockFormat
	}

	pid, err := strconv.Atoi(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: pid: %w", ErrInvalidLockFormat, err)
	}

	timestamp, err := strconv.ParseInt(lines[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %w", ErrInvalidLockFormat, err)
	}

	info := &Info{
		PID:       pid,
		Timestamp: time.Unix(timestamp, 0),
		IsStale:   !processExists(pid),
	}
	if len(lines) > 2 {
		info.Purpose = lines[2]
	}
	return info, nil
}

// ForceClearLock removes the lock file regardless of ownership
func (fl *FileLock) ForceClearLock() error {
	if err := os.Remove(fl.lockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to force clear lock: %w", err)
	}

	fl.locked = false
	return nil
}

// WithLock runs fn while holding a lock on lockFile
func WithLock(ctx context.Context, lockFile string, timeout time.Duration, purpose string, fn func() error) (err error) {
	fl := NewFileLock(lockFile, timeout)
	if err := fl.Lock(ctx, purpose); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, fl.Unlock())
	}()

	return fn()
}
