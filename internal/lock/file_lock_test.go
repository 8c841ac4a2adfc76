package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLockTimeout = 2 * time.Second
	shortTimeout    = 150 * time.Millisecond
)

var errFromCallback = errors.New("callback failed")

// Helper function to create a test FileLock with temp file
func setupTestFileLock(t *testing.T, timeout time.Duration) (*FileLock, string) {
	t.Helper()

	lockFile := filepath.Join(t.TempDir(), "nested", "procfake.lock")
	fileLock := NewFileLock(lockFile, timeout)

	t.Cleanup(func() {
		_ = fileLock.Unlock() //nolint:errcheck // Cleanup can fail, but test should not fail
	})

	return fileLock, lockFile
}

// Helper function to plant a lock file owned by pid
func writeLockFile(t *testing.T, path string, pid int) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	data := fmt.Sprintf("%d\n%d\nother run\n", pid, time.Now().Unix())
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestFileLock_LockUnlock(t *testing.T) {
	fl, lockFile := setupTestFileLock(t, testLockTimeout)

	require.NoError(t, fl.Lock(context.Background(), "replay demo.yml"))
	assert.True(t, fl.IsLocked())
	assert.FileExists(t, lockFile)

	info, err := fl.GetLockInfo()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "replay demo.yml", info.Purpose)
	assert.False(t, info.IsStale)
	assert.WithinDuration(t, time.Now(), info.Timestamp, 5*time.Second)

	// Relocking is a no-op for the holder
	require.NoError(t, fl.Lock(context.Background(), "again"))

	require.NoError(t, fl.Unlock())
	assert.False(t, fl.IsLocked())
	assert.NoFileExists(t, lockFile)

	// Unlocking twice is harmless
	assert.NoError(t, fl.Unlock())
}

func TestFileLock_Contention(t *testing.T) {
	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		wantErr error
	}{
		{
			name: "timeout",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithCancel(context.Background())
			},
			wantErr: ErrLockTimeout,
		},
		{
			name: "cancelled",
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, cancel
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			holder, lockFile := setupTestFileLock(t, testLockTimeout)
			require.NoError(t, holder.Lock(context.Background(), "holder"))

			waiter := NewFileLock(lockFile, shortTimeout)
			ctx, cancel := tt.ctx()
			defer cancel()

			err := waiter.Lock(ctx, "waiter")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, holder.IsLocked())
		})
	}
}

func TestFileLock_StaleLockIsReplaced(t *testing.T) {
	fl, lockFile := setupTestFileLock(t, testLockTimeout)
	writeLockFile(t, lockFile, 999999)

	info, err := fl.GetLockInfo()
	require.NoError(t, err)
	assert.True(t, info.IsStale)
	assert.Equal(t, "other run", info.Purpose)

	require.NoError(t, fl.Lock(context.Background(), "takeover"))

	info, err = fl.GetLockInfo()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
}

func TestFileLock_CorruptLockIsReplaced(t *testing.T) {
	fl, lockFile := setupTestFileLock(t, testLockTimeout)
	require.NoError(t, os.MkdirAll(filepath.Dir(lockFile), 0o750))
	require.NoError(t, os.WriteFile(lockFile, []byte("garbage"), 0o600))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lockFile, old, old))

	require.NoError(t, fl.Lock(context.Background(), "replace"))
}

func TestFileLock_UnremovableStaleLockTimesOut(t *testing.T) {
	fl, lockFile := setupTestFileLock(t, shortTimeout)

	// A non-empty directory reads as a corrupt lock and cannot be removed
	require.NoError(t, os.MkdirAll(filepath.Join(lockFile, "busy"), 0o750))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lockFile, old, old))

	done := make(chan error, 1)
	go func() { done <- fl.Lock(context.Background(), "blocked") }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrLockTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("Lock did not honour its timeout")
	}
	assert.DirExists(t, lockFile)
}

func TestFileLock_UnlockNotOwner(t *testing.T) {
	fl, lockFile := setupTestFileLock(t, testLockTimeout)
	require.NoError(t, fl.Lock(context.Background(), "mine"))

	// Another process took the file over behind our back
	writeLockFile(t, lockFile, os.Getppid())

	assert.ErrorIs(t, fl.Unlock(), ErrNotOwner)
	require.NoError(t, fl.ForceClearLock())
	assert.False(t, fl.IsLocked())
}

func TestParseLockFile(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantErr     bool
		wantPurpose string
	}{
		{"with_purpose", "42\n1700000000\nreplay\n", false, "replay"},
		{"without_purpose", "42\n1700000000\n", false, ""},
		{"empty_purpose", "42\n1700000000\n\n", false, ""},
		{"single_line", "42\n", true, ""},
		{"bad_pid", "abc\n1700000000\n", true, ""},
		{"bad_timestamp", "42\nnow\n", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseLockFile(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLockFormat)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 42, info.PID)
			assert.Equal(t, time.Unix(1700000000, 0), info.Timestamp)
			assert.Equal(t, tt.wantPurpose, info.Purpose)
		})
	}
}

func TestWithLock(t *testing.T) {
	t.Run("runs_callback_and_releases", func(t *testing.T) {
		lockFile := filepath.Join(t.TempDir(), "procfake.lock")
		called := false

		err := WithLock(context.Background(), lockFile, testLockTimeout, "save", func() error {
			called = true
			assert.FileExists(t, lockFile)
			return nil
		})

		require.NoError(t, err)
		assert.True(t, called)
		assert.NoFileExists(t, lockFile)
	})

	t.Run("propagates_callback_error", func(t *testing.T) {
		lockFile := filepath.Join(t.TempDir(), "procfake.lock")

		err := WithLock(context.Background(), lockFile, testLockTimeout, "save", func() error {
			return errFromCallback
		})

		require.ErrorIs(t, err, errFromCallback)
		assert.NoFileExists(t, lockFile)
	})

	t.Run("serialises_writers", func(t *testing.T) {
		lockFile := filepath.Join(t.TempDir(), "procfake.lock")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			holders int
			maxSeen int
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := WithLock(context.Background(), lockFile, 5*time.Second, "save", func() error {
					mu.Lock()
					holders++
					maxSeen = max(maxSeen, holders)
					mu.Unlock()

					time.Sleep(20 * time.Millisecond)

					mu.Lock()
					holders--
					mu.Unlock()
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, maxSeen)
	})
}

func TestProcessExists(t *testing.T) {
	assert.True(t, processExists(os.Getpid()))
	assert.False(t, processExists(0))
	assert.False(t, processExists(-1))
	assert.False(t, processExists(999999))
}
