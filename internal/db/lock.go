package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	lockFileName       = "queue.lock"
	defaultLockTimeout = 500 * time.Millisecond
	lockInitialBackoff = 5 * time.Millisecond
	lockMaxBackoff     = 50 * time.Millisecond
)

// writeLocker serializes queue mutations across processes with an OS file
// lock. The lock dies with the process, so a crashed holder never wedges
// the queue.
type writeLocker struct {
	lockPath string
	lockFile *os.File
}

func newWriteLocker(baseDir string) *writeLocker {
	return &writeLocker{
		lockPath: filepath.Join(baseDir, storeDir, lockFileName),
	}
}

// acquire polls for an exclusive lock until timeout, backing off between
// attempts. On timeout the error names the current holder.
func (l *writeLocker) acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.lockFile = f

	deadline := time.Now().Add(timeout)
	backoff := lockInitialBackoff

	for {
		if err := l.tryLock(); err == nil {
			l.writeHolder()
			return nil
		}

		if time.Now().After(deadline) {
			holder := l.readHolder()
			l.lockFile.Close()
			l.lockFile = nil
			return fmt.Errorf("queue write lock timeout after %v (holder: %s)", timeout, holder)
		}

		time.Sleep(backoff)
		if backoff < lockMaxBackoff {
			backoff *= 2
			if backoff > lockMaxBackoff {
				backoff = lockMaxBackoff
			}
		}
	}
}

func (l *writeLocker) release() error {
	if l.lockFile == nil {
		return nil
	}
	l.lockFile.Truncate(0)
	l.unlock()
	l.lockFile.Close()
	l.lockFile = nil
	return nil
}

// writeHolder records pid and timestamp in the lock file so a contending
// process can report who holds the lock.
func (l *writeLocker) writeHolder() {
	if l.lockFile == nil {
		return
	}
	l.lockFile.Truncate(0)
	l.lockFile.Seek(0, 0)
	fmt.Fprintf(l.lockFile, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	l.lockFile.Sync()
}

func (l *writeLocker) readHolder() string {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return "unknown"
	}

	var pid, timestamp string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.HasPrefix(line, "pid:") {
			pid = strings.TrimPrefix(line, "pid:")
		} else if strings.HasPrefix(line, "time:") {
			timestamp = strings.TrimPrefix(line, "time:")
		}
	}
	if pid == "" {
		return "unknown"
	}

	if pidInt, err := strconv.Atoi(pid); err == nil && !isProcessAlive(pidInt) {
		return fmt.Sprintf("pid:%s since %s (stale, process dead)", pid, timestamp)
	}
	return fmt.Sprintf("pid:%s since %s", pid, timestamp)
}

// tryLock and unlock are platform-specific: flock on Unix, LockFileEx on
// Windows.
