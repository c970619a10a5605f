//go:build unix

package instance

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// maxAttempts bounds retries when the lock file is replaced between open
// and flock by a releasing owner.
const maxAttempts = 5

// Acquire takes the instance lock without blocking. It returns
// ErrAlreadyRunning if another process holds it. On any failure nothing
// is left behind by this call.
func Acquire(lockPath, pidPath string) (*Lock, error) {
	for range maxAttempts {
		f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, fmt.Errorf("open lock file: %w", err)
		}

		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, ErrAlreadyRunning
			}
			return nil, fmt.Errorf("lock %s: %w", lockPath, err)
		}

		same, err := sameFile(f, lockPath)
		if err != nil {
			unlock(f)
			f.Close()
			return nil, err
		}
		if !same {
			// The previous owner unlinked the file after we opened it.
			unlock(f)
			f.Close()
			continue
		}

		l := &Lock{file: f, lockPath: lockPath, pidPath: pidPath}
		if err := l.writePID(); err != nil {
			removeIfExists(pidPath)
			removeIfExists(lockPath)
			unlock(f)
			f.Close()
			return nil, err
		}
		return l, nil
	}
	return nil, fmt.Errorf("lock %s: file kept changing during acquisition", lockPath)
}

func (l *Lock) writePID() error {
	pid := []byte(strconv.Itoa(os.Getpid()))
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := l.file.WriteAt(pid, 0); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	if err := os.WriteFile(l.pidPath, pid, 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

func sameFile(f *os.File, path string) (bool, error) {
	held, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat lock file: %w", err)
	}
	current, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat lock file: %w", err)
	}
	return os.SameFile(held, current), nil
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// Stop sends SIGTERM to the instance recorded in pidPath and returns its
// PID. A missing PID file or a dead process yields ErrNotRunning.
func Stop(pidPath string) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return 0, err
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return pid, fmt.Errorf("%w: stale pid file %s (pid %d)", ErrNotRunning, pidPath, pid)
		}
		return pid, fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return pid, nil
}
