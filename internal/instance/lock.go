// Package instance guarantees that only one dictation daemon runs per
// machine.
//
// The guard is an exclusive advisory lock on a well-known lock file that
// also holds the owner's PID. A second PID file is written for external
// tooling (kill $(cat /tmp/speech2text.pid), speech2text -stop).
package instance

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Default file locations.
const (
	DefaultLockFile = "/tmp/speech2text.lock"
	DefaultPIDFile  = "/tmp/speech2text.pid"
)

var (
	// ErrAlreadyRunning is returned by Acquire when another process holds the lock.
	ErrAlreadyRunning = errors.New("instance: another instance is already running")
	// ErrNotRunning is returned by Stop when no instance is recorded or alive.
	ErrNotRunning = errors.New("instance: not running")
	// ErrUnsupported is returned on platforms without flock.
	ErrUnsupported = errors.New("instance: single-instance lock not supported on this platform")
)

// Lock is a held instance lock.
type Lock struct {
	file     *os.File
	lockPath string
	pidPath  string

	once sync.Once
	err  error
}

// Release removes the lock and PID files, then unlocks and closes the lock
// file. It is safe to call more than once and from any goroutine; later
// calls return the result of the first.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		var errs []error
		// Remove while still holding the lock so nobody can lock the old
		// inode and then lose it.
		if err := removeIfExists(l.pidPath); err != nil {
			errs = append(errs, err)
		}
		if err := removeIfExists(l.lockPath); err != nil {
			errs = append(errs, err)
		}
		if err := unlock(l.file); err != nil {
			errs = append(errs, fmt.Errorf("unlock %s: %w", l.lockPath, err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", l.lockPath, err))
		}
		l.err = errors.Join(errs...)
	})
	return l.err
}

// ReadPID reads the decimal PID stored at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("parse pid file %s: invalid content %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
