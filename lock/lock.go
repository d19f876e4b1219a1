// Package lock implements C4: a scoped, cross-process advisory lock on a
// named path, with guaranteed release on every exit path. It backs the
// claim ring's shared-tail coordination (C6) and the work-queue's
// single-producer enforcement.
package lock

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/aleph-ipc/shmcomm/shmerr"
)

// Mode selects how Acquire behaves when the lock is already held.
type Mode int

const (
	// Blocking waits indefinitely for the lock.
	Blocking Mode = iota
	// Timed waits up to the timeout passed to Acquire.
	Timed
	// NonBlocking returns immediately if the lock is held.
	NonBlocking
)

// retryInterval bounds how often Blocking/Timed acquisition re-attempts
// the non-blocking flock syscall. Chosen to match the library's general
// sleep-poll cadence elsewhere (100us).
const retryInterval = 100 * time.Microsecond

// Guard represents a held lock. Release (or Close, for defer-friendliness)
// drops it. A Guard must only be released once; a second call is a no-op.
type Guard struct {
	f *os.File
}

// Acquire opens (creating if necessary) the file at path and takes an
// exclusive advisory lock on it, per mode. Acquire is process-safe but not
// thread-safe: callers sharing a Guard across goroutines must serialize
// externally.
func Acquire(path string, mode Mode, timeout time.Duration) (*Guard, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file %s: %v", shmerr.ErrConnection, path, err)
	}

	switch mode {
	case NonBlocking:
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: lock %s held by another process", shmerr.ErrState, path)
		}
		return &Guard{f: f}, nil

	case Blocking:
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: lock %s: %v", shmerr.ErrConnection, path, err)
		}
		return &Guard{f: f}, nil

	case Timed:
		deadline := time.Now().Add(timeout)
		for {
			err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
			if err == nil {
				return &Guard{f: f}, nil
			}
			if time.Now().After(deadline) {
				f.Close()
				return nil, fmt.Errorf("%w: lock %s", shmerr.ErrTimeout, path)
			}
			time.Sleep(retryInterval)
		}

	default:
		f.Close()
		return nil, fmt.Errorf("%w: unknown lock mode %d", shmerr.ErrConnection, mode)
	}
}

// Release drops the lock and closes the underlying file descriptor.
// Safe to call on a nil Guard or to call twice.
func (g *Guard) Release() error {
	if g == nil || g.f == nil {
		return nil
	}
	unix.Flock(int(g.f.Fd()), unix.LOCK_UN)
	err := g.f.Close()
	g.f = nil
	return err
}

// Close is an alias for Release, for use with defer guard.Close().
func (g *Guard) Close() error { return g.Release() }
