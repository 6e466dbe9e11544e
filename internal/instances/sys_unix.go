//go:build darwin || linux

package instances

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// lockExclusive takes the advisory flock; it blocks until every other
// updater has finished its cycle.
func lockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// pidAlive probes with the null signal. EPERM still means alive: the
// process just belongs to someone else.
func pidAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
