//go:build !windows

package race

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive probes a PID with the null signal. ESRCH means the
// process is gone; EPERM means it exists but belongs to someone else,
// which still counts as alive.
func processAlive(pid int) (bool, error) {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		return true, nil
	default:
		return false, err
	}
}
