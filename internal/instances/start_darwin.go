//go:build darwin

package instances

import "golang.org/x/sys/unix"

// processStart returns the process's start time in unix seconds, or 0
// when it cannot be read (the reuse guard is skipped for that entry).
func processStart(pid int) int64 {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", pid)
	if err != nil {
		return 0
	}
	return kp.Proc.P_starttime.Sec
}
