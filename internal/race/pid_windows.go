//go:build windows

package race

import "os"

// processAlive reports whether a PID exists. Windows has no null
// signal; FindProcess failing is the closest portable signal.
func processAlive(pid int) (bool, error) {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	p.Release()
	return true, nil
}
