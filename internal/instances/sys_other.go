//go:build !darwin && !linux

package instances

import "os"

// The registry only coordinates the darwin settings hold; these keep
// the package building on other platforms.

func lockExclusive(f *os.File) error { return nil }

func unlockFile(f *os.File) error { return nil }

func pidAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	p.Release()
	return true
}

func processStart(pid int) int64 { return 0 }
