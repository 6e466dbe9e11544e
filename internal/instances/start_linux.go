//go:build linux

package instances

import (
	"os"
	"strconv"
	"strings"
)

// processStart returns the process's start time in clock ticks since
// boot (/proc/<pid>/stat field 22), or 0 when it cannot be read (the
// reuse guard is skipped for that entry). Any monotonic per-process
// token works here; entries are only ever compared on the machine that
// wrote them.
func processStart(pid int) int64 {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0
	}

	// The comm field is parenthesized and may itself contain parens;
	// fields are stable only after the last closing paren.
	i := strings.LastIndexByte(string(data), ')')
	if i < 0 {
		return 0
	}
	fields := strings.Fields(string(data)[i+1:])
	// rest starts at field 3 (state); starttime is field 22.
	if len(fields) < 20 {
		return 0
	}
	start, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil {
		return 0
	}
	return start
}
