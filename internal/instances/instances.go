// Package instances coordinates concurrent wakehold processes that
// share one machine-global power setting.
//
// The disable-sleep setting is a single switch, not a counted
// assertion: whichever process flips it back on release kills every
// other holder's protection. The registry is a lockfile of
// pid:start-token entries updated under an exclusive flock; the
// setting is flipped on only by the instance that finds the registry
// empty, and restored only by the instance that leaves it empty.
// Entries whose process is dead, or whose PID was reused by a process
// with a different start token, are pruned on every update.
package instances

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// entry identifies one registered wakehold process. The start token
// guards against PID reuse: a recycled PID will not carry the dead
// process's start time.
type entry struct {
	pid   int
	start int64
}

func (e entry) String() string {
	return strconv.Itoa(e.pid) + ":" + strconv.FormatInt(e.start, 10)
}

// parseEntry reads one pid:start line. Malformed lines report ok=false
// and are dropped by the caller; a corrupt registry degrades to a
// smaller one rather than failing the run.
func parseEntry(line string) (entry, bool) {
	pidStr, startStr, found := strings.Cut(strings.TrimSpace(line), ":")
	if !found {
		return entry{}, false
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return entry{}, false
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return entry{}, false
	}
	return entry{pid: pid, start: start}, true
}

func parseEntries(data string) []entry {
	var entries []entry
	for _, line := range strings.Split(data, "\n") {
		if e, ok := parseEntry(line); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// updateEntries prunes entries of dead or recycled processes, then
// adds or removes self. The second return reports whether the live
// count crossed zero: for an add, self was the only live instance; for
// a remove, no live instance remains.
func updateEntries(entries []entry, self entry, add bool, alive func(entry) bool) ([]entry, bool) {
	var kept []entry
	for _, e := range entries {
		if e == self {
			continue
		}
		if alive(e) {
			kept = append(kept, e)
		}
	}

	if add {
		return append(kept, self), len(kept) == 0
	}
	return kept, len(kept) == 0
}

// entryAlive is the liveness check, a variable so tests can fake the
// process table.
var entryAlive = func(e entry) bool {
	if !pidAlive(e.pid) {
		return false
	}
	if start := processStart(e.pid); start != 0 && e.start != 0 && start != e.start {
		return false
	}
	return true
}

// Registry is one process's view of the shared instance lockfile.
type Registry struct {
	path string
	self entry
}

// New creates a registry handle for this process at the given path.
func New(path string) *Registry {
	pid := os.Getpid()
	return &Registry{
		path: path,
		self: entry{pid: pid, start: processStart(pid)},
	}
}

// DefaultPath returns the shared registry location. Like the setting
// it coordinates, the root registry is machine-global; non-root
// processes get a per-user file since they coordinate per-user runs.
func DefaultPath() string {
	if os.Geteuid() == 0 {
		return "/var/run/wakehold.lock"
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("wakehold_%d.lock", os.Getuid()))
}

// Register records this process and reports whether it is the first
// live holder; the caller flips the shared setting on only then.
func (r *Registry) Register() (first bool, err error) {
	return r.update(true)
}

// Deregister removes this process and reports whether no live holder
// remains; the caller restores the shared setting only then.
func (r *Registry) Deregister() (last bool, err error) {
	return r.update(false)
}

// update performs one read-prune-modify-write cycle under the
// exclusive file lock.
func (r *Registry) update(add bool) (bool, error) {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return false, fmt.Errorf("open instance registry: %w", err)
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return false, fmt.Errorf("lock instance registry: %w", err)
	}
	defer unlockFile(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return false, fmt.Errorf("read instance registry: %w", err)
	}

	entries, crossed := updateEntries(parseEntries(string(data)), r.self, add, entryAlive)

	if err := f.Truncate(0); err != nil {
		return false, fmt.Errorf("truncate instance registry: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("rewind instance registry: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return false, fmt.Errorf("write instance registry: %w", err)
	}

	return crossed, nil
}
