package instances

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func alwaysAlive(entry) bool { return true }

// withFakeLiveness replaces the process-table probe for one test.
func withFakeLiveness(t *testing.T, fn func(entry) bool) {
	t.Helper()
	orig := entryAlive
	entryAlive = fn
	t.Cleanup(func() { entryAlive = orig })
}

func testRegistry(t *testing.T, path string, pid int) *Registry {
	t.Helper()
	return &Registry{path: path, self: entry{pid: pid, start: int64(pid) * 10}}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		line string
		want entry
		ok   bool
	}{
		{"123:456", entry{pid: 123, start: 456}, true},
		{"  123:456  ", entry{pid: 123, start: 456}, true},
		{"123", entry{}, false},
		{"123:456:789", entry{}, false},
		{"abc:456", entry{}, false},
		{"123:def", entry{}, false},
		{"-5:456", entry{}, false},
		{"0:456", entry{}, false},
		{"", entry{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseEntry(tt.line)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseEntry(%q) = %v, %t, want %v, %t", tt.line, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestUpdateEntries(t *testing.T) {
	self := entry{pid: 100, start: 1}
	other := entry{pid: 200, start: 2}
	dead := entry{pid: 300, start: 3}
	onlyOtherAlive := func(e entry) bool { return e == other }

	tests := []struct {
		name       string
		entries    []entry
		add        bool
		alive      func(entry) bool
		wantLen    int
		wantToggle bool
	}{
		{"add first", nil, true, alwaysAlive, 1, true},
		{"add alongside live instance", []entry{other}, true, alwaysAlive, 2, false},
		{"add after dead instance pruned", []entry{dead}, true, onlyOtherAlive, 1, true},
		{"remove last", []entry{self}, false, alwaysAlive, 0, true},
		{"remove with live instance left", []entry{self, other}, false, alwaysAlive, 1, false},
		{"remove with only dead left", []entry{self, dead}, false, onlyOtherAlive, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, toggle := updateEntries(tt.entries, self, tt.add, tt.alive)
			if len(got) != tt.wantLen {
				t.Errorf("kept %d entries, want %d (%v)", len(got), tt.wantLen, got)
			}
			if toggle != tt.wantToggle {
				t.Errorf("toggle = %t, want %t", toggle, tt.wantToggle)
			}
		})
	}
}

func TestRegisterDeregisterLifecycle(t *testing.T) {
	withFakeLiveness(t, alwaysAlive)
	path := filepath.Join(t.TempDir(), "instances.lock")

	r1 := testRegistry(t, path, 101)
	r2 := testRegistry(t, path, 102)

	first, err := r1.Register()
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if !first {
		t.Error("first instance should report first=true")
	}

	first, err = r2.Register()
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if first {
		t.Error("second instance must not report first=true")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read registry: %v", err)
	}
	if got := len(parseEntries(string(data))); got != 2 {
		t.Fatalf("registry holds %d entries, want 2:\n%s", got, data)
	}

	last, err := r1.Deregister()
	if err != nil {
		t.Fatalf("first Deregister: %v", err)
	}
	if last {
		t.Error("must not report last=true while another instance is live")
	}

	last, err = r2.Deregister()
	if err != nil {
		t.Fatalf("second Deregister: %v", err)
	}
	if !last {
		t.Error("final instance should report last=true")
	}

	data, _ = os.ReadFile(path)
	if strings.TrimSpace(string(data)) != "" {
		t.Errorf("registry should be empty after last deregister, got %q", data)
	}
}

func TestRegisterPrunesStaleEntries(t *testing.T) {
	// Entries of dead processes must not keep the shared setting from
	// being toggled by a fresh instance.
	withFakeLiveness(t, func(entry) bool { return false })
	path := filepath.Join(t.TempDir(), "instances.lock")
	if err := os.WriteFile(path, []byte("4242:1\n4343:2\nnot a real line\n"), 0o600); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	r := testRegistry(t, path, 101)
	first, err := r.Register()
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !first {
		t.Error("stale entries should be pruned, leaving this instance first")
	}

	data, _ := os.ReadFile(path)
	entries := parseEntries(string(data))
	if len(entries) != 1 || entries[0].pid != 101 {
		t.Errorf("registry after prune = %v, want only pid 101", entries)
	}
}

func TestDeregisterWithoutRegister(t *testing.T) {
	// A hold that failed half-way may deregister without ever having
	// written an entry; that is a safe no-op reporting last=true.
	withFakeLiveness(t, alwaysAlive)
	path := filepath.Join(t.TempDir(), "instances.lock")

	r := testRegistry(t, path, 101)
	last, err := r.Deregister()
	if err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if !last {
		t.Error("empty registry should report last=true")
	}
}

func TestProcessStartSelf(t *testing.T) {
	if start := processStart(os.Getpid()); start == 0 {
		t.Skip("start-time read unavailable; reuse guard degrades to liveness only")
	}
}
