package main

import (
	"bytes"
	"errors"
	"runtime"
	"strings"
	"testing"

	wherrors "github.com/wakehold/wakehold/internal/errors"
)

func runForTest(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"usage", usageError{errors.New("bad flag")}, exitUsage},
		{"duration", wherrors.New(wherrors.CodeDurationInvalid, "bad"), exitUsage},
		{"no process", wherrors.New(wherrors.CodeProcessNotFound, "gone"), exitNoProcess},
		{"power acquire", wherrors.New(wherrors.CodePowerAcquireFailed, "no"), exitPower},
		{"power unsupported", wherrors.New(wherrors.CodePowerUnsupported, "no"), exitPower},
		{"privilege", wherrors.New(wherrors.CodePrivilegeDropFailed, "no"), exitPrivilege},
		{"spawn", wherrors.New(wherrors.CodeCommandSpawnFailed, "no"), exitSpawn},
		{"plain", errors.New("something"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runForTest(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "wakehold") {
		t.Errorf("version output = %q", stdout)
	}
}

func TestRun_DryRunZeroTimeout(t *testing.T) {
	code, _, stderr := runForTest(t, "--dry-run", "--no-audit", "-t", "0")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, stderr)
	}
}

func TestRun_InvalidDuration(t *testing.T) {
	code, _, stderr := runForTest(t, "--dry-run", "--no-audit", "-t", "bananas")
	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Errorf("stderr = %q, want an error line", stderr)
	}
}

func TestRun_CommandExcludesWaiters(t *testing.T) {
	code, _, _ := runForTest(t, "--dry-run", "--no-audit", "-t", "10s", "true")
	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	code, _, _ := runForTest(t, "--definitely-not-a-flag")
	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestRun_MissingPID(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("pid probe is unix-only")
	}
	// Far beyond any real pid table.
	code, _, _ := runForTest(t, "--dry-run", "--no-audit", "-w", "999999999")
	if code != exitNoProcess {
		t.Fatalf("exit code = %d, want %d", code, exitNoProcess)
	}
}

func TestRun_CommandExitCodePassthrough(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	code, _, stderr := runForTest(t, "--dry-run", "--no-audit", "sh", "-c", "exit 7")
	if code != 7 {
		t.Fatalf("exit code = %d, want 7 (stderr: %s)", code, stderr)
	}
}
