package race

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	wherrors "github.com/wakehold/wakehold/internal/errors"
	"github.com/wakehold/wakehold/internal/spawn"
)

func durationPtr(d time.Duration) *time.Duration { return &d }

// withFakePID replaces the PID probe for the duration of a test.
func withFakePID(t *testing.T, fn func(pid int) (bool, error)) {
	t.Helper()
	orig := pidAlive
	pidAlive = fn
	t.Cleanup(func() { pidAlive = orig })
}

// withFakeSpawn replaces the command spawner for the duration of a test.
func withFakeSpawn(t *testing.T, fn func(ctx context.Context, argv []string, opts spawn.Options) (int, error)) {
	t.Helper()
	orig := spawnRun
	spawnRun = fn
	t.Cleanup(func() { spawnRun = orig })
}

// diesAfter returns a PID probe reporting alive until the deadline.
func diesAfter(d time.Duration) func(int) (bool, error) {
	deadline := time.Now().Add(d)
	return func(int) (bool, error) {
		return time.Now().Before(deadline), nil
	}
}

func TestConditionKind(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want Kind
	}{
		{"command", Condition{Command: []string{"true"}}, KindCommand},
		{"pid", Condition{PID: 123}, KindPID},
		{"timeout", Condition{Timeout: durationPtr(time.Second)}, KindTimeout},
		{"indefinite", Condition{}, KindIndefinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRun_CommandGovernsAlone(t *testing.T) {
	// With a command present, the PID and timeout are never evaluated.
	var pidProbes int32
	withFakePID(t, func(int) (bool, error) {
		atomic.AddInt32(&pidProbes, 1)
		return true, nil
	})
	withFakeSpawn(t, func(context.Context, []string, spawn.Options) (int, error) {
		return 7, nil
	})

	cond := Condition{
		Command: []string{"some-command"},
		PID:     12345,
		Timeout: durationPtr(time.Nanosecond),
	}
	out, err := Run(context.Background(), cond, Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Kind != KindCommand {
		t.Errorf("Kind = %v, want command", out.Kind)
	}
	if out.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", out.ExitCode)
	}
	if n := atomic.LoadInt32(&pidProbes); n != 0 {
		t.Errorf("PID probed %d times, want 0", n)
	}
}

func TestRun_CommandSpawnError(t *testing.T) {
	withFakeSpawn(t, func(context.Context, []string, spawn.Options) (int, error) {
		return 0, wherrors.New(wherrors.CodeCommandSpawnFailed, "boom")
	})

	_, err := Run(context.Background(), Condition{Command: []string{"x"}}, Options{})
	if !wherrors.IsCode(err, wherrors.CodeCommandSpawnFailed) {
		t.Fatalf("error code = %s, want %s", wherrors.GetCode(err), wherrors.CodeCommandSpawnFailed)
	}
}

func TestRun_TimeoutBeatsSlowPID(t *testing.T) {
	withFakePID(t, diesAfter(2*time.Second))

	cond := Condition{PID: 4242, Timeout: durationPtr(100 * time.Millisecond)}
	start := time.Now()
	out, err := Run(context.Background(), cond, Options{PollInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Kind != KindTimeout {
		t.Errorf("Kind = %v, want timeout", out.Kind)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("race took %v, should have fired at ~100ms", elapsed)
	}
}

func TestRun_PIDBeatsSlowTimeout(t *testing.T) {
	withFakePID(t, diesAfter(100*time.Millisecond))

	cond := Condition{PID: 4242, Timeout: durationPtr(5 * time.Second)}
	start := time.Now()
	out, err := Run(context.Background(), cond, Options{PollInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Kind != KindPID {
		t.Errorf("Kind = %v, want pid", out.Kind)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("race took %v, should have fired at ~100ms", elapsed)
	}
}

func TestRun_PIDMissingAtStart(t *testing.T) {
	withFakePID(t, func(int) (bool, error) { return false, nil })

	_, err := Run(context.Background(), Condition{PID: 99999}, Options{})
	if !wherrors.IsCode(err, wherrors.CodeProcessNotFound) {
		t.Fatalf("error code = %s, want %s", wherrors.GetCode(err), wherrors.CodeProcessNotFound)
	}
}

func TestRun_IndefiniteEndsOnInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	out, err := Run(ctx, Condition{}, Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Kind != KindInterrupted {
		t.Errorf("Kind = %v, want interrupted", out.Kind)
	}
}

func TestRun_InterruptPreemptsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	out, err := Run(ctx, Condition{Timeout: durationPtr(10 * time.Second)}, Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Kind != KindInterrupted {
		t.Errorf("Kind = %v, want interrupted", out.Kind)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("interrupt took %v to preempt the wait", elapsed)
	}
}

func TestRun_InterruptPreemptsCommand(t *testing.T) {
	withFakeSpawn(t, func(ctx context.Context, argv []string, opts spawn.Options) (int, error) {
		<-ctx.Done()
		return 0, wherrors.New(wherrors.CodeCommandSpawnFailed, "killed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	out, err := Run(ctx, Condition{Command: []string{"sleep", "60"}}, Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Kind != KindInterrupted {
		t.Errorf("Kind = %v, want interrupted", out.Kind)
	}
}

func TestProcessAlive_OwnProcess(t *testing.T) {
	alive, err := processAlive(1)
	if err != nil {
		t.Fatalf("processAlive error: %v", err)
	}
	if !alive {
		t.Error("pid 1 should be alive")
	}
}
