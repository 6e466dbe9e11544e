package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wakehold/wakehold/internal/power"
	"github.com/wakehold/wakehold/internal/race"
	"github.com/wakehold/wakehold/internal/storage"
)

type fakeProvider struct {
	mu       sync.Mutex
	failOn   map[power.Category]error
	created  []power.Category
	released int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{failOn: make(map[power.Category]error)}
}

func (p *fakeProvider) CreateHold(ctx context.Context, c power.Category) (power.Hold, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failOn[c]; err != nil {
		return nil, err
	}
	p.created = append(p.created, c)
	return &fakeHold{provider: p, done: make(chan struct{})}, nil
}

func (p *fakeProvider) SleepDisabled() (bool, error) { return false, nil }
func (p *fakeProvider) WakeDisplay() error           { return nil }

func (p *fakeProvider) releaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

type fakeHold struct {
	provider *fakeProvider
	once     sync.Once
	done     chan struct{}
}

func (h *fakeHold) Done() <-chan struct{} { return h.done }
func (h *fakeHold) Err() error            { return nil }
func (h *fakeHold) Release(ctx context.Context) error {
	h.once.Do(func() {
		h.provider.mu.Lock()
		h.provider.released++
		h.provider.mu.Unlock()
		close(h.done)
	})
	return nil
}

type fakeAuditor struct {
	mu       sync.Mutex
	started  []*storage.Session
	finished []string
}

func (a *fakeAuditor) RecordStart(sess *storage.Session, maxRows int) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = append(a.started, sess)
	return int64(len(a.started)), nil
}

func (a *fakeAuditor) RecordFinish(id int64, endedAt time.Time, outcome string, exitCode int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished = append(a.finished, outcome)
	return nil
}

func durationPtr(d time.Duration) *time.Duration { return &d }

func TestRun_TimeoutCompletesWithZeroExit(t *testing.T) {
	p := newFakeProvider()
	c := New(Options{
		Categories: []power.Category{power.Display, power.SystemIdle},
		Condition:  race.Condition{Timeout: durationPtr(10 * time.Millisecond)},
		Provider:   p,
	})

	code, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if c.State() != Done {
		t.Errorf("state = %s, want done", c.State())
	}
	if c.HoldCount() != 0 {
		t.Errorf("hold count after run = %d, want 0", c.HoldCount())
	}
	if len(p.created) != 2 {
		t.Errorf("created %d holds, want 2", len(p.created))
	}
	if p.releaseCount() != 2 {
		t.Errorf("released %d holds, want 2", p.releaseCount())
	}
}

func TestRun_DefaultsToSystemIdle(t *testing.T) {
	p := newFakeProvider()
	c := New(Options{
		Condition: race.Condition{Timeout: durationPtr(time.Millisecond)},
		Provider:  p,
	})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(p.created) != 1 || p.created[0] != power.SystemIdle {
		t.Errorf("created = %v, want [system-idle]", p.created)
	}
}

func TestRun_AcquireFailureTearsDownAndErrors(t *testing.T) {
	p := newFakeProvider()
	p.failOn[power.SystemIdle] = errors.New("assertion refused")
	c := New(Options{
		Categories: []power.Category{power.Display, power.SystemIdle},
		Condition:  race.Condition{Timeout: durationPtr(time.Millisecond)},
		Provider:   p,
	})

	_, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("expected acquire error")
	}
	if c.State() != Done {
		t.Errorf("state = %s, want done", c.State())
	}
	if c.HoldCount() != 0 {
		t.Errorf("hold count = %d, want 0", c.HoldCount())
	}
}

func TestRun_InterruptReleasesExactlyOnce(t *testing.T) {
	p := newFakeProvider()
	c := New(Options{
		Categories: []power.Category{power.SystemIdle},
		Condition:  race.Condition{}, // indefinite
		Provider:   p,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	code, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code != interruptExitCode {
		t.Errorf("exit code = %d, want %d", code, interruptExitCode)
	}
	if p.releaseCount() != 1 {
		t.Errorf("released %d times, want exactly 1", p.releaseCount())
	}
	if c.State() != Done {
		t.Errorf("state = %s, want done", c.State())
	}
}

func TestRun_DryRunSharesExitCodeContract(t *testing.T) {
	// Dry-run must not construct the platform provider; the dry-run
	// provider only logs, and a zero timeout ends immediately with the
	// same exit code as a live run.
	c := New(Options{
		DryRun:    true,
		Condition: race.Condition{Timeout: durationPtr(0)},
	})

	code, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if c.State() != Done {
		t.Errorf("state = %s, want done", c.State())
	}
}

func TestRun_AuditRecordsSession(t *testing.T) {
	p := newFakeProvider()
	a := &fakeAuditor{}
	c := New(Options{
		Categories: []power.Category{power.Display},
		Condition:  race.Condition{Timeout: durationPtr(time.Millisecond)},
		Provider:   p,
		Auditor:    a,
	})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(a.started) != 1 {
		t.Fatalf("recorded %d session starts, want 1", len(a.started))
	}
	if a.started[0].Categories != "display" {
		t.Errorf("audited categories = %q, want display", a.started[0].Categories)
	}
	if len(a.finished) != 1 || a.finished[0] != "timeout" {
		t.Errorf("audited outcome = %v, want [timeout]", a.finished)
	}
}

func TestConditionName(t *testing.T) {
	tests := []struct {
		name string
		cond race.Condition
		want string
	}{
		{"indefinite", race.Condition{}, "indefinite"},
		{"timeout", race.Condition{Timeout: durationPtr(time.Second)}, "timeout"},
		{"pid", race.Condition{PID: 1}, "pid"},
		{"both", race.Condition{PID: 1, Timeout: durationPtr(time.Second)}, "pid+timeout"},
		{"command", race.Condition{Command: []string{"true"}}, "command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Options{Condition: tt.cond})
			if got := c.conditionName(); got != tt.want {
				t.Errorf("conditionName() = %q, want %q", got, tt.want)
			}
		})
	}
}
