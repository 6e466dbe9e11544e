// Package coordinator wires the hold set and the termination race into
// one run: acquire holds, race the termination conditions, tear the
// holds down exactly once, and report the process exit code.
package coordinator

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/wakehold/wakehold/internal/holdset"
	"github.com/wakehold/wakehold/internal/power"
	"github.com/wakehold/wakehold/internal/race"
	"github.com/wakehold/wakehold/internal/storage"
)

// State is the coordinator's lifecycle position.
type State int

const (
	// Idle is the initial state before any holds exist.
	Idle State = iota
	// HoldsAcquiring means platform holds are being created.
	HoldsAcquiring
	// HoldsActive means every requested hold is live.
	HoldsActive
	// Racing means the termination race is running.
	Racing
	// TearingDown means holds are being released.
	TearingDown
	// Done is terminal; the exit code is decided.
	Done
)

// String returns the state's log name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HoldsAcquiring:
		return "holds-acquiring"
	case HoldsActive:
		return "holds-active"
	case Racing:
		return "racing"
	case TearingDown:
		return "tearing-down"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// interruptExitCode is the conventional 128+SIGINT exit code.
const interruptExitCode = 130

// releaseTimeout bounds teardown so a wedged inhibitor cannot keep the
// process alive forever; holds die with us anyway (platform backstop).
const releaseTimeout = 5 * time.Second

// Auditor records session history. Implemented by storage.SQLiteStore;
// nil disables auditing.
type Auditor interface {
	RecordStart(sess *storage.Session, maxRows int) (int64, error)
	RecordFinish(id int64, endedAt time.Time, outcome string, exitCode int) error
}

// Options configures one run.
type Options struct {
	// Categories to hold. Empty defaults to SystemIdle.
	Categories []power.Category
	// Condition selects the termination waiters.
	Condition race.Condition
	// DropRoot demotes the spawned command to the invoking user.
	DropRoot bool
	// DryRun swaps the power provider for the logging stub. The state
	// machine is otherwise identical to a live run.
	DryRun bool
	// PollInterval for the PID watcher.
	PollInterval time.Duration
	// Provider overrides the platform provider (tests). When nil, the
	// platform provider or the dry-run provider is chosen per DryRun.
	Provider power.Provider
	// Auditor records the session; nil disables auditing.
	Auditor Auditor
	// AuditMaxRows caps session history.
	AuditMaxRows int
	// Now returns current time; defaults to time.Now.
	Now func() time.Time
}

// Coordinator owns the hold set for exactly one run.
type Coordinator struct {
	opts  Options
	holds *holdset.Set
	now   func() time.Time

	mu       sync.Mutex
	state    State
	tornDown bool
}

// New creates a coordinator in the Idle state.
func New(opts Options) *Coordinator {
	if len(opts.Categories) == 0 {
		opts.Categories = []power.Category{power.SystemIdle}
	}

	provider := opts.Provider
	if provider == nil {
		if opts.DryRun {
			provider = power.NewDryRun()
		} else {
			provider = power.NewProvider()
		}
	}

	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &Coordinator{
		opts:  opts,
		holds: holdset.New(provider),
		now:   nowFn,
	}
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HoldCount reports how many holds are live right now.
func (c *Coordinator) HoldCount() int {
	return c.holds.Len()
}

// Run executes the full lifecycle and returns the final exit code.
// A non-nil error is always fatal (the CLI maps its code to a distinct
// exit code); holds are released before Run returns in every case.
//
// The interrupt signal is delivered to the race as context
// cancellation: the handler never touches holds itself, it only asks
// the single-owner teardown path to run.
func (c *Coordinator) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One interrupt handler for the process lifetime of this run.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("coordinator: received %s, releasing holds", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Teardown runs on every exit path and is idempotent.
	defer c.teardown()

	c.transition(HoldsAcquiring)
	if err := c.holds.Acquire(ctx, c.opts.Categories); err != nil {
		c.teardown()
		return 0, err
	}
	c.transition(HoldsActive)
	log.Printf("coordinator: holding %s", c.categoryNames())

	auditID := c.auditStart()

	c.transition(Racing)
	outcome, err := race.Run(ctx, c.opts.Condition, race.Options{
		DropRoot:     c.opts.DropRoot,
		PollInterval: c.opts.PollInterval,
	})

	c.teardown()

	if err != nil {
		c.auditFinish(auditID, "error", 0)
		return 0, err
	}

	code := outcome.ExitCode
	if outcome.Kind == race.KindInterrupted {
		code = interruptExitCode
	}
	c.auditFinish(auditID, outcome.Kind.String(), code)

	log.Printf("coordinator: race ended (%s), exit code %d", outcome.Kind, code)
	return code, nil
}

// teardown releases every hold exactly once and moves the state
// machine through TearingDown to Done. Safe to call repeatedly.
func (c *Coordinator) teardown() {
	c.mu.Lock()
	already := c.tornDown
	c.tornDown = true
	c.mu.Unlock()
	if already {
		return
	}

	c.transition(TearingDown)
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	c.holds.Release(ctx)
	c.transition(Done)
}

func (c *Coordinator) transition(next State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	log.Printf("coordinator: state %s", next)
}

func (c *Coordinator) categoryNames() string {
	names := make([]string, len(c.opts.Categories))
	for i, cat := range c.opts.Categories {
		names[i] = cat.String()
	}
	return strings.Join(names, ",")
}

func (c *Coordinator) conditionName() string {
	cond := c.opts.Condition
	if cond.PID > 0 && cond.Timeout != nil {
		return "pid+timeout"
	}
	return cond.Kind().String()
}

// auditStart records the session start. Audit failures never fail the
// run; the exit-code contract and teardown always win.
func (c *Coordinator) auditStart() int64 {
	if c.opts.Auditor == nil {
		return 0
	}
	id, err := c.opts.Auditor.RecordStart(&storage.Session{
		StartedAt:  c.now().UTC(),
		Categories: c.categoryNames(),
		Condition:  c.conditionName(),
		DryRun:     c.opts.DryRun,
	}, c.opts.AuditMaxRows)
	if err != nil {
		log.Printf("coordinator: audit start failed: %v", err)
		return 0
	}
	return id
}

func (c *Coordinator) auditFinish(id int64, outcome string, exitCode int) {
	if c.opts.Auditor == nil || id == 0 {
		return
	}
	if err := c.opts.Auditor.RecordFinish(id, c.now().UTC(), outcome, exitCode); err != nil {
		log.Printf("coordinator: audit finish failed: %v", err)
	}
}
