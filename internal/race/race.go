// Package race runs the selected termination waiters concurrently and
// reports which one finished first.
//
// The waiters are passive: a command wait, a PID-exit poll, a timer,
// and the interrupt signal (delivered as context cancellation by the
// coordinator). The first to complete decides the outcome; the losers
// are abandoned in place, which is safe because none of them has side
// effects to undo.
package race

import (
	"context"
	"fmt"
	"time"

	wherrors "github.com/wakehold/wakehold/internal/errors"
	"github.com/wakehold/wakehold/internal/spawn"
)

// Kind names the condition that ended the race.
type Kind int

const (
	// KindCommand means the spawned command exited.
	KindCommand Kind = iota
	// KindPID means the watched external process disappeared.
	KindPID
	// KindTimeout means the requested duration elapsed.
	KindTimeout
	// KindIndefinite means no bounded condition was configured; the
	// race only ends on interrupt. Never appears in an Outcome.
	KindIndefinite
	// KindInterrupted means an interrupt signal ended the race.
	KindInterrupted
)

// String returns the kind's audit/log name.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindPID:
		return "pid"
	case KindTimeout:
		return "timeout"
	case KindIndefinite:
		return "indefinite"
	case KindInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Condition selects the termination waiters for one run.
// Priority: Command beats everything; otherwise PID and Timeout race
// each other if both are set; with neither, the run is indefinite.
type Condition struct {
	// Command is the argv to spawn and wait for. Mutually exclusive
	// with PID/Timeout by construction in the CLI layer.
	Command []string
	// PID is an external process to watch, 0 if unset.
	PID int
	// Timeout is the bounded wait, nil if unset.
	Timeout *time.Duration
}

// Kind reports which branch of the race this condition selects.
func (c Condition) Kind() Kind {
	switch {
	case len(c.Command) > 0:
		return KindCommand
	case c.PID > 0 && c.Timeout != nil:
		return KindPID // pid and timeout race; recorded as pid+timeout upstream
	case c.PID > 0:
		return KindPID
	case c.Timeout != nil:
		return KindTimeout
	default:
		return KindIndefinite
	}
}

// Outcome reports how the race ended. ExitCode is the command's exit
// code when a command ran, 0 otherwise.
type Outcome struct {
	Kind     Kind
	ExitCode int
}

// Options tunes the race.
type Options struct {
	// DropRoot is forwarded to the command spawner.
	DropRoot bool
	// PollInterval is the PID watcher's probe interval.
	// Defaults to 500ms.
	PollInterval time.Duration
}

// Testability seams (function variables).
var (
	spawnRun = spawn.Run
	pidAlive = processAlive
)

// Run blocks until one waiter completes or ctx is cancelled and
// returns the winning outcome. Cancellation of ctx is the interrupt
// path and takes priority over every other condition at any time.
func Run(ctx context.Context, cond Condition, opts Options) (Outcome, error) {
	if len(cond.Command) > 0 {
		return runCommand(ctx, cond.Command, opts)
	}
	return runWaiters(ctx, cond, opts)
}

type commandResult struct {
	code int
	err  error
}

func runCommand(ctx context.Context, argv []string, opts Options) (Outcome, error) {
	ch := make(chan commandResult, 1)
	go func() {
		code, err := spawnRun(ctx, argv, spawn.Options{DropRoot: opts.DropRoot})
		ch <- commandResult{code: code, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			// An interrupt kills the command via its context; report
			// that as interruption, not as a spawn failure.
			if ctx.Err() != nil {
				return Outcome{Kind: KindInterrupted}, nil
			}
			return Outcome{}, res.err
		}
		return Outcome{Kind: KindCommand, ExitCode: res.code}, nil
	case <-ctx.Done():
		return Outcome{Kind: KindInterrupted}, nil
	}
}

func runWaiters(ctx context.Context, cond Condition, opts Options) (Outcome, error) {
	var timeoutCh <-chan time.Time
	if cond.Timeout != nil {
		timer := time.NewTimer(*cond.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var pidCh chan struct{}
	if cond.PID > 0 {
		alive, err := pidAlive(cond.PID)
		if err != nil {
			return Outcome{}, wherrors.Wrap(wherrors.CodeProcessNotFound,
				fmt.Sprintf("cannot watch pid %d", cond.PID), err)
		}
		if !alive {
			return Outcome{}, wherrors.New(wherrors.CodeProcessNotFound,
				fmt.Sprintf("no process with pid %d", cond.PID))
		}

		interval := opts.PollInterval
		if interval <= 0 {
			interval = 500 * time.Millisecond
		}

		pidCh = make(chan struct{})
		go watchPID(ctx, cond.PID, interval, pidCh)
	}

	if timeoutCh == nil && pidCh == nil {
		// Indefinite: block until interrupt.
		<-ctx.Done()
		return Outcome{Kind: KindInterrupted}, nil
	}

	select {
	case <-timeoutCh:
		return Outcome{Kind: KindTimeout}, nil
	case <-pidCh:
		return Outcome{Kind: KindPID}, nil
	case <-ctx.Done():
		return Outcome{Kind: KindInterrupted}, nil
	}
}

// watchPID closes done once the process disappears. Probe errors other
// than "gone" count as alive; a process we cannot signal is usually
// still running under another user.
func watchPID(ctx context.Context, pid int, interval time.Duration, done chan<- struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			alive, err := pidAlive(pid)
			if err == nil && !alive {
				close(done)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
