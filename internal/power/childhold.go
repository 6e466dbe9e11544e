//go:build darwin || linux

package power

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// childHold is a hold backed by a long-running inhibitor child process
// (caffeinate on macOS, systemd-inhibit on Linux). The hold is active
// for as long as the child lives; releasing it terminates the child.
// If this process dies without releasing, the child notices (pid watch
// or parent-death signal) and exits on its own, which is the platform
// backstop against leaked holds.
type childHold struct {
	cmd *exec.Cmd

	mu       sync.Mutex
	done     chan struct{}
	err      error
	released bool
	once     sync.Once
}

func startChildHold(cmd *exec.Cmd) (*childHold, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &childHold{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go h.wait()
	return h, nil
}

func (h *childHold) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	if h.released {
		err = nil
	}
	h.err = err
	h.mu.Unlock()

	close(h.done)
}

func (h *childHold) Done() <-chan struct{} {
	return h.done
}

func (h *childHold) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *childHold) Release(ctx context.Context) error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}

	h.once.Do(func() {
		h.mu.Lock()
		h.released = true
		h.mu.Unlock()
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
	})

	select {
	case <-ctx.Done():
		// Escalate to SIGKILL on timeout to reduce orphan-process risk.
		_ = h.cmd.Process.Kill()
		select {
		case <-h.done:
		case <-time.After(200 * time.Millisecond):
		}
		return fmt.Errorf("release timed out waiting for inhibitor exit: %w", ctx.Err())
	case <-h.done:
		return nil
	}
}
