package power

import (
	"context"
	"log"
	"sync"
)

// DryRunProvider logs intended power-management actions without ever
// touching the OS. The coordinator swaps it in for --dry-run so the
// rest of the run (race, teardown, exit codes) goes through the exact
// same code path as a live run.
type DryRunProvider struct{}

// NewDryRun returns a provider that only logs intent.
func NewDryRun() *DryRunProvider {
	return &DryRunProvider{}
}

func (p *DryRunProvider) CreateHold(ctx context.Context, c Category) (Hold, error) {
	log.Printf("power: dry-run, would create %s hold", c)
	return &inertHold{done: make(chan struct{})}, nil
}

func (p *DryRunProvider) SleepDisabled() (bool, error) {
	log.Printf("power: dry-run, would query sleep-disabled state")
	return false, nil
}

func (p *DryRunProvider) WakeDisplay() error {
	log.Printf("power: dry-run, would wake display")
	return nil
}

// inertHold is a hold with no backing resource.
type inertHold struct {
	once sync.Once
	done chan struct{}
}

func (h *inertHold) Done() <-chan struct{} { return h.done }

func (h *inertHold) Err() error { return nil }

func (h *inertHold) Release(ctx context.Context) error {
	h.once.Do(func() { close(h.done) })
	return nil
}
