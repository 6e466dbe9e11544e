// Package holdset owns the set of active sleep-prevention holds.
//
// The set is populated once after argument resolution and torn down
// exactly once before the process reports its outcome. It is owned
// exclusively by the coordinator; the internal mutex only defends the
// acquire/release bookkeeping, not concurrent callers.
package holdset

import (
	"context"
	"log"
	"sync"

	"github.com/wakehold/wakehold/internal/power"
)

// Set maps each requested sleep category to its live hold.
// At most one hold per category.
type Set struct {
	provider power.Provider

	mu    sync.Mutex
	holds map[power.Category]power.Hold
}

// New creates an empty hold set backed by the given provider.
func New(provider power.Provider) *Set {
	return &Set{
		provider: provider,
		holds:    make(map[power.Category]power.Hold),
	}
}

// Acquire creates one hold per requested category. Requesting the
// user-active category additionally wakes the display immediately.
//
// If any individual acquisition fails, every hold acquired so far in
// this call is released before the error is returned: a failed acquire
// never leaves a partially-active set behind.
func (s *Set) Acquire(ctx context.Context, categories []power.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range categories {
		if _, exists := s.holds[c]; exists {
			continue
		}

		h, err := s.provider.CreateHold(ctx, c)
		if err != nil {
			s.releaseLocked(ctx)
			return err
		}
		s.holds[c] = h
		go watchHold(c, h)

		if c == power.UserActive {
			// One-shot display wake rides along with the assertion.
			// Not being able to light the display is worth a log
			// line, not a failed run.
			if werr := s.provider.WakeDisplay(); werr != nil {
				log.Printf("holdset: wake display failed: %v", werr)
			}
		}
	}

	return nil
}

// watchHold reports an inhibitor dying out from under the set. The
// run continues: the remaining holds still cover their categories,
// and teardown releases whatever is left. A deliberate release closes
// the hold with a nil error and stays silent here.
func watchHold(c power.Category, h power.Hold) {
	<-h.Done()
	if err := h.Err(); err != nil {
		log.Printf("holdset: %s hold ended early: %v", c, err)
	}
}

// Release releases every hold currently held, in any order. Individual
// release failures are logged and swallowed because teardown must
// always complete. Releasing an empty or already-released set is a
// safe no-op.
func (s *Set) Release(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(ctx)
}

func (s *Set) releaseLocked(ctx context.Context) {
	for c, h := range s.holds {
		if err := h.Release(ctx); err != nil {
			log.Printf("holdset: release of %s hold failed: %v", c, err)
		}
		delete(s.holds, c)
	}
}

// Len reports how many holds are currently active.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holds)
}

// AnySleepDisabled reports whether the platform says system sleep is
// disabled right now. This reads the external capability rather than
// local state, so it is true even when another process owns the holds.
func (s *Set) AnySleepDisabled() (bool, error) {
	return s.provider.SleepDisabled()
}
