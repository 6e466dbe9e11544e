// Package power is the platform power-management capability surface.
//
// It exposes a small Provider interface for creating process-scoped
// sleep-prevention holds, querying the system-wide sleep-disabled state,
// and waking the display. OS specifics live behind build-tagged provider
// implementations; everything above this package is platform-neutral.
package power

import (
	"context"
	"fmt"
)

// Category identifies one class of sleep that a hold prevents.
type Category int

const (
	// Display prevents the display from sleeping.
	Display Category = iota
	// DiskIdle prevents the disk from idle sleeping.
	DiskIdle
	// SystemIdle prevents the system from idle sleeping.
	SystemIdle
	// SystemOnAC prevents system sleep while on AC power.
	SystemOnAC
	// SystemEntire disables system sleep entirely, on any power source.
	SystemEntire
	// UserActive asserts that the user is active, which also keeps the
	// display awake. Acquiring it wakes the display immediately.
	UserActive
)

// String returns the category's user-facing name.
func (c Category) String() string {
	switch c {
	case Display:
		return "display"
	case DiskIdle:
		return "disk-idle"
	case SystemIdle:
		return "system-idle"
	case SystemOnAC:
		return "system-on-ac"
	case SystemEntire:
		return "system-entire"
	case UserActive:
		return "user-active"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory converts a config/CLI name back into a Category.
func ParseCategory(name string) (Category, error) {
	switch name {
	case "display":
		return Display, nil
	case "disk-idle", "disk":
		return DiskIdle, nil
	case "system-idle", "idle":
		return SystemIdle, nil
	case "system-on-ac", "system":
		return SystemOnAC, nil
	case "system-entire", "entire":
		return SystemEntire, nil
	case "user-active":
		return UserActive, nil
	default:
		return 0, fmt.Errorf("unknown sleep category %q", name)
	}
}

// Hold represents one active platform-level sleep prevention.
// A Hold is owned by exactly one holdset; releasing it more than once
// is a safe no-op.
type Hold interface {
	// Done is closed when the underlying inhibitor exits, whether
	// through Release or on its own.
	Done() <-chan struct{}
	// Err returns the terminal inhibitor error after Done closes.
	Err() error
	// Release requests inhibitor shutdown. Redundant calls are no-ops.
	Release(ctx context.Context) error
}

// Provider creates holds and reads platform power state.
type Provider interface {
	// CreateHold creates one sleep-prevention hold for a category.
	CreateHold(ctx context.Context, c Category) (Hold, error)

	// SleepDisabled reports whether system sleep is currently disabled,
	// reading the platform's state rather than any local bookkeeping so
	// the answer reflects holds owned by other processes too.
	SleepDisabled() (bool, error)

	// WakeDisplay turns the display on immediately. One-shot.
	WakeDisplay() error
}

// NewProvider returns the platform provider.
// See provider_darwin.go, provider_linux.go, provider_other.go.
func NewProvider() Provider {
	return newProvider()
}
