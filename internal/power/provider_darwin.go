//go:build darwin

package power

import (
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	wherrors "github.com/wakehold/wakehold/internal/errors"
	"github.com/wakehold/wakehold/internal/instances"
)

// caffeinateFlag maps an assertion-based category to the caffeinate
// flag that creates the matching IOKit power assertion.
var caffeinateFlag = map[Category]string{
	Display:    "-d",
	DiskIdle:   "-m",
	SystemIdle: "-i",
	SystemOnAC: "-s",
	UserActive: "-u",
}

// instanceRegistry is the slice of instances.Registry the settings
// hold uses; an interface so tests can fake the coordination.
type instanceRegistry interface {
	Register() (first bool, err error)
	Deregister() (last bool, err error)
}

type darwinProvider struct {
	selfPID     int
	execCmd     func(name string, args ...string) *exec.Cmd
	newRegistry func() instanceRegistry
}

func newProvider() Provider {
	return &darwinProvider{
		selfPID: os.Getpid(),
		execCmd: exec.Command,
		newRegistry: func() instanceRegistry {
			return instances.New(instances.DefaultPath())
		},
	}
}

// CreateHold creates one sleep-prevention hold.
//
// Assertion-based categories spawn a caffeinate child bound to our PID
// with -w, so a crash of this process ends the hold automatically.
// SystemEntire is settings-based instead: it flips the SleepDisabled
// power setting via pmset and restores it on release.
func (p *darwinProvider) CreateHold(ctx context.Context, c Category) (Hold, error) {
	if c == SystemEntire {
		return p.createSettingsHold(ctx)
	}

	flag, ok := caffeinateFlag[c]
	if !ok {
		return nil, wherrors.New(wherrors.CodePowerAcquireFailed, "no inhibitor for category "+c.String())
	}

	cmd := p.execCmd("caffeinate", flag, "-w", strconv.Itoa(p.selfPID))
	h, err := startChildHold(cmd)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, wherrors.Wrap(wherrors.CodePowerUnsupported, "caffeinate is unavailable", err)
		}
		return nil, wherrors.Wrap(wherrors.CodePowerAcquireFailed, "failed to start caffeinate", err)
	}

	log.Printf("power: %s hold active (caffeinate %s, pid %d)", c, flag, cmd.Process.Pid)
	return h, nil
}

// createSettingsHold flips the global SleepDisabled setting, but only
// when this process is the first live wakehold instance: the setting
// is one shared switch, so concurrent runs coordinate through the
// instance registry and only the last one out restores it.
func (p *darwinProvider) createSettingsHold(ctx context.Context) (Hold, error) {
	reg := p.newRegistry()
	first, err := reg.Register()
	if err != nil {
		return nil, wherrors.Wrap(wherrors.CodePowerAcquireFailed,
			"failed to join the shared instance registry", err)
	}

	if first {
		if err := p.setSleepDisabled(ctx, true); err != nil {
			if _, derr := reg.Deregister(); derr != nil {
				log.Printf("power: failed to leave instance registry: %v", derr)
			}
			return nil, err
		}
		log.Printf("power: %s hold active (pmset disablesleep 1)", SystemEntire)
	} else {
		log.Printf("power: %s hold active (another instance already disabled sleep)", SystemEntire)
	}

	return &settingsHold{provider: p, registry: reg, done: make(chan struct{})}, nil
}

func (p *darwinProvider) setSleepDisabled(ctx context.Context, disabled bool) error {
	arg := "0"
	if disabled {
		arg = "1"
	}
	cmd := p.execCmd("pmset", "-a", "disablesleep", arg)
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = "pmset -a disablesleep failed (root required?)"
		}
		return wherrors.Wrap(wherrors.CodePowerAcquireFailed, msg, err)
	}
	return nil
}

// SleepDisabled reads the current SleepDisabled power setting from
// pmset -g. This deliberately queries the platform instead of local
// state so it reflects settings applied by other processes too.
func (p *darwinProvider) SleepDisabled() (bool, error) {
	out, err := p.execCmd("pmset", "-g").Output()
	if err != nil {
		return false, wherrors.Wrap(wherrors.CodePowerQueryFailed, "pmset -g failed", err)
	}
	return parsePmsetSettings(string(out)), nil
}

// parsePmsetSettings scans pmset -g output for the SleepDisabled row.
func parsePmsetSettings(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "SleepDisabled" {
			return fields[1] == "1"
		}
	}
	return false
}

// WakeDisplay turns the display on now with a one-second user-activity
// assertion. Fire and forget; the child reaps itself.
func (p *darwinProvider) WakeDisplay() error {
	cmd := p.execCmd("caffeinate", "-u", "-t", "1")
	if err := cmd.Start(); err != nil {
		return wherrors.Wrap(wherrors.CodePowerAcquireFailed, "failed to wake display", err)
	}
	go cmd.Wait()
	return nil
}

// settingsHold is the SystemEntire hold: not a child process but a
// persistent power setting, flipped back on release only when this is
// the last registered instance.
type settingsHold struct {
	provider *darwinProvider
	registry instanceRegistry

	mu       sync.Mutex
	done     chan struct{}
	err      error
	released bool
}

func (h *settingsHold) Done() <-chan struct{} {
	return h.done
}

func (h *settingsHold) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *settingsHold) Release(ctx context.Context) error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	last, derr := h.registry.Deregister()
	if derr != nil {
		// Losing the registry must not leave the machine insomniac;
		// restore the setting rather than risk leaking it.
		log.Printf("power: instance registry error on release, restoring sleep setting: %v", derr)
		last = true
	}

	var err error
	if last {
		err = h.provider.setSleepDisabled(ctx, false)
	} else {
		log.Printf("power: leaving sleep disabled, other instances still hold it")
	}

	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)

	if err != nil {
		return wherrors.Wrap(wherrors.CodePowerReleaseFailed, "failed to re-enable system sleep", err)
	}
	return nil
}
