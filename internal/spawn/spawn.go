//go:build !windows

// Package spawn runs the watched command for the termination race.
//
// When wakehold's own stdio is the terminal, the command simply
// inherits it and behaves exactly as if run directly. When stdout is
// redirected, the command is run on a PTY (pseudo-terminal) instead
// and its output relayed, so interactive programs keep their coloring
// and terminal behavior even though wakehold sits in between. This is
// the same creack/pty arrangement terminal multiplexers use: the
// command attaches to the slave side and thinks it owns a real
// terminal, while we pump bytes through the master.
package spawn

import (
	"context"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/creack/pty"
	"github.com/mattn/go-isatty"

	wherrors "github.com/wakehold/wakehold/internal/errors"
)

// Options controls how the command is launched.
type Options struct {
	// DropRoot demotes the command to the invoking (pre-sudo) user's
	// identity before exec. Fails the run if the identity cannot be
	// resolved; the command never starts in that case.
	DropRoot bool
}

// Run executes argv attached to the controlling terminal and blocks
// until it exits, returning the command's exit code.
func Run(ctx context.Context, argv []string, opts Options) (int, error) {
	if len(argv) == 0 {
		return 0, wherrors.New(wherrors.CodeCommandSpawnFailed, "no command given")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	if opts.DropRoot {
		cred, err := sudoCredential()
		if err != nil {
			return 0, err
		}
		if cred != nil {
			cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
			log.Printf("spawn: dropping privileges to uid=%d gid=%d", cred.Uid, cred.Gid)
		}
	}

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return runInherited(cmd)
	}
	return runOnPTY(cmd)
}

// runInherited hands the command our own stdio. When that stdio is the
// controlling terminal this is indistinguishable from running the
// command directly.
func runInherited(cmd *exec.Cmd) (int, error) {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, wherrors.Wrap(wherrors.CodeCommandSpawnFailed, "failed to start "+cmd.Path, err)
	}
	return waitExitCode(cmd)
}

// runOnPTY keeps the command believing it has a terminal even though
// our own stdout is redirected.
func runOnPTY(cmd *exec.Cmd) (int, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 0, wherrors.Wrap(wherrors.CodeCommandSpawnFailed, "failed to start "+cmd.Path+" on a pty", err)
	}
	defer ptmx.Close()

	// Track the real terminal's size if stdin still is one, so
	// full-screen programs lay out correctly.
	if isatty.IsTerminal(os.Stdin.Fd()) {
		winch := make(chan os.Signal, 1)
		signal.Notify(winch, syscall.SIGWINCH)
		go func() {
			for range winch {
				_ = pty.InheritSize(os.Stdin, ptmx)
			}
		}()
		winch <- syscall.SIGWINCH
		defer signal.Stop(winch)
	}

	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()

	// Copy until the slave side closes; reads fail with EIO once the
	// command exits, which is the normal end-of-session signal.
	_, _ = io.Copy(os.Stdout, ptmx)

	return waitExitCode(cmd)
}

func waitExitCode(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return 0, wherrors.Wrap(wherrors.CodeCommandSpawnFailed, "failed waiting for "+cmd.Path, err)
		}
	}

	state := cmd.ProcessState
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	code := state.ExitCode()
	if code < 0 {
		code = 1
	}
	return code, nil
}

// sudoCredential resolves the invoking user's identity from the
// environment sudo leaves behind. Returns nil when not running as
// root, in which case there is nothing to drop.
func sudoCredential() (*syscall.Credential, error) {
	if os.Geteuid() != 0 {
		return nil, nil
	}

	uidStr := os.Getenv("SUDO_UID")
	gidStr := os.Getenv("SUDO_GID")
	if uidStr == "" || gidStr == "" {
		return nil, wherrors.New(wherrors.CodePrivilegeDropFailed,
			"running as root but SUDO_UID/SUDO_GID are not set; cannot determine invoking user")
	}

	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil {
		return nil, wherrors.Wrap(wherrors.CodePrivilegeDropFailed, "invalid SUDO_UID "+uidStr, err)
	}
	gid, err := strconv.ParseUint(gidStr, 10, 32)
	if err != nil {
		return nil, wherrors.Wrap(wherrors.CodePrivilegeDropFailed, "invalid SUDO_GID "+gidStr, err)
	}

	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}
