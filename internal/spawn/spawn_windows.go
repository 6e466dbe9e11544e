//go:build windows

package spawn

import (
	"context"
	"os"
	"os/exec"

	wherrors "github.com/wakehold/wakehold/internal/errors"
)

// Options controls how the command is launched.
type Options struct {
	// DropRoot is a unix concept; requesting it on Windows fails the
	// run rather than silently running elevated.
	DropRoot bool
}

// Run executes argv with inherited stdio and blocks until it exits.
func Run(ctx context.Context, argv []string, opts Options) (int, error) {
	if len(argv) == 0 {
		return 0, wherrors.New(wherrors.CodeCommandSpawnFailed, "no command given")
	}
	if opts.DropRoot {
		return 0, wherrors.New(wherrors.CodePrivilegeDropFailed, "privilege dropping is not supported on windows")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, wherrors.Wrap(wherrors.CodeCommandSpawnFailed, "failed to start "+cmd.Path, err)
	}
	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return 0, wherrors.Wrap(wherrors.CodeCommandSpawnFailed, "failed waiting for "+cmd.Path, err)
		}
	}
	code := cmd.ProcessState.ExitCode()
	if code < 0 {
		code = 1
	}
	return code, nil
}
