package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	wherrors "github.com/wakehold/wakehold/internal/errors"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd/wakehold
var Version = "dev"

// Exit codes. The command's own exit code passes through when a command
// ran; these cover wakehold's own failure classes so wrapping scripts
// can tell them apart.
const (
	exitUsage     = 2 // bad flags, invalid duration, conflicting conditions
	exitNoProcess = 3 // --waitfor PID does not exist
	exitPower     = 4 // platform power-management failure
	exitPrivilege = 5 // could not drop root before spawning
	exitSpawn     = 6 // command could not be launched
)

// usageError marks errors that should exit with the usage code.
type usageError struct{ error }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the testable entry point: it builds the command tree, executes
// it against args, and maps the result to a process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}

	root := c.newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", wherrors.GetMessage(err))
		return exitCodeFor(err)
	}
	return c.exitCode
}

// cli carries the writers and the final exit code across cobra's
// error-only RunE boundary.
type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	exitCode int
}

// exitCodeFor maps an error to the documented exit code for its class.
func exitCodeFor(err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		return exitUsage
	}

	switch wherrors.GetCode(err) {
	case wherrors.CodeDurationInvalid:
		return exitUsage
	case wherrors.CodeProcessNotFound:
		return exitNoProcess
	case wherrors.CodePowerAcquireFailed,
		wherrors.CodePowerReleaseFailed,
		wherrors.CodePowerQueryFailed,
		wherrors.CodePowerUnsupported:
		return exitPower
	case wherrors.CodePrivilegeDropFailed:
		return exitPrivilege
	case wherrors.CodeCommandSpawnFailed:
		return exitSpawn
	default:
		return 1
	}
}
