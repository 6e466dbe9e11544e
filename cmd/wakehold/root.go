package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wakehold/wakehold/internal/config"
	"github.com/wakehold/wakehold/internal/coordinator"
	"github.com/wakehold/wakehold/internal/duration"
	"github.com/wakehold/wakehold/internal/power"
	"github.com/wakehold/wakehold/internal/race"
	"github.com/wakehold/wakehold/internal/storage"
)

type rootFlags struct {
	display    bool
	disk       bool
	idle       bool
	system     bool
	entire     bool
	userActive bool

	timeout string
	waitfor int

	dryRun   bool
	dropRoot bool
	noAudit  bool

	verbose    bool
	configPath string
}

const rootLong = `wakehold prevents the system from sleeping while it runs.

Pick one or more sleep categories to hold (default: system idle sleep),
then wakehold keeps them held until a termination condition fires:

  - a trailing command is given: hold until the command exits, and exit
    with the command's own exit code
  - --waitfor: hold until the given process exits
  - --timeout: hold for a duration; with --waitfor, whichever comes first
  - neither: hold until interrupted (Ctrl+C)

All holds are released before wakehold exits, on every path.`

func (c *cli) newRootCommand() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "wakehold [flags] [command [args...]]",
		Short:         "Hold off system sleep until a command, process, or timer finishes",
		Long:          rootLong,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runHold(cmd.Context(), f, args)
		},
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	fl := cmd.Flags()
	// Flag parsing stops at the first positional so the trailing
	// command keeps its own flags: wakehold -d make -j8
	fl.SetInterspersed(false)
	fl.BoolVarP(&f.display, "display", "d", false, "prevent the display from sleeping")
	fl.BoolVarP(&f.disk, "disk", "m", false, "prevent the disk from idle sleeping")
	fl.BoolVarP(&f.idle, "idle", "i", false, "prevent the system from idle sleeping")
	fl.BoolVarP(&f.system, "system", "s", false, "prevent system sleep while on AC power")
	fl.BoolVarP(&f.entire, "entire", "e", false, "disable system sleep entirely, on any power source")
	fl.BoolVarP(&f.userActive, "user-active", "u", false, "assert the user is active (wakes the display)")
	fl.StringVarP(&f.timeout, "timeout", "t", "", "release holds after a duration, e.g. \"2h 30m\" or \"600\"")
	fl.IntVarP(&f.waitfor, "waitfor", "w", 0, "release holds when the process with this pid exits")
	fl.BoolVar(&f.dryRun, "dry-run", false, "log what would be held without touching the OS")
	fl.BoolVar(&f.dropRoot, "drop-root", false, "run the command as the invoking user when under sudo")
	fl.BoolVar(&f.noAudit, "no-audit", false, "skip recording this run in the session history")

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "enable informational logging")
	pf.StringVar(&f.configPath, "config", "", "config file (default ~/.wakehold/config.toml)")

	cmd.AddCommand(
		c.newStatusCommand(f),
		c.newHistoryCommand(f),
		c.newDetectCommand(),
		c.newVersionCommand(),
	)

	return cmd
}

// runHold is the root command: acquire holds, race the termination
// conditions, release, exit.
func (c *cli) runHold(ctx context.Context, f *rootFlags, args []string) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	c.setupLogging(f.verbose || cfg.Verbose)

	cond, err := buildCondition(f, args)
	if err != nil {
		return err
	}

	categories, err := selectCategories(f, cfg)
	if err != nil {
		return err
	}

	opts := coordinator.Options{
		Categories:   categories,
		Condition:    cond,
		DropRoot:     f.dropRoot,
		DryRun:       f.dryRun,
		PollInterval: time.Duration(cfg.PidPollMs) * time.Millisecond,
		AuditMaxRows: cfg.AuditMaxRows,
	}

	if cfg.Audit && !f.noAudit {
		store, err := openAuditStore(cfg)
		if err != nil {
			// Audit never blocks a run.
			log.Printf("cli: session history unavailable: %v", err)
		} else {
			defer store.Close()
			opts.Auditor = store
		}
	}

	code, err := coordinator.New(opts).Run(ctx)
	if err != nil {
		return err
	}
	c.exitCode = code
	return nil
}

// setupLogging silences the informational log unless verbose is on.
// Errors reach the user through the CLI layer either way.
func (c *cli) setupLogging(verbose bool) {
	if verbose {
		log.SetOutput(c.stderr)
	} else {
		log.SetOutput(io.Discard)
	}
}

// buildCondition translates the flags and trailing args into the
// termination condition. A trailing command excludes --waitfor and
// --timeout: the command governs the run alone.
func buildCondition(f *rootFlags, args []string) (race.Condition, error) {
	if len(args) > 0 {
		if f.waitfor != 0 || f.timeout != "" {
			return race.Condition{}, usageError{
				fmt.Errorf("a command cannot be combined with --waitfor or --timeout"),
			}
		}
		return race.Condition{Command: args}, nil
	}

	var cond race.Condition
	if f.waitfor != 0 {
		if f.waitfor < 0 {
			return race.Condition{}, usageError{
				fmt.Errorf("--waitfor pid must be positive, got %d", f.waitfor),
			}
		}
		cond.PID = f.waitfor
	}
	if f.timeout != "" {
		d, err := duration.Parse(f.timeout)
		if err != nil {
			return race.Condition{}, err
		}
		cond.Timeout = &d
	}
	return cond, nil
}

// selectCategories resolves the category set: flags win; otherwise the
// config file's defaults apply.
func selectCategories(f *rootFlags, cfg *config.Config) ([]power.Category, error) {
	var cats []power.Category
	if f.display {
		cats = append(cats, power.Display)
	}
	if f.disk {
		cats = append(cats, power.DiskIdle)
	}
	if f.idle {
		cats = append(cats, power.SystemIdle)
	}
	if f.system {
		cats = append(cats, power.SystemOnAC)
	}
	if f.entire {
		cats = append(cats, power.SystemEntire)
	}
	if f.userActive {
		cats = append(cats, power.UserActive)
	}
	if len(cats) > 0 {
		return cats, nil
	}

	for _, name := range cfg.Categories {
		cat, err := power.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// openAuditStore opens the session history database, creating its
// directory on first use.
func openAuditStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	path := cfg.AuditPath
	if path == "" {
		var err error
		path, err = config.DefaultAuditPath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	return storage.NewSQLiteStore(path)
}
