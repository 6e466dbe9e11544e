package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wakehold/wakehold/internal/config"
	"github.com/wakehold/wakehold/internal/storage"
)

func (c *cli) newHistoryCommand(f *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent wake sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			c.setupLogging(f.verbose || cfg.Verbose)

			store, err := openAuditStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			return c.runHistory(store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of sessions to show")
	return cmd
}

func (c *cli) runHistory(store *storage.SQLiteStore, limit int) error {
	sessions, err := store.ListSessions(limit)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Fprintln(c.stdout, "No wake sessions recorded.")
		return nil
	}

	for _, s := range sessions {
		fmt.Fprintf(c.stdout, "#%d %s %s [%s] %s%s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			sessionDuration(s),
			s.Categories,
			sessionResult(s),
			dryRunSuffix(s),
		)
	}
	return nil
}

// sessionDuration renders the session length, or how long a still-open
// session has been running.
func sessionDuration(s *storage.Session) string {
	if s.EndedAt.IsZero() {
		return "(running)"
	}
	return s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
}

func sessionResult(s *storage.Session) string {
	if s.Outcome == "" {
		return s.Condition
	}
	if s.ExitCode != 0 {
		return fmt.Sprintf("%s exit %d", s.Outcome, s.ExitCode)
	}
	return s.Outcome
}

func dryRunSuffix(s *storage.Session) string {
	if s.DryRun {
		return " (dry run)"
	}
	return ""
}
