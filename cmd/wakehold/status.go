package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wakehold/wakehold/internal/config"
	"github.com/wakehold/wakehold/internal/power"
)

func (c *cli) newStatusCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether system sleep is currently disabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			c.setupLogging(f.verbose || cfg.Verbose)
			return c.runStatus(power.NewProvider(), cfg)
		},
	}
}

// runStatus reads the platform's sleep-disabled state. The read goes to
// the OS rather than any local bookkeeping, so inhibitors held by other
// processes show up too.
func (c *cli) runStatus(provider power.Provider, cfg *config.Config) error {
	disabled, err := provider.SleepDisabled()
	if err != nil {
		return err
	}

	if disabled {
		fmt.Fprintln(c.stdout, "System sleep is currently disabled by an active inhibitor.")
	} else {
		fmt.Fprintln(c.stdout, "System sleep is not disabled.")
	}

	fmt.Fprintf(c.stdout, "Default categories: %s\n", strings.Join(cfg.Categories, ", "))
	if cfg.Audit {
		path := cfg.AuditPath
		if path == "" {
			path, _ = config.DefaultAuditPath()
		}
		fmt.Fprintf(c.stdout, "Session history: %s (max %d rows)\n", path, cfg.AuditMaxRows)
	} else {
		fmt.Fprintln(c.stdout, "Session history: disabled")
	}
	return nil
}
