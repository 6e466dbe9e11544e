package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) newDetectCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Watch for system sleep by probing the wall clock",
		Long: `detect probes the wall clock on a fixed interval. When the gap between
two probes is much larger than the interval, the system was asleep in
between; each such event is reported. Ctrl+C stops and prints a summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDetect(interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "probe interval")
	return cmd
}

func (c *cli) runDetect(interval time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(c.stdout, "Watching for sleep events (probing every %s). Press Ctrl+C to stop.\n", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		events  int
		longest time.Duration
		started = time.Now()
		last    = started
	)

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			if gap := now.Sub(last); sleptThrough(gap, interval) {
				slept := (gap - interval).Round(time.Second)
				events++
				if slept > longest {
					longest = slept
				}
				fmt.Fprintf(c.stdout, "%s  system was asleep for about %s\n",
					now.Format("15:04:05"), slept)
			}
			last = now
		case <-ctx.Done():
			fmt.Fprintf(c.stdout, "\nWatched for %s: %d sleep event(s)",
				time.Since(started).Round(time.Second), events)
			if events > 0 {
				fmt.Fprintf(c.stdout, ", longest %s", longest)
			}
			fmt.Fprintln(c.stdout)
			return nil
		}
	}
}

// sleptThrough reports whether the wall-clock gap between two probes
// indicates the system slept in between. Scheduling jitter stays well
// under one extra interval; suspend gaps dwarf it.
func sleptThrough(gap, interval time.Duration) bool {
	return gap > 2*interval
}
