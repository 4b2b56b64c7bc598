package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	ralphOnce     bool
	ralphDaemon   bool
	ralphCycles   int
	ralphInterval int
)

var ralphCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Run the autonomous task loop over Needs_Action",
	Long: `Ralph scans Needs_Action, advances the safe parts of each task's
checklist, archives finished work to Done, and keeps going until the
queue is empty, nothing can make progress, or the cycle budget runs out.`,
	RunE: runRalph,
}

func init() {
	ralphCmd.Flags().BoolVar(&ralphOnce, "once", false, "Single pass only")
	ralphCmd.Flags().BoolVar(&ralphDaemon, "daemon", false, "Run continuously")
	ralphCmd.Flags().IntVar(&ralphCycles, "cycles", 10, "Max cycles per run")
	ralphCmd.Flags().IntVarP(&ralphInterval, "interval", "i", 5, "Minutes between runs in daemon mode")
	ralphCmd.MarkFlagsMutuallyExclusive("once", "daemon")
}

func runRalph(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ralphOnce {
		stats := svc.ralph.RunOnce()
		fmt.Printf("ralph single pass: scanned=%d processed=%d completed=%d blocked=%d retried=%d errors=%d remaining=%d\n",
			stats.Scanned, stats.Processed, stats.Completed, stats.Blocked,
			stats.Retried, stats.Errors, stats.Remaining)
		return nil
	}

	if ralphDaemon {
		interval := time.Duration(ralphInterval) * time.Minute
		if err := svc.ralph.RunDaemon(ctx, interval, ralphCycles); err != nil && err != context.Canceled {
			return err
		}
		return nil
	}

	summary := svc.ralph.Run(ctx, ralphCycles)
	fmt.Printf("ralph run: cycles=%d completed=%d processed=%d blocked=%d errors=%d reason=%s\n",
		summary.Cycles, summary.TotalCompleted, summary.TotalProcessed,
		summary.TotalBlocked, summary.TotalErrors, summary.StoppedReason)
	return nil
}
