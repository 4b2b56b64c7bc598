package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hibasheikh90/vaultpilot/internal/scheduler"
)

var (
	runOnce     bool
	runDaemon   bool
	runInterval int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline (connectors, scan, ralph, recovery)",
	Long: `Runs one or more full scheduler cycles: inbound connector pulls,
Inbox triage and planning, autonomous task processing, recovery of
failed jobs, log rotation, and time-gated daily/weekly briefings.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single cycle and exit")
	runCmd.Flags().BoolVar(&runDaemon, "daemon", false, "Run continuously")
	runCmd.Flags().IntVarP(&runInterval, "interval", "i", 0, "Minutes between cycles in daemon mode (default: config)")
	runCmd.MarkFlagsMutuallyExclusive("once", "daemon")
}

func runRun(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}

	lock := scheduler.NewLock(svc.sched.LockPath())
	ok, err := lock.Acquire()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("another scheduler is already running on this vault")
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runDaemon {
		interval := time.Duration(runInterval) * time.Minute
		if runInterval <= 0 {
			interval = svc.cfg.Interval()
		}
		log.Printf("daemon started, cycle every %s", interval)
		if err := svc.sched.RunDaemon(ctx, interval); err != nil && err != context.Canceled {
			return err
		}
		return nil
	}

	stats, err := svc.sched.RunCycle(ctx)
	if err != nil {
		return err
	}
	log.Printf("cycle complete: scanned=%d triaged=%d planned=%d skipped=%d errors=%d",
		stats.Scanned, stats.Triaged, stats.Planned, stats.Skipped, stats.Errors)
	return nil
}
