package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Retry every pending task in the failed-task queue",
	RunE:  runRecover,
}

func runRecover(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}

	stats := svc.recovery.RunRecovery()
	fmt.Printf("recovery pass: attempted=%d recovered=%d failed=%d skipped=%d\n",
		stats.Attempted, stats.Recovered, stats.Failed, stats.Skipped)

	counts := svc.queue.Stats()
	fmt.Printf("queue: pending=%d resolved=%d failed=%d total=%d\n",
		counts.Pending, counts.Resolved, counts.Failed, counts.Total)
	return nil
}
