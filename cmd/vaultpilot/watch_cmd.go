package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the Inbox and triage new files as they arrive",
	Long: `Sweeps any files already sitting in Inbox, then blocks watching the
directory. Every new .md file is triaged into Needs_Action or Done and
gets a generated plan. Failures are queued for automatic recovery.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("watching %s, drop a .md file to trigger triage", svc.vault.Dir(vault.StageInbox))
	if err := svc.pipeline.Watch(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
