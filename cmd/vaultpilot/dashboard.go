package main

import (
	"github.com/spf13/cobra"

	"github.com/hibasheikh90/vaultpilot/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Launch the live terminal dashboard",
	RunE:  runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	return tui.NewDashboard(svc.vault, svc.queue, svc.log).Run()
}
