package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hibasheikh90/vaultpilot/internal/tui"
	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a one-shot snapshot of the vault and queues",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}

	fmt.Println(tui.TitleStyle.Render("vaultpilot status"))
	fmt.Println()

	fmt.Println(tui.LabelStyle.Render("Vault: ") + tui.ValueStyle.Render(svc.vault.Root))
	fmt.Println()

	for _, stage := range vault.Stages {
		count := fmt.Sprintf("%d", svc.vault.Count(stage))
		fmt.Printf("  %s %s\n", tui.LabelStyle.Render(fmt.Sprintf("%-13s", stage)), tui.ValueStyle.Render(count))
	}
	fmt.Println()

	counts := svc.queue.Stats()
	failed := tui.OKStyle.Render(fmt.Sprintf("%d", counts.Failed))
	if counts.Failed > 0 {
		failed = tui.ErrStyle.Render(fmt.Sprintf("%d", counts.Failed))
	}
	pending := tui.OKStyle.Render(fmt.Sprintf("%d", counts.Pending))
	if counts.Pending > 0 {
		pending = tui.WarnStyle.Render(fmt.Sprintf("%d", counts.Pending))
	}
	fmt.Println(tui.LabelStyle.Render("Failed-task queue"))
	fmt.Printf("  %s %s   %s %s   %s %s\n",
		tui.LabelStyle.Render("pending"), pending,
		tui.LabelStyle.Render("recovered"), tui.ValueStyle.Render(fmt.Sprintf("%d", counts.Resolved)),
		tui.LabelStyle.Render("failed"), failed)
	fmt.Println()

	recent := svc.log.RecentAudit(5)
	fmt.Println(tui.LabelStyle.Render("Recent activity"))
	if len(recent) == 0 {
		fmt.Println(tui.HelpStyle.Render("  (no audit records yet)"))
	}
	for i := len(recent) - 1; i >= 0; i-- {
		rec := recent[i]
		fmt.Printf("  %s %s %s\n",
			tui.HelpStyle.Render(rec.TS), tui.ValueStyle.Render(rec.Action), tui.LabelStyle.Render(rec.Status))
	}
	fmt.Println()

	errs := svc.log.RecentErrors(5)
	fmt.Println(tui.LabelStyle.Render("Recent errors"))
	if len(errs) == 0 {
		fmt.Println(tui.OKStyle.Render("  (none)"))
	}
	for i := len(errs) - 1; i >= 0; i-- {
		rec := errs[i]
		fmt.Printf("  %s %s %s\n",
			tui.HelpStyle.Render(rec.TS), tui.ErrStyle.Render(rec.Source), tui.ValueStyle.Render(rec.Error))
	}
	return nil
}
