package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vaultpilot",
	Short: "vaultpilot - autonomous markdown vault orchestrator",
	Long: `vaultpilot watches a markdown task vault, triages and plans incoming
tasks, processes them autonomously, and retries whatever fails.

The vault is plain directories of .md files (Inbox, Needs_Action, Done),
so every decision the system makes stays human-readable and editable.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	cfgPath   string
	vaultPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Vault root directory (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ralphCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dashboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
