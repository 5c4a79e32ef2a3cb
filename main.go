package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/forge/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge - a locked-by-default session for a private vault and task queue.",
	Long: `forge keeps an encrypted vault and a task queue behind a session that
starts locked.

Usage:
  forge <command> [flags]

Available Commands:
  init       Set up forge on this device
  shell      Start an interactive session
  config     Inspect the configuration
  log        View the session audit log

Run 'forge help <command>' for more details on a specific command.
`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Welcome to forge! Run 'forge --help' to see available commands.")
	},
}

func main() {
	rootCmd.AddCommand(cmd.Commands()...)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
