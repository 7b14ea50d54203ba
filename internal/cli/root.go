// Package cli implements the command-line interface for mat and renders
// build events to the terminal.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

var rootCmd = &cobra.Command{
	Use:   "mat",
	Short: "Autonomous build loop for local LLM agents",
	Long: `mat reads a build record (prd.json), hands each pending work item to a
developer agent, has a QA agent verify the result against the item's
acceptance criteria, and records every item that passes. Failed items are
retried up to a fixed budget.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(logsCmd)
}
