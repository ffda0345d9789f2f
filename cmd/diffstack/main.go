// Package main provides the entry point for the diffstack CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scmtools/diffstack/cmd/diffstack/commands"
	"github.com/scmtools/diffstack/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "diffstack",
		Short: "Materialize code-review diffs as git commits",
		Long: `Diffstack applies structured code-review diffs to a git repository,
finding a base commit each diff applies to cleanly and chaining the
commits of one revision together.

Commands:
  apply     Apply review diffs as commits
  status    Show which diffs have been applied
  preview   Dry-run a diff against a commit`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewApplyCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewPreviewCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "diffstack %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
