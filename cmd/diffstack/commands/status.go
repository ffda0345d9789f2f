package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/scmtools/diffstack/internal/review"
)

// NewStatusCommand creates the status command: show, per diff of each
// revision, whether it has been applied and to which commit.
func NewStatusCommand() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "status [revision-id...]",
		Short: "Show which diffs have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(flags)
			if err != nil {
				return err
			}
			defer e.Close()

			ids, err := e.revisionIDs(args)
			if err != nil {
				return err
			}

			return runStatus(cmd.Context(), e, ids, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "config file path")
	cmd.Flags().StringVar(&flags.repoPath, "repo", "", "repository path (overrides config)")
	cmd.Flags().StringSliceVar(&flags.revisionFiles, "revision-file", nil, "revision payload file (JSON or YAML, repeatable)")

	return cmd
}

// runStatus renders one table per revision from the mapping store.
func runStatus(ctx context.Context, e *env, ids []review.RevisionID, out io.Writer) error {
	mapped, err := e.store.Load()
	if err != nil {
		return err
	}

	for _, id := range ids {
		rev, err := e.source.GetRevision(ctx, id)
		if err != nil {
			return err
		}

		rev.SortDiffs()

		fmt.Fprintf(out, "Revision %d: %s\n", rev.ID, rev.Title)

		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.AppendHeader(table.Row{"Diff", "Author", "Age", "Changes", "State", "Commit"})

		for _, diff := range rev.Diffs {
			state := color.YellowString("pending")
			commit := ""

			if c, ok := mapped[diff.ID]; ok {
				state = color.GreenString("applied")
				commit = string(c)
			}

			age := ""
			if !diff.Created.IsZero() {
				age = humanize.RelTime(diff.Created, time.Now(), "ago", "from now")
			}

			tw.AppendRow(table.Row{
				diff.ID, diff.AuthorName, age, len(diff.Changes), state, commit,
			})
		}

		tw.Render()
	}

	return nil
}
