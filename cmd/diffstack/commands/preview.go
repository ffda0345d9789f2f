package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scmtools/diffstack/internal/apply"
	"github.com/scmtools/diffstack/internal/review"
)

// NewPreviewCommand creates the preview command: reconstruct a diff's
// file contents against a chosen commit without committing anything.
func NewPreviewCommand() *cobra.Command {
	var (
		flags  commonFlags
		at     string
		diffID int64
	)

	cmd := &cobra.Command{
		Use:   "preview <revision-id>",
		Short: "Dry-run a diff against a commit",
		Long: `Preview applies a diff's changes against a commit in memory and
reports, per path, whether they reconstruct cleanly. By default the
revision's most recent diff is previewed against the integration
branch tip.`,
		Args: cobra.ExactArgs(1),
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

			ref := at
			if ref == "" {
				ref = e.cfg.IntegrationRef
			}

			return runPreview(cmd.Context(), e, ids[0], review.DiffID(diffID), ref, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "config file path")
	cmd.Flags().StringVar(&flags.repoPath, "repo", "", "repository path (overrides config)")
	cmd.Flags().StringSliceVar(&flags.revisionFiles, "revision-file", nil, "revision payload file (JSON or YAML, repeatable)")
	cmd.Flags().StringVar(&at, "at", "", "commit or ref to preview against (default: integration ref)")
	cmd.Flags().Int64Var(&diffID, "diff", 0, "diff id to preview (default: the revision's most recent)")

	return cmd
}

// runPreview reports per-path reconstruction results for one diff.
func runPreview(ctx context.Context, e *env, revID review.RevisionID, diffID review.DiffID, ref string, out io.Writer) error {
	rev, err := e.source.GetRevision(ctx, revID)
	if err != nil {
		return err
	}

	rev.SortDiffs()

	diff, err := pickDiff(rev, diffID)
	if err != nil {
		return err
	}

	base, err := e.backend.Lookup(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ref, err)
	}

	fmt.Fprintf(out, "Previewing diff %d of revision %d at %s\n", diff.ID, rev.ID, base)

	files, err := apply.ApplyChanges(ctx, e.backend, base, diff.Changes)

	var bad *apply.BadPatchError

	switch {
	case err == nil:
		for path, state := range files {
			if state.Absent {
				fmt.Fprintf(out, "  %s %s (deleted)\n", color.GreenString("ok"), path)

				continue
			}

			fmt.Fprintf(out, "  %s %s (%s)\n", color.GreenString("ok"), path,
				humanize.Bytes(uint64(len(state.Content))))
		}

		fmt.Fprintf(out, "%s\n", color.GreenString("diff applies cleanly"))

		return nil

	case errors.As(err, &bad):
		for _, pathErr := range bad.Paths {
			fmt.Fprintf(out, "  %s %s: %v\n", color.RedString("fail"), pathErr.Path, pathErr.Err)
		}

		return fmt.Errorf("diff %d does not apply at %s", diff.ID, base)

	default:
		return err
	}
}

func pickDiff(rev *review.Revision, diffID review.DiffID) (*review.Diff, error) {
	if diffID == 0 {
		return rev.ActiveDiff()
	}

	for _, diff := range rev.Diffs {
		if diff.ID == diffID {
			return diff, nil
		}
	}

	return nil, fmt.Errorf("revision %d has no diff %d", rev.ID, diffID)
}
