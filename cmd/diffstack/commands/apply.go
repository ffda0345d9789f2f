package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scmtools/diffstack/internal/apply"
	"github.com/scmtools/diffstack/internal/observability"
	"github.com/scmtools/diffstack/internal/resolve"
	"github.com/scmtools/diffstack/internal/review"
)

// NewApplyCommand creates the apply command: materialize the diffs of
// one or more revisions as commits.
func NewApplyCommand() *cobra.Command {
	var (
		flags         commonFlags
		metricsListen string
		maxCandidates int
	)

	cmd := &cobra.Command{
		Use:   "apply [revision-id...]",
		Short: "Apply review diffs as commits",
		Long: `Apply materializes each diff of the given revisions as a commit,
searching the repository history for a base commit when the declared
one is unknown. Already-applied diffs recorded in the mapping file are
not re-applied. Without revision ids, every revision in the revision
files is applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(flags)
			if err != nil {
				return err
			}
			defer e.Close()

			if maxCandidates > 0 {
				e.cfg.MaxCandidates = maxCandidates
			}

			if metricsListen == "" {
				metricsListen = e.cfg.Metrics.Listen
			}

			if metricsListen != "" {
				if err := serveMetrics(e, metricsListen); err != nil {
					return err
				}
			}

			ids, err := e.revisionIDs(args)
			if err != nil {
				return err
			}

			return runApply(cmd.Context(), e, ids, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "config file path")
	cmd.Flags().StringVar(&flags.repoPath, "repo", "", "repository path (overrides config)")
	cmd.Flags().StringSliceVar(&flags.revisionFiles, "revision-file", nil, "revision payload file (JSON or YAML, repeatable)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "address serving /metrics (overrides config)")
	cmd.Flags().IntVar(&maxCandidates, "max-candidates", 0, "cap on candidate base commits per diff")

	return cmd
}

// serveMetrics swaps the env's instruments for real ones and serves the
// scrape endpoint in the background for the lifetime of the process.
func serveMetrics(e *env, listen string) error {
	provider, handler, err := observability.PrometheusMeter()
	if err != nil {
		return err
	}

	metrics, err := observability.NewApplyMetrics(provider.Meter("diffstack"))
	if err != nil {
		return err
	}

	e.metrics = metrics

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			e.log.Error("metrics endpoint failed", "listen", listen, "err", serveErr)
		}
	}()

	e.cleanups = append(e.cleanups, func() { _ = server.Close() })

	return nil
}

// runApply sequences every named revision and reports per-diff outcomes.
func runApply(ctx context.Context, e *env, ids []review.RevisionID, out io.Writer) error {
	resolver := resolve.New(e.backend, e.cfg.IntegrationRef, e.log)
	applicator := apply.NewApplicator(e.backend, resolver, e.metrics, e.log, e.cfg.MaxCandidates)
	sequencer := apply.NewSequencer(e.source, e.store, applicator, e.metrics, e.log)

	for _, id := range ids {
		result, err := sequencer.ApplyRevision(ctx, id)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Revision %d: %d applied, %d skipped, %d already mapped\n",
			id, len(result.Applied), len(result.Skipped),
			len(result.Commits)-len(result.Applied))

		for _, diffID := range result.Applied {
			fmt.Fprintf(out, "  %s diff %d -> %s\n",
				color.GreenString("applied"), diffID, result.Commits[diffID])
		}

		for _, diffID := range result.Skipped {
			fmt.Fprintf(out, "  %s diff %d (no candidate base accepted it)\n",
				color.YellowString("skipped"), diffID)
		}
	}

	return nil
}
