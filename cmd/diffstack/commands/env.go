// Package commands implements the diffstack CLI command handlers.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/scmtools/diffstack/internal/config"
	"github.com/scmtools/diffstack/internal/mapping"
	"github.com/scmtools/diffstack/internal/observability"
	"github.com/scmtools/diffstack/internal/repo"
	"github.com/scmtools/diffstack/internal/review"
	"github.com/scmtools/diffstack/pkg/gitlib"
)

// env bundles everything a command run needs. Commands are written
// against the interfaces so tests can substitute in-memory fakes.
type env struct {
	cfg     *config.Config
	log     *slog.Logger
	backend repo.Repository
	source  review.Source
	store   *mapping.Store
	metrics *observability.ApplyMetrics

	cleanups []func()
}

// revisionIDs lists the revisions named by args, or every revision the
// source carries when args is empty.
func (e *env) revisionIDs(args []string) ([]review.RevisionID, error) {
	if len(args) == 0 {
		lister, ok := e.source.(interface{ Revisions() []review.RevisionID })
		if !ok {
			return nil, fmt.Errorf("no revision ids given")
		}

		ids := lister.Revisions()
		if len(ids) == 0 {
			return nil, fmt.Errorf("revision files contain no revisions")
		}

		return ids, nil
	}

	ids := make([]review.RevisionID, len(args))

	for i, arg := range args {
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad revision id %q: %w", arg, err)
		}

		ids[i] = review.RevisionID(n)
	}

	return ids, nil
}

func (e *env) Close() {
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		e.cleanups[i]()
	}
}

// commonFlags are shared by every command that touches the repository.
type commonFlags struct {
	configPath    string
	repoPath      string
	revisionFiles []string
}

// buildEnv opens the repository and revision sources per config and
// flags. The caller must Close the env.
func buildEnv(flags commonFlags) (*env, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.repoPath != "" {
		cfg.Repository = flags.repoPath
	}

	log, err := observability.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	if len(flags.revisionFiles) == 0 {
		return nil, fmt.Errorf("at least one --revision-file is required")
	}

	source, err := review.NewFileSource(flags.revisionFiles...)
	if err != nil {
		return nil, err
	}

	gitRepo, err := gitlib.OpenRepository(cfg.Repository)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", cfg.Repository, err)
	}

	mappingPath := cfg.MappingFile
	if !filepath.IsAbs(mappingPath) {
		mappingPath = filepath.Join(cfg.Repository, mappingPath)
	}

	e := &env{
		cfg:     cfg,
		log:     log,
		backend: repo.NewGit(gitRepo, cfg.IntegrationRef),
		source:  source,
		store:   mapping.NewStore(mappingPath),
		metrics: observability.NoopApplyMetrics(),
	}

	e.cleanups = append(e.cleanups, gitRepo.Free)

	return e, nil
}
