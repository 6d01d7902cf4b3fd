package orchestrator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/freighter-dev/freighter/internal/bundler"
	"github.com/freighter-dev/freighter/internal/config"
	"github.com/freighter-dev/freighter/internal/github"
	"github.com/freighter-dev/freighter/internal/gitops"
	"github.com/freighter-dev/freighter/internal/logging"
	"github.com/freighter-dev/freighter/internal/manifest"
	"github.com/freighter-dev/freighter/internal/registry"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

// StartOptions carries everything a fresh release needs.
type StartOptions struct {
	Source          string
	Bump            state.BumpKind
	ExplicitVersion string
	DryRun          bool
	Flags           state.Flags
}

// Release is an orchestrator bound to its lock. The lock is released by
// the caller once Run returns; a resumable interrupt must leave it
// releasable without clearing another process's lock.
type Release struct {
	*Orchestrator
	Lock *state.Lock
}

// Start creates the isolated workspace, initializes release state, takes
// the release lock, and returns a runnable release. On error everything
// acquired so far is torn down.
func Start(cfg *config.Config, logger *logging.Logger, manager *workspace.Manager, opts StartOptions) (*Release, error) {
	ws, err := manager.Acquire(opts.Source)
	if err != nil {
		return nil, err
	}

	descriptors, err := manifest.Load(ws.Path)
	if err != nil {
		_ = manager.Release(ws, false)
		return nil, err
	}
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}

	releaseID := uuid.NewString()
	st := state.New(releaseID, opts.Bump, names)
	st.ExplicitVersion = opts.ExplicitVersion
	st.DryRun = opts.DryRun
	st.Flags = opts.Flags
	st.WorkspacePath = ws.Path
	st.SourcePath = ws.Source
	st.SourceCommit = ws.SourceCommit

	store := state.NewStore(ws.Path, st)
	if err := store.Commit(func(*state.ReleaseState) error { return nil }); err != nil {
		_ = manager.Release(ws, false)
		return nil, err
	}

	lock, err := state.AcquireLock(ws.Path, releaseID, logger)
	if err != nil {
		_ = store.Destroy()
		_ = manager.Release(ws, false)
		return nil, err
	}

	logger.WithRelease(releaseID).Info("release started",
		"source", ws.Source, "commit", ws.SourceCommit, "packages", len(names))

	return &Release{
		Orchestrator: New(assemble(cfg, logger.WithRelease(releaseID), store, manager, ws)),
		Lock:         lock,
	}, nil
}

// Resume loads the persisted release, re-locates the workspace, and takes
// the lock again. The orchestrator continues from the persisted phase.
func Resume(cfg *config.Config, logger *logging.Logger, manager *workspace.Manager) (*Release, error) {
	ws, err := manager.Locate()
	if err != nil {
		return nil, err
	}

	store, err := state.Open(ws.Path)
	if err != nil {
		return nil, err
	}
	st := store.State()
	if st.CurrentPhase.Terminal() {
		if st.CurrentPhase == state.PhaseFailed {
			return nil, fmt.Errorf("release %s is Failed; run rollback instead of resume",
				st.ReleaseID)
		}
		return nil, fmt.Errorf("release %s already %s; nothing to resume",
			st.ReleaseID, st.CurrentPhase)
	}

	lock, err := state.AcquireLock(ws.Path, st.ReleaseID, logger)
	if err != nil {
		return nil, err
	}

	logger.WithRelease(st.ReleaseID).Info("release resumed",
		"phase", string(st.CurrentPhase))

	return &Release{
		Orchestrator: New(assemble(cfg, logger.WithRelease(st.ReleaseID), store, manager, ws)),
		Lock:         lock,
	}, nil
}

// assemble builds the production collaborator set for a workspace.
func assemble(cfg *config.Config, logger *logging.Logger, store *state.Store, manager *workspace.Manager, ws *workspace.Workspace) Deps {
	deps := Deps{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Manager:   manager,
		Workspace: ws,
		Git:       gitops.New(ws.Path),
		Publisher: registry.NewCLIPublisher(cfg.Registry.Command, cfg.Registry.Args),
	}
	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		deps.Host = github.NewClient(cfg.GitHub.Owner, cfg.GitHub.Repo)
	}
	if len(cfg.Bundle.Platforms) > 0 {
		deps.Builder = bundler.NewBuilder(ws.Path, cfg.Bundle.Command, cfg.Bundle.Args)
	}
	return deps
}
