// Package rollback undoes the side effects of an interrupted or failed
// release in reverse phase order. Registry publishes are the exception:
// registries are append-only, so published packages are reported rather
// than unpublished.
package rollback

import (
	"context"
	"fmt"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/github"
	"github.com/freighter-dev/freighter/internal/gitops"
	"github.com/freighter-dev/freighter/internal/logging"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

// Deps wires the engine to its collaborators. Host may be nil when no
// release host is configured.
type Deps struct {
	Logger    *logging.Logger
	Store     *state.Store
	Manager   *workspace.Manager
	Workspace *workspace.Workspace
	Git       gitops.Operations
	Host      github.Host
}

// Engine rolls back one release attempt.
type Engine struct {
	logger  *logging.Logger
	store   *state.Store
	manager *workspace.Manager
	ws      *workspace.Workspace
	git     gitops.Operations
	host    github.Host
}

// Report summarizes what rollback did and could not do.
type Report struct {
	// NotUnpublished lists packages that reached the registry and stay
	// there. Callers surface these to the operator.
	NotUnpublished []string
	// Issues lists inverse steps that failed. Rollback continues past
	// them; the operator finishes by hand.
	Issues []string
}

// New creates a rollback engine from its collaborators.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		logger:  logger,
		store:   deps.Store,
		manager: deps.Manager,
		ws:      deps.Workspace,
		git:     deps.Git,
		host:    deps.Host,
	}
}

// Rollback undoes completed phases in reverse order and tears the release
// down. A Completed release is refused unless force: its artifacts are
// live and deleting them is an explicit decision.
func (e *Engine) Rollback(ctx context.Context, force bool) (*Report, error) {
	st := e.store.State()
	if st.CurrentPhase == state.PhaseCompleted && !force {
		return nil, errors.Join(errors.ErrRollbackRefused,
			fmt.Errorf("release %s completed; pass force to roll back anyway", st.ReleaseID))
	}
	if st.CurrentPhase == state.PhaseRolledBack {
		return nil, errors.Join(errors.ErrRollbackRefused,
			fmt.Errorf("release %s already rolled back", st.ReleaseID))
	}

	log := e.logger.WithRelease(st.ReleaseID)
	report := &Report{NotUnpublished: st.PublishedPackages()}
	pushed := !st.DryRun && !st.Flags.NoPush

	if st.GitHubReleaseID != 0 && e.host != nil {
		if err := e.host.DeleteRelease(ctx, st.GitHubReleaseID); err != nil {
			report.Issues = append(report.Issues,
				fmt.Sprintf("delete release %d: %v", st.GitHubReleaseID, err))
			log.Warn("release deletion failed", "error", err)
		} else {
			log.Info("release deleted", "release_id", st.GitHubReleaseID)
		}
	}

	if st.TagName != "" {
		if err := e.git.DeleteTag(st.TagName, pushed); err != nil {
			report.Issues = append(report.Issues,
				fmt.Sprintf("delete tag %s: %v", st.TagName, err))
			log.Warn("tag deletion failed", "tag", st.TagName, "error", err)
		} else {
			log.Info("tag deleted", "tag", st.TagName)
		}
	}

	if st.CommitID != "" {
		if err := e.git.Revert(st.CommitID); err != nil {
			report.Issues = append(report.Issues,
				fmt.Sprintf("revert commit %s: %v", st.CommitID, err))
			log.Warn("revert failed", "commit", st.CommitID, "error", err)
		} else if pushed {
			if err := e.git.Push("HEAD"); err != nil {
				report.Issues = append(report.Issues,
					fmt.Sprintf("push revert of %s: %v", st.CommitID, err))
				log.Warn("revert push failed", "error", err)
			}
		}
	}

	// The terminal commit must land before teardown; everything above is
	// best effort, this is not.
	if err := e.store.Commit(func(s *state.ReleaseState) error {
		s.FailureReason = ""
		return s.AdvancePhase(state.PhaseRolledBack)
	}); err != nil {
		return report, err
	}

	if err := e.store.Destroy(); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("remove state: %v", err))
	}
	if err := state.ClearLock(e.ws.Path); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("clear lock: %v", err))
	}
	if e.manager != nil {
		if err := e.manager.Release(e.ws, false); err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("remove workspace: %v", err))
		}
	}

	log.Info("rollback complete",
		"not_unpublished", len(report.NotUnpublished), "issues", len(report.Issues))
	return report, nil
}
