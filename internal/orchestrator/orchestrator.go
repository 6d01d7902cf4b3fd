// Package orchestrator drives a release attempt through its phases. The
// persisted state is the single source of truth: every transition is
// committed before the next step runs, so a crash at any point resumes
// from the last committed phase without repeating completed work.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/freighter-dev/freighter/internal/bundler"
	"github.com/freighter-dev/freighter/internal/config"
	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/github"
	"github.com/freighter-dev/freighter/internal/gitops"
	"github.com/freighter-dev/freighter/internal/graph"
	"github.com/freighter-dev/freighter/internal/logging"
	"github.com/freighter-dev/freighter/internal/manifest"
	"github.com/freighter-dev/freighter/internal/registry"
	"github.com/freighter-dev/freighter/internal/retry"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/version"
	"github.com/freighter-dev/freighter/internal/workspace"
)

// BundleBuilder is the bundle capability consumed by the GitHubRelease
// phase. bundler.Builder satisfies it.
type BundleBuilder interface {
	Build(ctx context.Context, platform bundler.Platform, targetTriple string) ([]string, error)
}

// Deps wires the orchestrator to its collaborators. Host and Builder may
// be nil when the corresponding phases are disabled.
type Deps struct {
	Config    *config.Config
	Logger    *logging.Logger
	Store     *state.Store
	Manager   *workspace.Manager
	Workspace *workspace.Workspace
	Git       gitops.Operations
	Host      github.Host
	Publisher registry.Publisher
	Builder   BundleBuilder
}

// Orchestrator runs release phases against the isolated workspace.
type Orchestrator struct {
	cfg       *config.Config
	logger    *logging.Logger
	store     *state.Store
	manager   *workspace.Manager
	ws        *workspace.Workspace
	git       gitops.Operations
	host      github.Host
	publisher registry.Publisher
	builder   BundleBuilder

	graph       *graph.Graph
	descriptors []*manifest.Descriptor
}

// New creates an orchestrator from its collaborators.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Orchestrator{
		cfg:       deps.Config,
		logger:    logger,
		store:     deps.Store,
		manager:   deps.Manager,
		ws:        deps.Workspace,
		git:       deps.Git,
		host:      deps.Host,
		publisher: deps.Publisher,
		builder:   deps.Builder,
	}
}

// Run drives the release from the current phase to completion. On a
// resumed release this is the same entry point: completed phases are
// skipped because the persisted phase already moved past them. A context
// cancellation leaves the release resumable rather than Failed.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.loadGraph(); err != nil {
		return err
	}

	for {
		st := o.store.State()
		if st.CurrentPhase.Terminal() {
			break
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(errors.ErrCanceled, err)
		}

		log := o.logger.WithPhase(string(st.CurrentPhase))
		log.Info("phase starting")

		var err error
		switch st.CurrentPhase {
		case state.PhaseValidation:
			err = o.runValidation(st)
		case state.PhaseVersionUpdate:
			err = o.runVersionUpdate(st)
		case state.PhaseGitOperations:
			err = o.runGitOperations(ctx, st)
		case state.PhaseGitHubRelease:
			err = o.runGitHubRelease(ctx, st)
		case state.PhasePublishing:
			err = o.runPublishing(ctx)
		default:
			err = fmt.Errorf("unknown phase %s", st.CurrentPhase)
		}
		if err != nil {
			if errors.Is(err, errors.ErrCanceled) || ctx.Err() != nil {
				log.Warn("phase interrupted, release left resumable", "error", err)
				return err
			}
			log.Error("phase failed", "error", err)
			o.failRelease(st.CurrentPhase, err)
			return err
		}
		log.Info("phase complete")
	}

	if o.store.State().CurrentPhase == state.PhaseCompleted {
		return o.finalize()
	}
	return nil
}

// loadGraph reloads manifests from the isolated workspace and rebuilds
// the dependency graph. Runs on every entry so resume sees the same
// ordering a fresh run would.
func (o *Orchestrator) loadGraph() error {
	descriptors, err := manifest.Load(o.ws.Path)
	if err != nil {
		return err
	}
	g, err := graph.Build(descriptors)
	if err != nil {
		return err
	}
	o.descriptors = descriptors
	o.graph = g
	return nil
}

// runValidation checks that the workspace still matches the release and
// that every credential a requested phase needs is present.
func (o *Orchestrator) runValidation(st *state.ReleaseState) error {
	for _, d := range o.descriptors {
		if _, ok := st.Packages[d.Name]; !ok {
			return errors.NewStateError(
				fmt.Sprintf("package %s appeared after the release started", d.Name),
				errors.ErrStateCorrupted).WithReleaseID(st.ReleaseID)
		}
	}
	for name := range st.Packages {
		if o.graph.Descriptor(name) == nil {
			return errors.NewStateError(
				fmt.Sprintf("package %s vanished from the workspace", name),
				errors.ErrStateCorrupted).WithReleaseID(st.ReleaseID)
		}
	}

	if !st.DryRun && !st.Flags.NoGitHubRelease && o.host != nil && github.Token() == "" {
		return errors.Join(errors.ErrCredentialMissing,
			fmt.Errorf("GitHub release requested but %s and %s are unset",
				github.EnvToken, github.EnvTokenAlt))
	}
	if !st.DryRun && registry.Token() == "" {
		return errors.Join(errors.ErrCredentialMissing,
			fmt.Errorf("registry publish requires %s", registry.EnvToken))
	}
	if !st.DryRun && !st.Flags.NoGitHubRelease && !st.Flags.NoBundles && o.builder != nil {
		for _, name := range o.cfg.Bundle.Platforms {
			platform, err := bundler.ParsePlatform(name)
			if err != nil {
				return err
			}
			if err := bundler.CheckCredentials(platform); err != nil {
				return err
			}
		}
	}

	return o.advance(state.PhaseVersionUpdate)
}

// runVersionUpdate computes the unified target version, records it, and
// rewrites every manifest. The target is committed before any file is
// touched so a crash mid-rewrite resumes with the same target instead of
// bumping twice.
func (o *Orchestrator) runVersionUpdate(st *state.ReleaseState) error {
	var target *semver.Version
	if st.TagName != "" {
		parsed, err := semver.StrictNewVersion(strings.TrimPrefix(st.TagName, "v"))
		if err != nil {
			return errors.NewStateError("recorded tag is not a version", err).
				WithReleaseID(st.ReleaseID)
		}
		target = parsed
	} else {
		plan, err := version.Compute(o.descriptors, st.BumpKind, st.ExplicitVersion)
		if err != nil {
			return err
		}
		target = plan.Target
		if err := o.store.Commit(func(s *state.ReleaseState) error {
			s.TagName = plan.TagName()
			for name, ps := range s.Packages {
				ps.NewVersion = target.String()
				s.Packages[name] = ps
			}
			return nil
		}); err != nil {
			return err
		}
	}

	plan := &version.Plan{Target: target}
	if err := version.Apply(plan, o.descriptors, manifest.NewEditor()); err != nil {
		return err
	}
	o.logger.Info("versions updated", "target", target.String())
	return o.advance(state.PhaseGitOperations)
}

// runGitOperations commits the version bump and tags it. Push is skipped
// for dry runs and NoPush releases.
func (o *Orchestrator) runGitOperations(ctx context.Context, st *state.ReleaseState) error {
	if st.CommitID == "" {
		commitID, err := o.git.CommitAll("release: " + st.TagName)
		if err != nil {
			return err
		}
		if err := o.store.Commit(func(s *state.ReleaseState) error {
			s.CommitID = commitID
			return nil
		}); err != nil {
			return err
		}
		o.logger.Info("version bump committed", "commit", commitID)
	}

	if err := o.git.Tag(st.TagName, "Release "+st.TagName); err != nil {
		var ge *errors.GitError
		// A resumed release may have tagged before the crash.
		if !(errors.As(err, &ge) && strings.Contains(ge.GitOutput, "already exists")) {
			return err
		}
	}

	if !st.DryRun && !st.Flags.NoPush {
		policy := o.retryPolicy()
		err := policy.Do(ctx, func(attempt int) error {
			return o.git.Push("HEAD", st.TagName)
		})
		if err != nil {
			return err
		}
		o.logger.Info("pushed", "tag", st.TagName)
	}

	return o.advance(state.PhaseGitHubRelease)
}

// runGitHubRelease creates the hosted release and uploads bundle
// artifacts. The whole phase is skipped for dry runs, NoGitHubRelease
// releases, and when no host is configured.
func (o *Orchestrator) runGitHubRelease(ctx context.Context, st *state.ReleaseState) error {
	if st.DryRun || st.Flags.NoGitHubRelease || o.host == nil {
		return o.advance(state.PhasePublishing)
	}

	policy := o.retryPolicy()
	if st.GitHubReleaseID == 0 {
		var releaseID int64
		err := policy.Do(ctx, func(attempt int) error {
			var err error
			releaseID, err = o.host.CreateRelease(ctx, st.TagName, st.TagName, o.releaseNotes(st))
			return err
		})
		if err != nil {
			return err
		}
		if err := o.store.Commit(func(s *state.ReleaseState) error {
			s.GitHubReleaseID = releaseID
			return nil
		}); err != nil {
			return err
		}
		st = o.store.State()
		o.logger.Info("release created", "release_id", releaseID)
	}

	if !st.Flags.NoBundles && o.builder != nil {
		for _, name := range o.cfg.Bundle.Platforms {
			platform, err := bundler.ParsePlatform(name)
			if err != nil {
				return err
			}
			artifacts, err := o.builder.Build(ctx, platform, o.cfg.Bundle.Target)
			if err != nil {
				return err
			}
			for _, artifact := range artifacts {
				artifact := artifact
				err := policy.Do(ctx, func(attempt int) error {
					return o.host.UploadArtifact(ctx, st.GitHubReleaseID, artifact)
				})
				if err != nil {
					return err
				}
				o.logger.Info("artifact uploaded", "platform", string(platform), "path", artifact)
			}
		}
	}

	return o.advance(state.PhasePublishing)
}

// releaseNotes builds the release body from the package list.
func (o *Orchestrator) releaseNotes(st *state.ReleaseState) string {
	var sb strings.Builder
	sb.WriteString("Released packages:\n")
	for _, tier := range o.graph.Tiers() {
		for _, name := range tier {
			fmt.Fprintf(&sb, "- %s %s\n", name, st.Packages[name].NewVersion)
		}
	}
	return sb.String()
}

// failRelease marks the release Failed with the cause. Commit failures
// here are logged and dropped: the original error matters more.
func (o *Orchestrator) failRelease(phase state.Phase, cause error) {
	err := o.store.Commit(func(s *state.ReleaseState) error {
		s.FailureReason = cause.Error()
		return s.AdvancePhase(state.PhaseFailed)
	})
	if err != nil {
		o.logger.Error("failed to record failure", "phase", string(phase), "error", err)
	}
}

// advance commits a phase transition.
func (o *Orchestrator) advance(next state.Phase) error {
	return o.store.Commit(func(s *state.ReleaseState) error {
		return s.AdvancePhase(next)
	})
}

// retryPolicy builds the backoff policy from configuration.
func (o *Orchestrator) retryPolicy() retry.Policy {
	if o.cfg == nil {
		return retry.DefaultPolicy()
	}
	return retry.Policy{
		MaxAttempts: o.cfg.Retry.MaxAttempts,
		BaseDelay:   o.cfg.Retry.BaseDelay(),
		MaxDelay:    o.cfg.Retry.MaxDelay(),
		Jitter:      o.cfg.Retry.Jitter,
	}
}

// finalize tears down a completed release: the workspace goes away unless
// KeepTemp, the lock is cleared, and the state file is removed.
func (o *Orchestrator) finalize() error {
	st := o.store.State()

	if err := o.store.Destroy(); err != nil {
		o.logger.Warn("state cleanup failed", "error", err)
	}
	if err := state.ClearLock(o.ws.Path); err != nil {
		o.logger.Warn("lock cleanup failed", "error", err)
	}
	if o.manager != nil {
		if err := o.manager.Release(o.ws, st.Flags.KeepTemp); err != nil {
			o.logger.Warn("workspace cleanup failed", "error", err)
		}
	}
	o.logger.Info("release complete", "release_id", st.ReleaseID, "tag", st.TagName)
	return nil
}
