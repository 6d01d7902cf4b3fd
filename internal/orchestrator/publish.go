package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/retry"
	"github.com/freighter-dev/freighter/internal/state"
)

// runPublishing publishes every package tier by tier. Within a tier,
// packages run concurrently bounded by publish.max_concurrent; the tier
// drains completely before the next one starts, so a package never
// publishes before its dependencies.
func (o *Orchestrator) runPublishing(ctx context.Context) error {
	policy := o.retryPolicy()
	maxConcurrent := 4
	var timeout time.Duration
	if o.cfg != nil {
		maxConcurrent = o.cfg.Publish.MaxConcurrent
		timeout = o.cfg.Publish.Timeout()
	}

	var fatal []string

	for _, tier := range o.graph.Tiers() {
		if err := ctx.Err(); err != nil {
			return errors.Join(errors.ErrCanceled, err)
		}

		eligible := o.eligiblePackages(tier, policy.MaxAttempts)
		if len(eligible) == 0 {
			continue
		}

		var mu sync.Mutex
		p := pool.New().WithMaxGoroutines(maxConcurrent)
		for _, name := range eligible {
			name := name
			p.Go(func() {
				err := o.publishOne(ctx, name, policy, timeout)
				if err != nil && !interrupted(ctx, err) {
					mu.Lock()
					fatal = append(fatal, name)
					mu.Unlock()
				}
			})
		}
		p.Wait()

		if err := ctx.Err(); err != nil {
			return errors.Join(errors.ErrCanceled, err)
		}

		if len(fatal) > 0 {
			if !o.store.State().Flags.ContinueOnFatal {
				// Abort after the tier drains. Remaining packages stay
				// Pending so a resume or rollback sees the true picture.
				return o.partialFailure(fatal)
			}
			if err := o.skipDependents(fatal); err != nil {
				return err
			}
		}
	}

	if len(fatal) > 0 {
		return o.partialFailure(fatal)
	}
	return o.advance(state.PhaseCompleted)
}

// eligiblePackages filters a tier down to the packages that still need a
// publish attempt. Published and Skipped are done; Failed packages are
// retried only while attempts remain.
func (o *Orchestrator) eligiblePackages(tier []string, maxAttempts int) []string {
	st := o.store.State()
	var out []string
	for _, name := range tier {
		ps := st.Packages[name]
		switch ps.Status {
		case state.StatusPublished, state.StatusSkipped:
			continue
		case state.StatusFailed:
			if st.Retries[name] >= maxAttempts {
				continue
			}
		}
		out = append(out, name)
	}
	return out
}

// publishOne runs the full attempt loop for a single package. Every
// terminal outcome is committed before returning so a crash between
// packages loses at most the in-flight attempt.
func (o *Orchestrator) publishOne(ctx context.Context, name string, policy retry.Policy, timeout time.Duration) error {
	log := o.logger.WithPackage(name)
	desc := o.graph.Descriptor(name)
	st := o.store.State()
	dryRun := st.DryRun

	if !desc.Publishable() {
		// Versioned and tagged with the rest, just never sent to the
		// registry. Dependents publish normally.
		log.Info("publishing disabled in manifest, skipping")
		return o.store.Commit(func(s *state.ReleaseState) error {
			s.SetPackageStatus(name, state.StatusSkipped, "publishing disabled in manifest")
			return nil
		})
	}

	// Attempts already burned before a crash or abort count against the
	// budget on resume.
	prior := st.Retries[name]
	if prior > 0 {
		policy.MaxAttempts -= prior
	}

	if err := o.store.Commit(func(s *state.ReleaseState) error {
		s.SetPackageStatus(name, state.StatusInProgress, "")
		return nil
	}); err != nil {
		return err
	}

	err := policy.Do(ctx, func(attempt int) error {
		if err := o.store.Commit(func(s *state.ReleaseState) error {
			s.Retries[name] = prior + attempt
			return nil
		}); err != nil {
			return err
		}
		log.Debug("publish attempt", "attempt", attempt)
		return retry.WithTimeout(ctx, timeout, func(ctx context.Context) error {
			return o.publisher.Publish(ctx, desc, dryRun)
		})
	})

	if err == nil {
		log.Info("published")
		return o.store.Commit(func(s *state.ReleaseState) error {
			s.SetPackageStatus(name, state.StatusPublished, "")
			return nil
		})
	}

	if interrupted(ctx, err) {
		// Interrupted, not failed. InProgress resumes as a fresh attempt.
		return err
	}

	log.Error("publish failed", "error", err)
	if commitErr := o.store.Commit(func(s *state.ReleaseState) error {
		s.SetPackageStatus(name, state.StatusFailed, err.Error())
		return nil
	}); commitErr != nil {
		return commitErr
	}
	return err
}

// interrupted reports whether err means the release itself was canceled.
// A canceled error only counts as an interrupt when the parent context is
// done; a per-attempt timeout cancels its own child context and must
// surface as a package failure instead.
func interrupted(ctx context.Context, err error) bool {
	return errors.Is(err, errors.ErrCanceled) && ctx.Err() != nil
}

// skipDependents marks the transitive dependents of failed packages as
// Skipped so independent branches keep publishing.
func (o *Orchestrator) skipDependents(failed []string) error {
	return o.store.Commit(func(s *state.ReleaseState) error {
		for _, name := range failed {
			for _, dep := range o.graph.Dependents(name) {
				if s.Packages[dep].Status.Terminal() {
					continue
				}
				s.SetPackageStatus(dep, state.StatusSkipped,
					fmt.Sprintf("dependency %s failed", name))
			}
		}
		return nil
	})
}

// partialFailure builds the partial-release error that maps to the
// scripting exit code. Run marks the release Failed with it.
func (o *Orchestrator) partialFailure(failed []string) error {
	st := o.store.State()
	published := st.PublishedPackages()
	return errors.Join(errors.ErrPartialRelease,
		fmt.Errorf("%d of %d packages published; failed: %v",
			len(published), len(st.Packages), failed))
}
