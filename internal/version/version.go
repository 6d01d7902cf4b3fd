// Package version computes and applies the unified version bump: every
// package in the workspace moves to the same new version in one release.
package version

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/manifest"
	"github.com/freighter-dev/freighter/internal/state"
)

// Plan describes the version transition for one release.
type Plan struct {
	// Target is the version every package moves to.
	Target *semver.Version
	// Previous maps package name to its version before the bump.
	Previous map[string]*semver.Version
}

// TagName returns the git tag for the planned release.
func (p *Plan) TagName() string {
	return "v" + p.Target.String()
}

// Compute derives the release plan from the current descriptors. The bump
// is applied to the highest current version so the workspace converges
// even when packages drifted apart.
func Compute(descriptors []*manifest.Descriptor, bump state.BumpKind, explicit string) (*Plan, error) {
	if len(descriptors) == 0 {
		return nil, errors.New("no packages to release")
	}

	previous := make(map[string]*semver.Version, len(descriptors))
	var highest *semver.Version
	for _, d := range descriptors {
		previous[d.Name] = d.Version
		if highest == nil || d.Version.GreaterThan(highest) {
			highest = d.Version
		}
	}

	var target semver.Version
	switch bump {
	case state.BumpPatch:
		target = highest.IncPatch()
	case state.BumpMinor:
		target = highest.IncMinor()
	case state.BumpMajor:
		target = highest.IncMajor()
	case state.BumpExplicit:
		parsed, err := semver.StrictNewVersion(explicit)
		if err != nil {
			return nil, errors.Join(errors.ErrInvalidVersion,
				fmt.Errorf("invalid explicit version %q: %w", explicit, err))
		}
		if !parsed.GreaterThan(highest) {
			return nil, errors.Join(errors.ErrInvalidVersion,
				fmt.Errorf("explicit version %s does not advance past %s", parsed, highest))
		}
		target = *parsed
	default:
		return nil, fmt.Errorf("unknown bump kind %q", bump)
	}

	return &Plan{Target: &target, Previous: previous}, nil
}

// Apply rewrites every package manifest to the target version and updates
// internal dependency constraints to a caret on the new version. Edits are
// format preserving.
func Apply(plan *Plan, descriptors []*manifest.Descriptor, editor *manifest.Editor) error {
	target := plan.Target.String()
	constraint := "^" + target

	ordered := append([]*manifest.Descriptor(nil), descriptors...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	for _, d := range ordered {
		if err := editor.SetVersion(d.ManifestPath, target); err != nil {
			return fmt.Errorf("updating %s: %w", d.Name, err)
		}
		for _, dep := range d.InternalDeps {
			if err := editor.SetDependencyVersion(d.ManifestPath, dep, constraint); err != nil {
				return fmt.Errorf("updating %s dependency %s: %w", d.Name, dep, err)
			}
		}
	}
	return nil
}
