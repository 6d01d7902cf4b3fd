// Package state owns the durable release state: the single source of truth
// for an in-progress release attempt. The state document is persisted as a
// whole on every transition (write-to-temp then rename), so a crash at any
// point leaves either the previous or the next state on disk, never a mix.
package state

import (
	"fmt"
	"sort"
	"time"

	"github.com/freighter-dev/freighter/internal/errors"
)

// FormatVersion is the current on-disk state format version. Loading a
// state file with a different format version is treated as corruption:
// automated resume must not guess at old layouts.
const FormatVersion = 1

// Phase is a stage of a release attempt. Phases advance monotonically
// through the fixed order; Failed and RolledBack are reachable from any
// phase.
type Phase string

const (
	PhaseValidation    Phase = "Validation"
	PhaseVersionUpdate Phase = "VersionUpdate"
	PhaseGitOperations Phase = "GitOperations"
	PhaseGitHubRelease Phase = "GitHubRelease"
	PhasePublishing    Phase = "Publishing"
	PhaseCompleted     Phase = "Completed"
	PhaseFailed        Phase = "Failed"
	PhaseRolledBack    Phase = "RolledBack"
)

// phaseOrder defines the monotonic phase sequence.
var phaseOrder = map[Phase]int{
	PhaseValidation:    0,
	PhaseVersionUpdate: 1,
	PhaseGitOperations: 2,
	PhaseGitHubRelease: 3,
	PhasePublishing:    4,
	PhaseCompleted:     5,
}

// Ordered returns the index of the phase in the fixed sequence, or -1 for
// the terminal failure phases.
func (p Phase) Ordered() int {
	if i, ok := phaseOrder[p]; ok {
		return i
	}
	return -1
}

// Terminal reports whether the phase ends the release attempt.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseRolledBack
}

// PackageStatus is the per-package publish status within the Publishing phase.
type PackageStatus string

const (
	StatusPending    PackageStatus = "Pending"
	StatusInProgress PackageStatus = "InProgress"
	StatusPublished  PackageStatus = "Published"
	StatusFailed     PackageStatus = "Failed"
	StatusSkipped    PackageStatus = "Skipped"
)

// Terminal reports whether the status is final for this release attempt.
func (s PackageStatus) Terminal() bool {
	return s == StatusPublished || s == StatusFailed || s == StatusSkipped
}

// BumpKind selects how new versions are computed.
type BumpKind string

const (
	BumpPatch    BumpKind = "patch"
	BumpMinor    BumpKind = "minor"
	BumpMajor    BumpKind = "major"
	BumpExplicit BumpKind = "explicit"
)

// PackageState is the persisted per-package record.
type PackageState struct {
	Status PackageStatus `json:"status"`
	// Reason records why a package Failed or was Skipped.
	Reason string `json:"reason,omitempty"`
	// NewVersion is the version assigned during VersionUpdate.
	NewVersion string `json:"new_version,omitempty"`
}

// Flags carries the boolean release options.
type Flags struct {
	NoPush          bool `json:"no_push"`
	NoGitHubRelease bool `json:"no_github_release"`
	NoBundles       bool `json:"no_bundles"`
	KeepTemp        bool `json:"keep_temp"`
	// ContinueOnFatal publishes independent branches past a fatal package
	// failure instead of aborting the whole phase.
	ContinueOnFatal bool `json:"continue_on_fatal"`
}

// ReleaseState is the persisted aggregate root of a release attempt.
type ReleaseState struct {
	FormatVersion int    `json:"format_version"`
	SaveVersion   uint64 `json:"save_version"`

	ReleaseID string    `json:"release_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	BumpKind        BumpKind `json:"bump_kind"`
	ExplicitVersion string   `json:"explicit_version,omitempty"`
	DryRun          bool     `json:"dry_run"`
	Flags           Flags    `json:"flags"`

	CurrentPhase Phase                   `json:"current_phase"`
	Packages     map[string]PackageState `json:"packages"`
	Retries      map[string]int          `json:"retries"`

	WorkspacePath string `json:"workspace_path"`
	SourcePath    string `json:"source_path"`
	SourceCommit  string `json:"source_commit"`

	CommitID        string `json:"commit_id,omitempty"`
	TagName         string `json:"tag_name,omitempty"`
	GitHubReleaseID int64  `json:"github_release_id,omitempty"`

	// FailureReason records why the release entered Failed.
	FailureReason string `json:"failure_reason,omitempty"`
}

// New creates a fresh ReleaseState in the Validation phase with every
// package Pending.
func New(releaseID string, bump BumpKind, packages []string) *ReleaseState {
	now := time.Now().UTC()
	st := &ReleaseState{
		FormatVersion: FormatVersion,
		ReleaseID:     releaseID,
		CreatedAt:     now,
		UpdatedAt:     now,
		BumpKind:      bump,
		CurrentPhase:  PhaseValidation,
		Packages:      make(map[string]PackageState, len(packages)),
		Retries:       make(map[string]int),
	}
	for _, name := range packages {
		st.Packages[name] = PackageState{Status: StatusPending}
	}
	return st
}

// Clone returns a deep copy. Commit mutates a clone so a failed persist
// leaves the in-memory state untouched.
func (s *ReleaseState) Clone() *ReleaseState {
	out := *s
	out.Packages = make(map[string]PackageState, len(s.Packages))
	for k, v := range s.Packages {
		out.Packages[k] = v
	}
	out.Retries = make(map[string]int, len(s.Retries))
	for k, v := range s.Retries {
		out.Retries[k] = v
	}
	return &out
}

// AdvancePhase moves the state to the next phase. Regressions within the
// fixed sequence are rejected; Failed and RolledBack are always allowed.
func (s *ReleaseState) AdvancePhase(next Phase) error {
	if next == PhaseFailed || next == PhaseRolledBack {
		s.CurrentPhase = next
		return nil
	}
	cur, ok := phaseOrder[s.CurrentPhase]
	if !ok {
		return errPhaseRegression(s.CurrentPhase, next)
	}
	nxt, ok := phaseOrder[next]
	if !ok || nxt < cur {
		return errPhaseRegression(s.CurrentPhase, next)
	}
	s.CurrentPhase = next
	return nil
}

// SetPackageStatus records a per-package status transition.
func (s *ReleaseState) SetPackageStatus(name string, status PackageStatus, reason string) {
	ps := s.Packages[name]
	ps.Status = status
	ps.Reason = reason
	s.Packages[name] = ps
}

// PublishedPackages returns the sorted list of packages whose status is
// Published.
func (s *ReleaseState) PublishedPackages() []string {
	var out []string
	for name, ps := range s.Packages {
		if ps.Status == StatusPublished {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func errPhaseRegression(from, to Phase) error {
	return errors.NewStateError(
		fmt.Sprintf("cannot move phase from %s to %s", from, to),
		errors.ErrPhaseRegression).WithPhase(string(from))
}
