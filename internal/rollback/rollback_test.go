package rollback

import (
	"context"
	"strings"
	"testing"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

type fakeGit struct {
	deletedTags   []string
	remoteDeletes []string
	reverts       []string
	pushes        [][]string
	revertErr     error
}

func (g *fakeGit) CommitAll(message string) (string, error) { return "", nil }
func (g *fakeGit) Tag(name, message string) error           { return nil }

func (g *fakeGit) Push(refs ...string) error {
	g.pushes = append(g.pushes, refs)
	return nil
}

func (g *fakeGit) Revert(commitID string) error {
	if g.revertErr != nil {
		return g.revertErr
	}
	g.reverts = append(g.reverts, commitID)
	return nil
}

func (g *fakeGit) DeleteTag(name string, remote bool) error {
	g.deletedTags = append(g.deletedTags, name)
	if remote {
		g.remoteDeletes = append(g.remoteDeletes, name)
	}
	return nil
}

func (g *fakeGit) Head() (string, error) { return "head", nil }

type fakeHost struct {
	deleted []int64
	err     error
}

func (h *fakeHost) CreateRelease(ctx context.Context, tag, name, notes string) (int64, error) {
	return 0, nil
}

func (h *fakeHost) UploadArtifact(ctx context.Context, releaseID int64, path string) error {
	return nil
}

func (h *fakeHost) DeleteRelease(ctx context.Context, releaseID int64) error {
	if h.err != nil {
		return h.err
	}
	h.deleted = append(h.deleted, releaseID)
	return nil
}

type testSetup struct {
	engine *Engine
	store  *state.Store
	git    *fakeGit
	host   *fakeHost
	root   string
}

func newTestSetup(t *testing.T, mutate func(*state.ReleaseState)) *testSetup {
	t.Helper()
	root := t.TempDir()

	st := state.New("rel-1", state.BumpPatch, []string{"core", "lib"})
	st.WorkspacePath = root
	if mutate != nil {
		mutate(st)
	}
	store := state.NewStore(root, st)
	if err := store.Commit(func(*state.ReleaseState) error { return nil }); err != nil {
		t.Fatal(err)
	}

	git := &fakeGit{}
	host := &fakeHost{}
	engine := New(Deps{
		Store:     store,
		Workspace: &workspace.Workspace{Path: root},
		Git:       git,
		Host:      host,
	})
	return &testSetup{engine: engine, store: store, git: git, host: host, root: root}
}

func TestRollbackReversesCompletedPhases(t *testing.T) {
	s := newTestSetup(t, func(st *state.ReleaseState) {
		st.CurrentPhase = state.PhasePublishing
		st.CommitID = "commit-1"
		st.TagName = "v1.0.1"
		st.GitHubReleaseID = 42
		st.SetPackageStatus("core", state.StatusPublished, "")
	})

	report, err := s.engine.Rollback(context.Background(), false)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if len(s.host.deleted) != 1 || s.host.deleted[0] != 42 {
		t.Errorf("release not deleted: %v", s.host.deleted)
	}
	if len(s.git.deletedTags) != 1 || s.git.deletedTags[0] != "v1.0.1" {
		t.Errorf("tag not deleted: %v", s.git.deletedTags)
	}
	if len(s.git.remoteDeletes) != 1 {
		t.Errorf("remote tag not deleted: %v", s.git.remoteDeletes)
	}
	if len(s.git.reverts) != 1 || s.git.reverts[0] != "commit-1" {
		t.Errorf("commit not reverted: %v", s.git.reverts)
	}
	if len(s.git.pushes) != 1 {
		t.Errorf("revert not pushed: %v", s.git.pushes)
	}

	if len(report.NotUnpublished) != 1 || report.NotUnpublished[0] != "core" {
		t.Errorf("published packages must be reported, got %v", report.NotUnpublished)
	}
	if len(report.Issues) != 0 {
		t.Errorf("unexpected issues: %v", report.Issues)
	}

	// State file is gone after rollback.
	if _, err := state.Load(s.root); !errors.Is(err, errors.ErrStateNotFound) {
		t.Errorf("state should be removed, got %v", err)
	}
}

func TestRollbackSkipsStepsThatNeverRan(t *testing.T) {
	s := newTestSetup(t, func(st *state.ReleaseState) {
		st.CurrentPhase = state.PhaseVersionUpdate
	})

	report, err := s.engine.Rollback(context.Background(), false)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(s.host.deleted) != 0 || len(s.git.deletedTags) != 0 || len(s.git.reverts) != 0 {
		t.Error("inverse steps ran for phases that never completed")
	}
	if len(report.NotUnpublished) != 0 {
		t.Errorf("nothing published, got %v", report.NotUnpublished)
	}
}

func TestRollbackNoPushSkipsRemoteOperations(t *testing.T) {
	s := newTestSetup(t, func(st *state.ReleaseState) {
		st.CurrentPhase = state.PhaseGitOperations
		st.CommitID = "commit-1"
		st.TagName = "v1.0.1"
		st.Flags.NoPush = true
	})

	if _, err := s.engine.Rollback(context.Background(), false); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(s.git.remoteDeletes) != 0 {
		t.Errorf("remote tag deleted for unpushed release: %v", s.git.remoteDeletes)
	}
	if len(s.git.pushes) != 0 {
		t.Errorf("revert pushed for unpushed release: %v", s.git.pushes)
	}
}

func TestRollbackRefusesCompletedWithoutForce(t *testing.T) {
	s := newTestSetup(t, func(st *state.ReleaseState) {
		st.CurrentPhase = state.PhaseCompleted
		st.TagName = "v1.0.1"
	})

	_, err := s.engine.Rollback(context.Background(), false)
	if !errors.Is(err, errors.ErrRollbackRefused) {
		t.Fatalf("expected ErrRollbackRefused, got %v", err)
	}

	if _, err := s.engine.Rollback(context.Background(), true); err != nil {
		t.Fatalf("forced rollback: %v", err)
	}
	if len(s.git.deletedTags) != 1 {
		t.Errorf("forced rollback did not delete tag: %v", s.git.deletedTags)
	}
}

func TestRollbackContinuesPastCollaboratorFailures(t *testing.T) {
	s := newTestSetup(t, func(st *state.ReleaseState) {
		st.CurrentPhase = state.PhasePublishing
		st.CommitID = "commit-1"
		st.TagName = "v1.0.1"
		st.GitHubReleaseID = 42
	})
	s.host.err = errors.New("api down")
	s.git.revertErr = errors.New("conflict")

	report, err := s.engine.Rollback(context.Background(), false)
	if err != nil {
		t.Fatalf("rollback must be best effort: %v", err)
	}
	if len(report.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", report.Issues)
	}
	joined := strings.Join(report.Issues, "\n")
	if !strings.Contains(joined, "delete release") || !strings.Contains(joined, "revert commit") {
		t.Errorf("issues incomplete: %v", report.Issues)
	}
	// The tag deletion between the two failures still ran.
	if len(s.git.deletedTags) != 1 {
		t.Errorf("tag deletion skipped: %v", s.git.deletedTags)
	}
}
