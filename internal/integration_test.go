// Package internal contains integration tests that verify the release
// engine's packages work together: a release that fails mid-publish must
// be fully reversible by the rollback engine.
package internal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/freighter-dev/freighter/internal/config"
	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/manifest"
	"github.com/freighter-dev/freighter/internal/orchestrator"
	"github.com/freighter-dev/freighter/internal/registry"
	"github.com/freighter-dev/freighter/internal/rollback"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

type recordingGit struct {
	mu          sync.Mutex
	tags        []string
	deletedTags []string
	reverts     []string
}

func (g *recordingGit) CommitAll(message string) (string, error) { return "commit-1", nil }

func (g *recordingGit) Tag(name, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tags = append(g.tags, name)
	return nil
}

func (g *recordingGit) Push(refs ...string) error { return nil }

func (g *recordingGit) Revert(commitID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reverts = append(g.reverts, commitID)
	return nil
}

func (g *recordingGit) DeleteTag(name string, remote bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedTags = append(g.deletedTags, name)
	return nil
}

func (g *recordingGit) Head() (string, error) { return "commit-1", nil }

type selectivePublisher struct {
	mu   sync.Mutex
	fail map[string]error
	seen []string
}

func (p *selectivePublisher) Publish(ctx context.Context, desc *manifest.Descriptor, dryRun bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, desc.Name)
	return p.fail[desc.Name]
}

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("freighter.toml", "[workspace]\nmembers = [\"crates/*\"]\n")
	write("crates/base/freighter.toml", "[package]\nname = \"base\"\nversion = \"2.1.0\"\n")
	write("crates/tool/freighter.toml", `[package]
name = "tool"
version = "2.1.0"

[dependencies]
base = { path = "../base", version = "^2.1.0" }
`)
	return root
}

// TestFailedReleaseRollsBackCleanly drives a release into a fatal publish
// failure and verifies the rollback engine reverses the git side effects
// and removes every piece of persisted release data.
func TestFailedReleaseRollsBackCleanly(t *testing.T) {
	t.Setenv(registry.EnvToken, "tok")

	root := writeWorkspace(t)
	st := state.New("rel-it-1", state.BumpMinor, []string{"base", "tool"})
	st.WorkspacePath = root
	store := state.NewStore(root, st)
	if err := store.Commit(func(*state.ReleaseState) error { return nil }); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Retry.BaseDelaySeconds = 0
	git := &recordingGit{}
	pub := &selectivePublisher{fail: map[string]error{
		"base": errors.NewPublishError("rejected", errors.ErrRegistryRejected).WithPackage("base"),
	}}
	ws := &workspace.Workspace{Path: root, Source: "/src", SourceCommit: "deadbeef"}

	orch := orchestrator.New(orchestrator.Deps{
		Config:    cfg,
		Store:     store,
		Workspace: ws,
		Git:       git,
		Publisher: pub,
	})

	err := orch.Run(context.Background())
	if !errors.Is(err, errors.ErrPartialRelease) {
		t.Fatalf("expected partial release failure, got %v", err)
	}

	failed, err := state.Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if failed.CurrentPhase != state.PhaseFailed {
		t.Fatalf("phase = %s, want Failed", failed.CurrentPhase)
	}
	if failed.TagName != "v2.2.0" {
		t.Fatalf("tag = %q, want v2.2.0", failed.TagName)
	}

	// Roll the failed release back with a fresh store, the way the CLI
	// would after the release process exited.
	reopened, err := state.Open(root)
	if err != nil {
		t.Fatal(err)
	}
	report, err := rollback.New(rollback.Deps{
		Store:     reopened,
		Workspace: ws,
		Git:       git,
	}).Rollback(context.Background(), false)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if len(git.deletedTags) != 1 || git.deletedTags[0] != "v2.2.0" {
		t.Errorf("tag not deleted: %v", git.deletedTags)
	}
	if len(git.reverts) != 1 || git.reverts[0] != "commit-1" {
		t.Errorf("bump commit not reverted: %v", git.reverts)
	}
	if len(report.Issues) != 0 {
		t.Errorf("unexpected rollback issues: %v", report.Issues)
	}

	if _, err := state.Load(root); !errors.Is(err, errors.ErrStateNotFound) {
		t.Errorf("state should be removed after rollback, got %v", err)
	}
	if _, err := os.Stat(state.LockPath(root)); !os.IsNotExist(err) {
		t.Error("lock file should be removed after rollback")
	}
}
