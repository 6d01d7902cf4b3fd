package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/freighter-dev/freighter/internal/errors"
)

// fakeExecutor records git invocations and fabricates their effects.
type fakeExecutor struct {
	calls [][]string
	fail  map[string]string // subcommand -> error output
}

func (f *fakeExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)

	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	if out, ok := f.fail[sub]; ok {
		return []byte(out), errors.New("exit status 128")
	}

	switch sub {
	case "clone":
		// args: clone --no-hardlinks <src> <dest>
		dest := args[len(args)-1]
		if err := os.MkdirAll(dest, 0755); err != nil {
			return nil, err
		}
		return nil, nil
	case "rev-parse":
		return []byte("abc123def456\n"), nil
	}
	return nil, nil
}

func newTestManager(t *testing.T, exec CommandExecutor) *Manager {
	t.Helper()
	dir := t.TempDir()
	return NewManagerWithOptions(
		filepath.Join(dir, "pointer", "active-workspace.json"),
		filepath.Join(dir, "tmp"),
		exec,
	)
}

func TestNewManagerTempRoot(t *testing.T) {
	custom := t.TempDir()
	m, err := NewManager(custom)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.tempRoot != custom {
		t.Errorf("tempRoot = %q, want %q", m.tempRoot, custom)
	}

	m, err = NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.tempRoot != os.TempDir() {
		t.Errorf("empty temp root should fall back to the system default, got %q", m.tempRoot)
	}
}

func TestAcquireClonesAndWritesPointer(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestManager(t, exec)
	if err := os.MkdirAll(m.tempRoot, 0755); err != nil {
		t.Fatal(err)
	}
	source := t.TempDir()

	ws, err := m.Acquire(source)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if ws.SourceCommit != "abc123def456" {
		t.Errorf("source commit = %q", ws.SourceCommit)
	}
	if !strings.Contains(filepath.Base(ws.Path), "freighter-") {
		t.Errorf("workspace path should carry the freighter prefix: %s", ws.Path)
	}
	if _, err := os.Stat(m.PointerPath()); err != nil {
		t.Errorf("pointer file should exist: %v", err)
	}

	located, err := m.Locate()
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if located.Path != ws.Path || located.SourceCommit != ws.SourceCommit {
		t.Errorf("Locate() = %+v, want %+v", located, ws)
	}
}

func TestAcquireRejectsNonGitSource(t *testing.T) {
	exec := &fakeExecutor{fail: map[string]string{"rev-parse": "fatal: not a git repository"}}
	m := newTestManager(t, exec)

	_, err := m.Acquire(t.TempDir())
	if !errors.Is(err, errors.ErrNotGitRepository) {
		t.Fatalf("expected ErrNotGitRepository, got %v", err)
	}
	if _, err := os.Stat(m.PointerPath()); !os.IsNotExist(err) {
		t.Error("no pointer should be written on failure")
	}
}

func TestLocateWithoutPointer(t *testing.T) {
	m := newTestManager(t, &fakeExecutor{})

	_, err := m.Locate()
	if !errors.Is(err, errors.ErrWorkspaceAbsent) {
		t.Fatalf("expected ErrWorkspaceAbsent, got %v", err)
	}
}

func TestLocateLostWorkspace(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestManager(t, exec)
	if err := os.MkdirAll(m.tempRoot, 0755); err != nil {
		t.Fatal(err)
	}

	ws, err := m.Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Simulate the workspace directory vanishing out from under us.
	if err := os.RemoveAll(ws.Path); err != nil {
		t.Fatal(err)
	}

	_, err = m.Locate()
	if !errors.Is(err, errors.ErrWorkspaceLost) {
		t.Fatalf("expected ErrWorkspaceLost, got %v", err)
	}
}

func TestReleaseRemovesWorkspaceAndPointer(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestManager(t, exec)
	if err := os.MkdirAll(m.tempRoot, 0755); err != nil {
		t.Fatal(err)
	}

	ws, err := m.Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := m.Release(ws, false); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Error("workspace directory should be removed")
	}
	if _, err := os.Stat(m.PointerPath()); !os.IsNotExist(err) {
		t.Error("pointer should be cleared")
	}
}

func TestReleaseKeepPreservesDirectory(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestManager(t, exec)
	if err := os.MkdirAll(m.tempRoot, 0755); err != nil {
		t.Fatal(err)
	}

	ws, err := m.Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := m.Release(ws, true); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Path); err != nil {
		t.Error("workspace directory should be preserved with keep")
	}
	if _, err := os.Stat(m.PointerPath()); !os.IsNotExist(err) {
		t.Error("pointer should be cleared even with keep")
	}
}
