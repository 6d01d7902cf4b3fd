// Package workspace owns the lifecycle of the isolated workspace: a
// disposable, fully independent clone of the source repository that all
// mutating release operations run against. The engine never mutates the
// user's checkout; everything downstream is parameterized by the isolated
// path.
//
// A small pointer file outside the workspace (home-directory scoped)
// records the active workspace location, so a restarted process can find
// it even when the state file inside the workspace is unreadable.
package workspace

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/freighter-dev/freighter/internal/errors"
)

// CommandExecutor abstracts command execution for testability.
// Tests stub git without executing it.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Workspace describes an acquired isolated workspace.
type Workspace struct {
	Path         string    `json:"path"`
	Source       string    `json:"source"`
	SourceCommit string    `json:"source_commit"`
	CreatedAt    time.Time `json:"created_at"`
}

// Manager creates, locates, and releases isolated workspaces.
type Manager struct {
	pointerPath string
	tempRoot    string
	executor    CommandExecutor
}

// NewManager creates a Manager with the default pointer location
// ($HOME/.freighter/active-workspace.json) and the real git executor.
// tempRoot is where workspaces are cloned; empty means the system
// temp directory.
func NewManager(tempRoot string) (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.NewWorkspaceError("failed to resolve home directory", err)
	}
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	return &Manager{
		pointerPath: filepath.Join(home, ".freighter", "active-workspace.json"),
		tempRoot:    tempRoot,
		executor:    &CLICommandExecutor{},
	}, nil
}

// NewManagerWithOptions creates a Manager with explicit pointer location,
// temp root, and executor. Primarily useful for tests.
func NewManagerWithOptions(pointerPath, tempRoot string, executor CommandExecutor) *Manager {
	return &Manager{pointerPath: pointerPath, tempRoot: tempRoot, executor: executor}
}

// PointerPath returns the durable pointer file location.
func (m *Manager) PointerPath() string {
	return m.pointerPath
}

// Acquire clones the source repository into a fresh unique directory and
// records the location in the durable pointer file before returning. The
// clone is a full independent copy; nothing done inside it can reach back
// into the source checkout.
func (m *Manager) Acquire(source string) (*Workspace, error) {
	source, err := filepath.Abs(source)
	if err != nil {
		return nil, errors.NewWorkspaceError("failed to resolve source path", err)
	}

	// The source must be a git repository; everything after Validation
	// assumes commit/tag/push are possible.
	if _, err := m.executor.Run(source, "git", "rev-parse", "--git-dir"); err != nil {
		return nil, errors.NewWorkspaceError("source is not a git repository",
			errors.Join(errors.ErrNotGitRepository, err)).WithPath(source)
	}

	dest := filepath.Join(m.tempRoot, fmt.Sprintf("freighter-%d-%s",
		time.Now().Unix(), randomSuffix()))

	if out, err := m.executor.Run("", "git", "clone", "--no-hardlinks", source, dest); err != nil {
		_ = os.RemoveAll(dest)
		return nil, errors.NewGitError("failed to clone source repository", err).
			WithRepository(source).
			WithGitOutput(string(out))
	}

	out, err := m.executor.Run(dest, "git", "rev-parse", "HEAD")
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, errors.NewGitError("failed to resolve source commit", err).
			WithRepository(dest).
			WithGitOutput(string(out))
	}

	ws := &Workspace{
		Path:         dest,
		Source:       source,
		SourceCommit: strings.TrimSpace(string(out)),
		CreatedAt:    time.Now().UTC(),
	}

	if err := m.writePointer(ws); err != nil {
		_ = os.RemoveAll(dest)
		return nil, err
	}
	return ws, nil
}

// Locate returns the active workspace recorded in the pointer file.
// Returns ErrWorkspaceAbsent when no pointer exists and ErrWorkspaceLost
// when the pointer exists but the directory has vanished.
func (m *Manager) Locate() (*Workspace, error) {
	data, err := os.ReadFile(m.pointerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWorkspaceError("no active workspace pointer",
				errors.ErrWorkspaceAbsent)
		}
		return nil, errors.NewWorkspaceError("failed to read workspace pointer", err)
	}

	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, errors.NewWorkspaceError("workspace pointer is corrupt",
			errors.Join(errors.ErrWorkspaceLost, err)).WithPath(m.pointerPath)
	}

	info, err := os.Stat(ws.Path)
	if err != nil || !info.IsDir() {
		return nil, errors.NewWorkspaceError(
			"workspace directory recorded in pointer no longer exists",
			errors.ErrWorkspaceLost).WithPath(ws.Path)
	}
	return &ws, nil
}

// Release removes the isolated workspace unless keep is set, and always
// clears the durable pointer on success.
func (m *Manager) Release(ws *Workspace, keep bool) error {
	if !keep {
		if err := os.RemoveAll(ws.Path); err != nil {
			return errors.NewWorkspaceError("failed to remove workspace", err).
				WithPath(ws.Path)
		}
	}
	if err := os.Remove(m.pointerPath); err != nil && !os.IsNotExist(err) {
		return errors.NewWorkspaceError("failed to clear workspace pointer", err).
			WithPath(m.pointerPath)
	}
	return nil
}

// writePointer durably records the active workspace location.
func (m *Manager) writePointer(ws *Workspace) error {
	if err := os.MkdirAll(filepath.Dir(m.pointerPath), 0755); err != nil {
		return errors.NewWorkspaceError("failed to create pointer directory", err)
	}
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return errors.NewWorkspaceError("failed to marshal workspace pointer", err)
	}
	if err := os.WriteFile(m.pointerPath, data, 0644); err != nil {
		return errors.NewWorkspaceError("failed to write workspace pointer", err).
			WithPath(m.pointerPath)
	}
	return nil
}

// randomSuffix returns a short random hex string for unique workspace names.
func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", os.Getpid())
	}
	return hex.EncodeToString(b)
}
