package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/freighter-dev/freighter/internal/errors"
)

const (
	// StateDirName is the workspace-local hidden directory holding release
	// state, the lock file, and the debug log.
	StateDirName = ".freighter"
	// StateFileName is the release state document inside StateDirName.
	StateFileName = "release.json"
)

// StateDir returns the state directory for a workspace.
func StateDir(workspace string) string {
	return filepath.Join(workspace, StateDirName)
}

// StatePath returns the state file path for a workspace.
func StatePath(workspace string) string {
	return filepath.Join(workspace, StateDirName, StateFileName)
}

// Store persists a ReleaseState for one workspace. All transitions go
// through Commit, which writes the entire document atomically before the
// in-memory state is considered changed.
type Store struct {
	workspace string
	mu        sync.Mutex
	current   *ReleaseState
}

// NewStore creates a Store for the given workspace directory and adopts
// the provided initial state without persisting it; call Commit to write.
func NewStore(workspace string, initial *ReleaseState) *Store {
	return &Store{workspace: workspace, current: initial}
}

// Open loads the persisted state for a workspace into a Store.
// Returns ErrStateNotFound if no state file exists and ErrStateCorrupted
// if the file cannot be decoded or has an unsupported format version.
func Open(workspace string) (*Store, error) {
	st, err := Load(workspace)
	if err != nil {
		return nil, err
	}
	return &Store{workspace: workspace, current: st}, nil
}

// Load reads the persisted state for a workspace.
func Load(workspace string) (*ReleaseState, error) {
	data, err := os.ReadFile(StatePath(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewStateError("no release state in workspace",
				errors.ErrStateNotFound)
		}
		return nil, errors.NewStateError("failed to read state file", err)
	}

	var st ReleaseState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.NewStateCorruptionError("state file is not valid JSON", err)
	}
	if st.FormatVersion != FormatVersion {
		return nil, errors.NewStateCorruptionError(
			fmt.Sprintf("unsupported state format version %d (want %d)",
				st.FormatVersion, FormatVersion), nil)
	}
	if st.Packages == nil {
		st.Packages = make(map[string]PackageState)
	}
	if st.Retries == nil {
		st.Retries = make(map[string]int)
	}
	return &st, nil
}

// State returns a snapshot copy of the current state.
func (s *Store) State() *ReleaseState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Commit applies mutate to a copy of the current state, persists the whole
// new document atomically, and only then swaps it in as current. If the
// mutation or the persist fails, the in-memory state is unchanged and the
// error is returned: a commit is all-or-nothing.
func (s *Store) Commit(mutate func(*ReleaseState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	if err := mutate(next); err != nil {
		return err
	}
	next.SaveVersion = s.current.SaveVersion + 1
	next.UpdatedAt = time.Now().UTC()

	if err := s.persist(next); err != nil {
		return errors.NewStateError("failed to persist state", err).
			WithReleaseID(next.ReleaseID).
			WithPhase(string(next.CurrentPhase))
	}
	s.current = next
	return nil
}

// Destroy removes the persisted state file. Only called after the release
// reaches Completed or RolledBack and cleanup runs.
func (s *Store) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(StatePath(s.workspace)); err != nil && !os.IsNotExist(err) {
		return errors.NewStateError("failed to remove state file", err)
	}
	return nil
}

// persist writes the state document via temp-file-then-rename so a crash
// mid-write never corrupts the previous document.
func (s *Store) persist(st *ReleaseState) error {
	dir := StateDir(s.workspace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	return atomicWriteFile(StatePath(s.workspace), data, 0644)
}

// atomicWriteFile writes data to a temporary file in the target directory
// and renames it into place. Rename within a directory is atomic on POSIX
// filesystems.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
