package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/logging"
)

// LockFileName is the name of the lock file within the state directory.
const LockFileName = "release.lock"

// Lock represents an acquired exclusive release lock. At most one release
// may hold the lock for a given workspace; acquiring it is an atomic
// create-if-absent, never a queue.
type Lock struct {
	ReleaseID string    `json:"release_id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	// Internal fields (not serialized)
	lockFile string
	logger   *logging.Logger
}

// LockPath returns the lock file path for a workspace.
func LockPath(workspace string) string {
	return filepath.Join(workspace, StateDirName, LockFileName)
}

// AcquireLock attempts to acquire the exclusive release lock for the
// workspace. Returns ErrAlreadyInProgress if another live process holds it.
// Stale locks left by dead processes are reclaimed. The logger is optional
// and may be nil when the lock is acquired before logging is set up.
func AcquireLock(workspace, releaseID string, logger *logging.Logger) (*Lock, error) {
	lockPath := LockPath(workspace)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, errors.NewStateError("failed to create state directory", err)
	}

	// Check for an existing lock and whether its holder is still alive.
	if existing, err := ReadLock(lockPath); err == nil {
		if isProcessAlive(existing.PID) {
			if logger != nil {
				logger.Error("failed to acquire release lock",
					"release_id", releaseID,
					"holder_pid", existing.PID,
					"holder_host", existing.Hostname,
				)
			}
			return nil, errors.NewStateError(
				fmt.Sprintf("held by PID %d on %s since %s",
					existing.PID, existing.Hostname,
					existing.StartedAt.Format(time.RFC3339)),
				errors.ErrAlreadyInProgress).WithReleaseID(existing.ReleaseID)
		}
		// Stale lock - remove it
		oldPID := existing.PID
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.NewStateError("failed to remove stale lock", err)
		}
		if logger != nil {
			logger.Warn("stale release lock cleaned",
				"release_id", releaseID,
				"old_pid", oldPID,
			)
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		ReleaseID: releaseID,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now().UTC(),
		lockFile:  lockPath,
		logger:    logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, errors.NewStateError("failed to marshal lock", err)
	}

	// O_EXCL makes creation the atomic acquire; a concurrent creator loses.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder := "another process"
			if existing, readErr := ReadLock(lockPath); readErr == nil {
				holder = fmt.Sprintf("PID %d on %s", existing.PID, existing.Hostname)
			}
			return nil, errors.NewStateError("held by "+holder,
				errors.ErrAlreadyInProgress)
		}
		return nil, errors.NewStateError("failed to create lock file", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(lockPath)
		return nil, errors.NewStateError("failed to write lock file", err)
	}

	if logger != nil {
		logger.Info("release lock acquired",
			"release_id", releaseID,
			"pid", lock.PID,
		)
	}
	return lock, nil
}

// ReadLock reads and decodes a lock file.
func ReadLock(lockPath string) (*Lock, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.lockFile = lockPath
	return &lock, nil
}

// Release removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l.lockFile == "" {
		return nil
	}
	if err := os.Remove(l.lockFile); err != nil && !os.IsNotExist(err) {
		return errors.NewStateError("failed to remove lock file", err)
	}
	if l.logger != nil {
		l.logger.Info("release lock released", "release_id", l.ReleaseID)
	}
	l.lockFile = ""
	return nil
}

// ClearLock removes any lock file for the workspace regardless of holder.
// Used by rollback and cleanup once the release attempt is finished.
func ClearLock(workspace string) error {
	if err := os.Remove(LockPath(workspace)); err != nil && !os.IsNotExist(err) {
		return errors.NewStateError("failed to clear lock file", err)
	}
	return nil
}

// isProcessAlive reports whether a process with the given PID exists.
// Signal 0 performs the existence check without delivering anything.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
