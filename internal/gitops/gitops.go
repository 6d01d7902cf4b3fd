// Package gitops provides the narrow source-control capability the release
// engine consumes: commit, tag, push, revert, and tag deletion against the
// isolated workspace. It wraps the git CLI behind a CommandExecutor so
// tests can stub every operation.
package gitops

import (
	"os/exec"
	"strings"

	"github.com/freighter-dev/freighter/internal/errors"
)

// CommandExecutor abstracts command execution for testability.
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

// Operations is the source-control collaborator interface consumed by the
// orchestrator and the rollback engine.
type Operations interface {
	// CommitAll stages and commits all changes, returning the commit ID.
	CommitAll(message string) (string, error)
	// Tag creates an annotated tag at HEAD.
	Tag(name, message string) error
	// Push pushes the given refs (or the current branch when none given).
	Push(refs ...string) error
	// Revert reverts the given commit with a new commit.
	Revert(commitID string) error
	// DeleteTag removes a local tag and, when remote is true, its remote copy.
	DeleteTag(name string, remote bool) error
	// Head returns the current HEAD commit ID.
	Head() (string, error)
}

// CLIGitOperations implements Operations using git CLI commands against a
// fixed repository directory (the isolated workspace).
type CLIGitOperations struct {
	repoDir  string
	executor CommandExecutor
}

// New creates git operations bound to the given repository directory.
func New(repoDir string) *CLIGitOperations {
	return &CLIGitOperations{repoDir: repoDir, executor: &CLICommandExecutor{}}
}

// NewWithExecutor creates git operations with a custom executor.
// This is primarily useful for testing.
func NewWithExecutor(repoDir string, executor CommandExecutor) *CLIGitOperations {
	return &CLIGitOperations{repoDir: repoDir, executor: executor}
}

// CommitAll stages and commits all changes with the given message and
// returns the resulting commit ID. Returns the current HEAD if there is
// nothing to commit.
func (g *CLIGitOperations) CommitAll(message string) (string, error) {
	output, err := g.executor.Run(g.repoDir, "git", "add", "-A")
	if err != nil {
		return "", errors.NewGitError("failed to stage changes", err).
			WithRepository(g.repoDir).
			WithGitOutput(string(output))
	}

	output, err = g.executor.Run(g.repoDir, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return g.Head()
		}
		return "", errors.NewGitError("failed to commit", err).
			WithRepository(g.repoDir).
			WithGitOutput(string(output))
	}
	return g.Head()
}

// Tag creates an annotated tag at HEAD.
func (g *CLIGitOperations) Tag(name, message string) error {
	output, err := g.executor.Run(g.repoDir, "git", "tag", "-a", name, "-m", message)
	if err != nil {
		return errors.NewGitError("failed to create tag", err).
			WithRepository(g.repoDir).
			WithReference(name).
			WithGitOutput(string(output))
	}
	return nil
}

// Push pushes the given refs to origin, or the current branch when none
// are given. Push failures are retryable: remotes flake.
func (g *CLIGitOperations) Push(refs ...string) error {
	args := append([]string{"push", "origin"}, refs...)
	output, err := g.executor.Run(g.repoDir, "git", args...)
	if err != nil {
		return errors.NewGitError("failed to push", err).
			WithRepository(g.repoDir).
			WithGitOutput(string(output)).
			WithRetryable(true)
	}
	return nil
}

// Revert reverts the given commit with a new commit.
func (g *CLIGitOperations) Revert(commitID string) error {
	output, err := g.executor.Run(g.repoDir, "git", "revert", "--no-edit", commitID)
	if err != nil {
		return errors.NewGitError("failed to revert commit", err).
			WithRepository(g.repoDir).
			WithReference(commitID).
			WithGitOutput(string(output))
	}
	return nil
}

// DeleteTag removes a local tag and optionally its remote copy.
func (g *CLIGitOperations) DeleteTag(name string, remote bool) error {
	output, err := g.executor.Run(g.repoDir, "git", "tag", "-d", name)
	if err != nil && !strings.Contains(string(output), "not found") {
		return errors.NewGitError("failed to delete local tag", err).
			WithRepository(g.repoDir).
			WithReference(name).
			WithGitOutput(string(output))
	}

	if remote {
		output, err := g.executor.Run(g.repoDir, "git", "push", "origin", ":refs/tags/"+name)
		if err != nil {
			return errors.NewGitError("failed to delete remote tag", err).
				WithRepository(g.repoDir).
				WithReference(name).
				WithGitOutput(string(output)).
				WithRetryable(true)
		}
	}
	return nil
}

// Head returns the current HEAD commit ID.
func (g *CLIGitOperations) Head() (string, error) {
	output, err := g.executor.Run(g.repoDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to resolve HEAD", err).
			WithRepository(g.repoDir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}
