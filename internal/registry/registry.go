// Package registry is the package-registry collaborator: it publishes a
// single package artifact and classifies the outcome. Registries are
// treated as append-only; a published version is never taken back, which
// is why rejection (version already exists) is terminal and never retried.
package registry

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/manifest"
)

// EnvToken is the registry publish token environment variable.
const EnvToken = "FREIGHTER_REGISTRY_TOKEN"

// Token returns the configured registry token, or empty.
func Token() string {
	return os.Getenv(EnvToken)
}

// Publisher is the registry capability consumed by the publish phase.
type Publisher interface {
	// Publish pushes one package to its registry. dryRun validates the
	// package without uploading.
	Publish(ctx context.Context, desc *manifest.Descriptor, dryRun bool) error
}

// CommandExecutor abstracts context-aware command execution for testability.
type CommandExecutor interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// CLIPublisher publishes packages by invoking the registry's publish tool
// inside each package directory.
type CLIPublisher struct {
	command  string
	args     []string
	executor CommandExecutor
}

// NewCLIPublisher creates a publisher running the given command with args
// (e.g. "cargo", ["publish"]).
func NewCLIPublisher(command string, args []string) *CLIPublisher {
	return &CLIPublisher{command: command, args: args, executor: &CLICommandExecutor{}}
}

// NewCLIPublisherWithExecutor creates a publisher with a custom executor.
// This is primarily useful for testing.
func NewCLIPublisherWithExecutor(command string, args []string, executor CommandExecutor) *CLIPublisher {
	return &CLIPublisher{command: command, args: args, executor: executor}
}

// Publish runs the publish tool in the package directory and classifies
// the outcome into the retryable/fatal taxonomy.
func (p *CLIPublisher) Publish(ctx context.Context, desc *manifest.Descriptor, dryRun bool) error {
	args := append([]string(nil), p.args...)
	if dryRun {
		args = append(args, "--dry-run")
	}

	output, err := p.executor.Run(ctx, desc.Path, p.command, args...)
	if err == nil {
		return nil
	}
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		// The per-attempt timeout fired; the tool hung, not the user.
		return errors.NewPublishError("publish timed out",
			errors.Join(errors.ErrTimeout, ctxErr)).
			WithPackage(desc.Name).WithRetryable(true)
	case ctxErr != nil:
		return errors.NewPublishError("publish canceled",
			errors.Join(errors.ErrCanceled, ctxErr)).WithPackage(desc.Name)
	}
	return Classify(desc.Name, string(output), err)
}

// Classify maps publish tool output to the error taxonomy. Rejections
// (version already exists) are terminal; rate limiting and network noise
// are retryable; everything else is fatal for the package.
func Classify(pkg, output string, cause error) error {
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "already exists") ||
		strings.Contains(lower, "already uploaded") ||
		strings.Contains(lower, "is already published"):
		return errors.NewPublishError("version already published",
			errors.Join(errors.ErrRegistryRejected, cause)).WithPackage(pkg)

	case strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "429"):
		return errors.NewPublishError("registry rate limited",
			errors.Join(errors.ErrRateLimited, cause)).
			WithPackage(pkg).WithRetryable(true)

	case strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "temporarily unavailable") ||
		strings.Contains(lower, "network"):
		return errors.NewPublishError("registry unreachable",
			errors.Join(errors.ErrTransientNetwork, cause)).
			WithPackage(pkg).WithRetryable(true)

	default:
		msg := "publish failed"
		if trimmed := strings.TrimSpace(output); trimmed != "" {
			// Keep the tail: publish tools bury the useful line last.
			lines := strings.Split(trimmed, "\n")
			msg = "publish failed: " + strings.TrimSpace(lines[len(lines)-1])
		}
		return errors.NewPublishError(msg, cause).WithPackage(pkg)
	}
}
