// Package errors provides centralized error definitions and error handling
// utilities for the Freighter codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - GraphError: errors from dependency graph construction and validation
//   - ManifestError: errors from package manifest loading
//   - StateError: errors from release state persistence and locking
//   - WorkspaceError: errors from the isolated workspace lifecycle
//   - GitError: errors from git operations (clone, commit, tag, push)
//   - PublishError: errors from registry publish attempts
//   - ReleaseHostError: errors from the release-hosting API
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewGraphError("workspace graph is cyclic", errors.ErrDependencyCycle).WithCycle(names)
//
//	// With context wrapping
//	err := errors.NewGitError("tag failed", baseErr).WithRepository(path).WithGitOutput(out)
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrAlreadyInProgress) { ... }
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors are classified by behavior:
//   - Retryable: transient errors (network timeouts, rate limits) that may
//     succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning Severity = iota
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate manual attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Graph and manifest sentinel errors
var (
	// ErrDependencyCycle indicates a circular dependency between workspace packages.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrUnknownDependency indicates an internal dependency that resolves to no known package.
	ErrUnknownDependency = New("unknown internal dependency")
	// ErrDuplicatePackage indicates two workspace packages sharing a name.
	ErrDuplicatePackage = New("duplicate package name")
	// ErrManifestParse indicates a package manifest that could not be parsed.
	ErrManifestParse = New("manifest parse failed")
)

// State sentinel errors
var (
	// ErrAlreadyInProgress indicates another release holds the workspace lock.
	ErrAlreadyInProgress = New("release already in progress")
	// ErrStateNotFound indicates no persisted release state exists.
	ErrStateNotFound = New("release state not found")
	// ErrStateCorrupted indicates the persisted release state is unreadable.
	// Automated resume and rollback must halt when this is seen.
	ErrStateCorrupted = New("release state corrupted")
	// ErrPhaseRegression indicates an attempt to move a release phase backwards.
	ErrPhaseRegression = New("phase order violation")
)

// Workspace sentinel errors
var (
	// ErrWorkspaceLost indicates the isolated workspace can no longer be located.
	ErrWorkspaceLost = New("isolated workspace lost")
	// ErrWorkspaceAbsent indicates no active isolated workspace pointer exists.
	ErrWorkspaceAbsent = New("no active isolated workspace")
	// ErrNotGitRepository indicates the source directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
)

// Validation sentinel errors
var (
	// ErrCredentialMissing indicates a credential required by a requested phase is absent.
	ErrCredentialMissing = New("required credential missing")
	// ErrInvalidVersion indicates a version string that is not valid semver.
	ErrInvalidVersion = New("invalid semantic version")
)

// Network and registry sentinel errors
var (
	// ErrTransientNetwork indicates a network failure that may succeed on retry.
	ErrTransientNetwork = New("transient network failure")
	// ErrRateLimited indicates the remote service applied rate limiting.
	ErrRateLimited = New("rate limited")
	// ErrRegistryRejected indicates the registry refused the package, e.g. the
	// version already exists. Never retried.
	ErrRegistryRejected = New("registry rejected package")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrRollbackRefused indicates rollback of a completed release without force.
	ErrRollbackRefused = New("rollback refused")
	// ErrPartialRelease indicates a release where some packages published and
	// some did not. Scripts key off its distinct exit code.
	ErrPartialRelease = New("release partially published")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// FreighterError is the base interface for all Freighter errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type FreighterError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GraphError represents errors from dependency graph construction.
//
// Example:
//
//	err := errors.NewGraphError("workspace graph is cyclic", errors.ErrDependencyCycle).
//		WithCycle([]string{"a", "b", "c"})
type GraphError struct {
	baseError
	Cycle      []string
	Package    string
	Dependency string
}

// NewGraphError creates a new GraphError.
func NewGraphError(message string, cause error) *GraphError {
	return &GraphError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithCycle records the package names forming the detected cycle.
func (e *GraphError) WithCycle(cycle []string) *GraphError {
	e.Cycle = cycle
	return e
}

// WithPackage adds the package whose dependency list failed to resolve.
func (e *GraphError) WithPackage(name string) *GraphError {
	e.Package = name
	return e
}

// WithDependency adds the dependency name that failed to resolve.
func (e *GraphError) WithDependency(name string) *GraphError {
	e.Dependency = name
	return e
}

// Error returns the formatted error message.
func (e *GraphError) Error() string {
	var parts []string
	if len(e.Cycle) > 0 {
		parts = append(parts, fmt.Sprintf("cycle=%s", strings.Join(e.Cycle, " -> ")))
	}
	if e.Package != "" {
		parts = append(parts, fmt.Sprintf("package=%s", e.Package))
	}
	if e.Dependency != "" {
		parts = append(parts, fmt.Sprintf("dependency=%s", e.Dependency))
	}

	prefix := "graph error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("graph error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *GraphError) Is(target error) bool {
	if _, ok := target.(*GraphError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ManifestError represents errors from package manifest loading.
type ManifestError struct {
	baseError
	Path string
}

// NewManifestError creates a new ManifestError.
func NewManifestError(message string, cause error) *ManifestError {
	return &ManifestError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithPath adds the manifest path to the error context.
func (e *ManifestError) WithPath(path string) *ManifestError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *ManifestError) Error() string {
	prefix := "manifest error"
	if e.Path != "" {
		prefix = fmt.Sprintf("manifest error [path=%s]", e.Path)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ManifestError) Is(target error) bool {
	if _, ok := target.(*ManifestError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StateError represents errors from release state persistence and locking.
type StateError struct {
	baseError
	ReleaseID string
	Phase     string
}

// NewStateError creates a new StateError.
func NewStateError(message string, cause error) *StateError {
	return &StateError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// NewStateCorruptionError creates a StateError for unreadable state.
// Corruption is critical: it halts all automated resume and rollback.
func NewStateCorruptionError(message string, cause error) *StateError {
	err := NewStateError(message, Join(ErrStateCorrupted, cause))
	err.severity = SeverityCritical
	return err
}

// WithReleaseID adds the release ID to the error context.
func (e *StateError) WithReleaseID(id string) *StateError {
	e.ReleaseID = id
	return e
}

// WithPhase adds the current phase to the error context.
func (e *StateError) WithPhase(phase string) *StateError {
	e.Phase = phase
	return e
}

// Error returns the formatted error message.
func (e *StateError) Error() string {
	var parts []string
	if e.ReleaseID != "" {
		parts = append(parts, fmt.Sprintf("release=%s", e.ReleaseID))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}

	prefix := "state error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("state error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StateError) Is(target error) bool {
	if _, ok := target.(*StateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkspaceError represents errors from the isolated workspace lifecycle.
type WorkspaceError struct {
	baseError
	Path string
}

// NewWorkspaceError creates a new WorkspaceError.
func NewWorkspaceError(message string, cause error) *WorkspaceError {
	return &WorkspaceError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithPath adds the workspace path to the error context.
func (e *WorkspaceError) WithPath(path string) *WorkspaceError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *WorkspaceError) Error() string {
	prefix := "workspace error"
	if e.Path != "" {
		prefix = fmt.Sprintf("workspace error [path=%s]", e.Path)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WorkspaceError) Is(target error) bool {
	if _, ok := target.(*WorkspaceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GitError represents errors from git operations.
//
// Example:
//
//	err := errors.NewGitError("tag failed", baseErr).
//		WithRepository("/tmp/freighter-x").
//		WithGitOutput("fatal: tag 'v1.2.0' already exists")
type GitError struct {
	baseError
	Repository string
	Reference  string
	GitOutput  string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithRepository adds the repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithReference adds a branch, tag, or commit name to the error context.
func (e *GitError) WithReference(ref string) *GitError {
	e.Reference = ref
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// WithRetryable sets whether the error is retryable. Push failures against
// a flaky remote are; local object-store failures are not.
func (e *GitError) WithRetryable(r bool) *GitError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}
	if e.Reference != "" {
		parts = append(parts, fmt.Sprintf("ref=%s", e.Reference))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := prefix + ": " + e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\n%s", msg, e.GitOutput)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PublishError represents errors from registry publish attempts.
type PublishError struct {
	baseError
	Package string
	Attempt int
}

// NewPublishError creates a new PublishError. Whether it is retryable
// depends on the cause; use WithRetryable after classification.
func NewPublishError(message string, cause error) *PublishError {
	return &PublishError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithPackage adds the package name to the error context.
func (e *PublishError) WithPackage(name string) *PublishError {
	e.Package = name
	return e
}

// WithAttempt adds the attempt number to the error context.
func (e *PublishError) WithAttempt(n int) *PublishError {
	e.Attempt = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *PublishError) WithRetryable(r bool) *PublishError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *PublishError) Error() string {
	var parts []string
	if e.Package != "" {
		parts = append(parts, fmt.Sprintf("package=%s", e.Package))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "publish error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("publish error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PublishError) Is(target error) bool {
	if _, ok := target.(*PublishError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ReleaseHostError represents errors from the release-hosting API.
type ReleaseHostError struct {
	baseError
	StatusCode int
	URL        string
}

// NewReleaseHostError creates a new ReleaseHostError.
func NewReleaseHostError(message string, cause error) *ReleaseHostError {
	return &ReleaseHostError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithStatusCode adds the HTTP status code to the error context.
func (e *ReleaseHostError) WithStatusCode(code int) *ReleaseHostError {
	e.StatusCode = code
	return e
}

// WithURL adds the request URL to the error context.
func (e *ReleaseHostError) WithURL(url string) *ReleaseHostError {
	e.URL = url
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ReleaseHostError) WithRetryable(r bool) *ReleaseHostError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ReleaseHostError) Error() string {
	var parts []string
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("url=%s", e.URL))
	}

	prefix := "release host error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("release host error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ReleaseHostError) Is(target error) bool {
	if _, ok := target.(*ReleaseHostError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error is transient and the operation may
// succeed on retry. Sentinel network errors are retryable even when not
// wrapped in a FreighterError.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Registry rejection is terminal even if a retryable error is joined in.
	if errors.Is(err, ErrRegistryRejected) {
		return false
	}
	var fe FreighterError
	if errors.As(err, &fe) && fe.IsRetryable() {
		return true
	}
	return errors.Is(err, ErrTransientNetwork) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to users.
func IsUserFacing(err error) bool {
	var fe FreighterError
	if errors.As(err, &fe) {
		return fe.IsUserFacing()
	}
	return false
}

// SeverityOf returns the severity of the error, defaulting to SeverityError
// for plain errors.
func SeverityOf(err error) Severity {
	var fe FreighterError
	if errors.As(err, &fe) {
		return fe.Severity()
	}
	return SeverityError
}
