// Package bundler builds platform installer bundles for a release and
// locates the produced artifacts so they can be uploaded as release
// assets. Apple platforms additionally require signing and notarization
// credentials from the environment.
package bundler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/freighter-dev/freighter/internal/errors"
)

// Platform identifies one installer bundle format.
type Platform string

// The closed set of supported bundle platforms.
const (
	PlatformDeb      Platform = "deb"
	PlatformRPM      Platform = "rpm"
	PlatformAppImage Platform = "appimage"
	PlatformApp      Platform = "app"
	PlatformDMG      Platform = "dmg"
	PlatformMSI      Platform = "msi"
	PlatformNSIS     Platform = "nsis"
)

// Platforms returns all supported platforms in stable order.
func Platforms() []Platform {
	return []Platform{
		PlatformDeb, PlatformRPM, PlatformAppImage,
		PlatformApp, PlatformDMG, PlatformMSI, PlatformNSIS,
	}
}

// ParsePlatform validates a user-supplied platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown bundle platform %q (supported: %s)", s, joinPlatforms())
}

func joinPlatforms() string {
	names := make([]string, 0, len(Platforms()))
	for _, p := range Platforms() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// artifactExtensions maps each platform to the file extensions its bundles
// carry on disk.
var artifactExtensions = map[Platform][]string{
	PlatformDeb:      {".deb"},
	PlatformRPM:      {".rpm"},
	PlatformAppImage: {".AppImage", ".appimage"},
	PlatformApp:      {".app.tar.gz", ".app.zip"},
	PlatformDMG:      {".dmg"},
	PlatformMSI:      {".msi"},
	PlatformNSIS:     {".exe"},
}

// RequiresSigning reports whether the platform needs Apple code signing
// and notarization credentials.
func RequiresSigning(p Platform) bool {
	return p == PlatformApp || p == PlatformDMG
}

// Signing and notarization environment variables.
const (
	EnvSignCert     = "FREIGHTER_SIGN_CERT"
	EnvSignPassword = "FREIGHTER_SIGN_PASSWORD"
	EnvSignTeamID   = "FREIGHTER_SIGN_TEAM_ID"
	EnvNotaryKey    = "FREIGHTER_NOTARY_KEY"
	EnvNotaryKeyID  = "FREIGHTER_NOTARY_KEY_ID"
	EnvNotaryIssuer = "FREIGHTER_NOTARY_ISSUER"
)

// CheckCredentials verifies that the environment carries everything the
// platform needs. Platforms without signing always pass.
func CheckCredentials(p Platform) error {
	if !RequiresSigning(p) {
		return nil
	}
	var missing []string
	for _, env := range []string{
		EnvSignCert, EnvSignPassword, EnvSignTeamID,
		EnvNotaryKey, EnvNotaryKeyID, EnvNotaryIssuer,
	} {
		if os.Getenv(env) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return errors.Join(errors.ErrCredentialMissing,
			fmt.Errorf("platform %s requires signing credentials: %s unset",
				p, strings.Join(missing, ", ")))
	}
	return nil
}

// CommandExecutor abstracts command execution for testability.
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

// Builder runs the bundle tool inside the workspace and resolves the
// artifacts it produced.
type Builder struct {
	workspace string
	command   string
	args      []string
	executor  CommandExecutor
}

// NewBuilder creates a builder running the given command in the workspace
// (e.g. "cargo", ["bundle", "--release"]).
func NewBuilder(workspace, command string, args []string) *Builder {
	return &Builder{workspace: workspace, command: command, args: args, executor: &CLICommandExecutor{}}
}

// NewBuilderWithExecutor creates a builder with a custom executor.
// This is primarily useful for testing.
func NewBuilderWithExecutor(workspace, command string, args []string, executor CommandExecutor) *Builder {
	return &Builder{workspace: workspace, command: command, args: args, executor: executor}
}

// Build produces bundles for the platform and returns the artifact paths.
// targetTriple is optional; when set it is passed through to the tool and
// narrows the artifact search to that target's output directory.
func (b *Builder) Build(ctx context.Context, platform Platform, targetTriple string) ([]string, error) {
	if err := CheckCredentials(platform); err != nil {
		return nil, err
	}

	args := append([]string(nil), b.args...)
	args = append(args, "--format", string(platform))
	if targetTriple != "" {
		args = append(args, "--target", targetTriple)
	}

	output, err := b.executor.Run(ctx, b.workspace, b.command, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Join(errors.ErrCanceled, ctx.Err())
		}
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("bundle build for %s failed: %s", platform, msg)
	}

	artifacts, err := b.findArtifacts(platform, targetTriple)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("bundle build for %s produced no artifacts under %s",
			platform, b.bundleDir(targetTriple))
	}
	return artifacts, nil
}

// Artifacts returns the artifacts already on disk for the platform
// without running the bundle tool.
func (b *Builder) Artifacts(platform Platform, targetTriple string) ([]string, error) {
	return b.findArtifacts(platform, targetTriple)
}

// bundleDir is where the bundle tool drops its output.
func (b *Builder) bundleDir(targetTriple string) string {
	if targetTriple != "" {
		return filepath.Join(b.workspace, "target", targetTriple, "release", "bundle")
	}
	return filepath.Join(b.workspace, "target", "release", "bundle")
}

// findArtifacts walks the bundle output directory for files matching the
// platform's extensions.
func (b *Builder) findArtifacts(platform Platform, targetTriple string) ([]string, error) {
	root := b.bundleDir(targetTriple)
	exts := artifactExtensions[platform]

	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, ext := range exts {
			if strings.HasSuffix(path, ext) {
				found = append(found, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning bundle output: %w", err)
	}
	sort.Strings(found)
	return found, nil
}
