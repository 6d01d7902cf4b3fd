package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/freighter-dev/freighter/internal/config"
	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/manifest"
	"github.com/freighter-dev/freighter/internal/orchestrator"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

var releaseCmd = &cobra.Command{
	Use:   "release {patch|minor|major|<version>}",
	Short: "Release every package of the workspace",
	Long: `Release clones the workspace into an isolated temp directory, bumps all
package versions together, commits and tags, creates a GitHub release
with installer bundles, and publishes packages to the registry in
dependency order. Progress is persisted; an interrupted release is
resumed with 'freighter resume'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

var (
	releaseDryRun          bool
	releaseNoPush          bool
	releaseNoGitHub        bool
	releaseNoBundles       bool
	releaseKeepTemp        bool
	releaseContinueOnFatal bool
)

func init() {
	rootCmd.AddCommand(releaseCmd)
	releaseCmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "Validate and exercise ordering without pushing or publishing")
	releaseCmd.Flags().BoolVar(&releaseNoPush, "no-push", false, "Commit and tag locally without pushing")
	releaseCmd.Flags().BoolVar(&releaseNoGitHub, "no-github-release", false, "Skip the GitHub release")
	releaseCmd.Flags().BoolVar(&releaseNoBundles, "no-bundles", false, "Skip building and uploading installer bundles")
	releaseCmd.Flags().BoolVar(&releaseKeepTemp, "keep-temp", false, "Keep the isolated workspace after completion")
	releaseCmd.Flags().BoolVar(&releaseContinueOnFatal, "continue-on-fatal", false, "On a fatal package failure, skip its dependents and keep publishing independent packages")
}

// parseBump maps the positional argument to a bump kind. Anything that is
// not a named bump is treated as an explicit version and validated during
// version planning.
func parseBump(arg string) (state.BumpKind, string) {
	switch arg {
	case "patch":
		return state.BumpPatch, ""
	case "minor":
		return state.BumpMinor, ""
	case "major":
		return state.BumpMajor, ""
	default:
		return state.BumpExplicit, arg
	}
}

func runRelease(cmd *cobra.Command, args []string) error {
	bump, explicit := parseBump(args[0])

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Close()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	root, err := manifest.FindWorkspaceRoot(cwd)
	if err != nil {
		return err
	}

	manager, err := workspace.NewManager(cfg.Paths.TempDir)
	if err != nil {
		return err
	}

	rel, err := orchestrator.Start(cfg, logger, manager, orchestrator.StartOptions{
		Source:          root,
		Bump:            bump,
		ExplicitVersion: explicit,
		DryRun:          releaseDryRun,
		Flags: state.Flags{
			NoPush:          releaseNoPush,
			NoGitHubRelease: releaseNoGitHub,
			NoBundles:       releaseNoBundles,
			KeepTemp:        releaseKeepTemp,
			ContinueOnFatal: releaseContinueOnFatal,
		},
	})
	if err != nil {
		return err
	}
	defer rel.Lock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rel.Run(ctx); err != nil {
		if errors.Is(err, errors.ErrCanceled) {
			fmt.Fprintln(os.Stderr, warnStyle.Render("interrupted; run 'freighter resume' to continue"))
		}
		return err
	}

	if releaseDryRun {
		fmt.Println(okStyle.Render("dry run complete; nothing was pushed or published"))
	} else {
		fmt.Println(okStyle.Render("release complete"))
	}
	return nil
}
