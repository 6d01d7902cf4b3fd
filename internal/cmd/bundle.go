package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/freighter-dev/freighter/internal/bundler"
	"github.com/freighter-dev/freighter/internal/config"
	"github.com/freighter-dev/freighter/internal/github"
	"github.com/freighter-dev/freighter/internal/manifest"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Build installer bundles",
	Long: `Bundle builds platform installer bundles for the workspace outside of a
release, for local testing or to backfill artifacts. With --upload the
artifacts are attached to the active release's GitHub release.`,
	Args: cobra.NoArgs,
	RunE: runBundle,
}

var (
	bundlePlatform string
	bundleTarget   string
	bundleUpload   bool
	bundleNoBuild  bool
)

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.Flags().StringVarP(&bundlePlatform, "platform", "p", "", "Bundle platform (deb, rpm, appimage, app, dmg, msi, nsis)")
	bundleCmd.Flags().StringVar(&bundleTarget, "target", "", "Target triple passed to the bundle tool")
	bundleCmd.Flags().BoolVar(&bundleUpload, "upload", false, "Upload artifacts to the active release")
	bundleCmd.Flags().BoolVar(&bundleNoBuild, "no-build", false, "Use artifacts already on disk instead of building")
	_ = bundleCmd.MarkFlagRequired("platform")
}

func runBundle(cmd *cobra.Command, args []string) error {
	platform, err := bundler.ParsePlatform(bundlePlatform)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	root, err := manifest.FindWorkspaceRoot(cwd)
	if err != nil {
		return err
	}

	builder := bundler.NewBuilder(root, cfg.Bundle.Command, cfg.Bundle.Args)
	var artifacts []string
	if bundleNoBuild {
		artifacts, err = builder.Artifacts(platform, bundleTarget)
		if err == nil && len(artifacts) == 0 {
			err = fmt.Errorf("no %s artifacts found; run without --no-build first", platform)
		}
	} else {
		artifacts, err = builder.Build(cmd.Context(), platform, bundleTarget)
	}
	if err != nil {
		return err
	}
	label := "built "
	if bundleNoBuild {
		label = "found "
	}
	for _, artifact := range artifacts {
		fmt.Println(okStyle.Render(label) + artifact)
	}

	if !bundleUpload {
		return nil
	}
	return uploadArtifacts(cmd, cfg, artifacts)
}

// uploadArtifacts attaches artifacts to the active release's GitHub
// release. Requires an active release that already created one.
func uploadArtifacts(cmd *cobra.Command, cfg *config.Config, artifacts []string) error {
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		return fmt.Errorf("github.owner and github.repo must be configured to upload")
	}

	manager, err := workspace.NewManager(cfg.Paths.TempDir)
	if err != nil {
		return err
	}
	ws, err := manager.Locate()
	if err != nil {
		return err
	}
	st, err := state.Load(ws.Path)
	if err != nil {
		return err
	}
	if st.GitHubReleaseID == 0 {
		return fmt.Errorf("release %s has no GitHub release yet", st.ReleaseID)
	}

	host := github.NewClient(cfg.GitHub.Owner, cfg.GitHub.Repo)
	for _, artifact := range artifacts {
		if err := host.UploadArtifact(cmd.Context(), st.GitHubReleaseID, artifact); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("uploaded ") + artifact)
	}
	return nil
}
