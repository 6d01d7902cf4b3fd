package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freighter-dev/freighter/internal/config"
	"github.com/freighter-dev/freighter/internal/github"
	"github.com/freighter-dev/freighter/internal/gitops"
	"github.com/freighter-dev/freighter/internal/rollback"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Undo the active release",
	Long: `Rollback reverses the completed phases of the active release: the GitHub
release is deleted, the tag is removed locally and remotely, and the
version-bump commit is reverted. Packages that already reached the
registry cannot be unpublished and are reported instead.`,
	Args: cobra.NoArgs,
	RunE: runRollback,
}

var rollbackForce bool

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().BoolVarP(&rollbackForce, "force", "f", false, "Roll back even a completed release")
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Close()

	manager, err := workspace.NewManager(cfg.Paths.TempDir)
	if err != nil {
		return err
	}
	ws, err := manager.Locate()
	if err != nil {
		return err
	}
	store, err := state.Open(ws.Path)
	if err != nil {
		return err
	}

	lock, err := state.AcquireLock(ws.Path, store.State().ReleaseID, logger)
	if err != nil {
		return err
	}
	defer lock.Release()

	deps := rollback.Deps{
		Logger:    logger,
		Store:     store,
		Manager:   manager,
		Workspace: ws,
		Git:       gitops.New(ws.Path),
	}
	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		deps.Host = github.NewClient(cfg.GitHub.Owner, cfg.GitHub.Repo)
	}

	report, err := rollback.New(deps).Rollback(cmd.Context(), rollbackForce)
	if err != nil {
		return err
	}

	fmt.Println(okStyle.Render("rollback complete"))
	if len(report.NotUnpublished) > 0 {
		fmt.Println(warnStyle.Render("already on the registry (cannot be unpublished):"))
		for _, name := range report.NotUnpublished {
			fmt.Printf("  %s\n", packageStyle.Render(name))
		}
	}
	if len(report.Issues) > 0 {
		fmt.Println(warnStyle.Render("manual follow-up needed:"))
		for _, issue := range report.Issues {
			fmt.Printf("  %s\n", issue)
		}
	}
	return nil
}
