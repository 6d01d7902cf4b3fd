package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/freighter-dev/freighter/internal/config"
	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/orchestrator"
	"github.com/freighter-dev/freighter/internal/workspace"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted release",
	Long: `Resume continues the active release from its last persisted phase.
Packages that already published are not published again.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
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

	rel, err := orchestrator.Resume(cfg, logger, manager)
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

	fmt.Println(okStyle.Render("release complete"))
	return nil
}
