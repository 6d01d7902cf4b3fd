package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover release data",
	Long: `Cleanup removes the isolated workspace, lock file, state file, and the
workspace pointer of a crashed or abandoned release. It refuses to touch
a release whose process is still alive.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	manager, err := workspace.NewManager("")
	if err != nil {
		return err
	}

	ws, err := manager.Locate()
	if err != nil {
		if errors.Is(err, errors.ErrWorkspaceAbsent) {
			fmt.Println("Nothing to clean up")
			return nil
		}
		if errors.Is(err, errors.ErrWorkspaceLost) {
			// The directory is gone; only the pointer needs removing.
			if err := os.Remove(manager.PointerPath()); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Println(okStyle.Render("removed stale workspace pointer"))
			return nil
		}
		return err
	}

	// Refuse while the owning process is alive.
	if lock, err := state.ReadLock(state.LockPath(ws.Path)); err == nil && lock != nil {
		if _, lockErr := state.AcquireLock(ws.Path, "cleanup", nil); lockErr != nil {
			return lockErr
		}
	}

	if err := state.ClearLock(ws.Path); err != nil {
		return err
	}
	if st, err := state.Load(ws.Path); err == nil {
		fmt.Printf("Removing release %s (phase %s)\n", st.ReleaseID, st.CurrentPhase)
	}
	if store, err := state.Open(ws.Path); err == nil {
		if err := store.Destroy(); err != nil {
			return err
		}
	}
	if err := manager.Release(ws, false); err != nil {
		return err
	}

	fmt.Println(okStyle.Render("cleanup complete"))
	return nil
}
