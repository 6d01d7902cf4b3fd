package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active release status",
	Long: `Display the phase and per-package status of the active release.
With --watch the view refreshes whenever the release state changes.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var (
	statusWatch  bool
	statusFormat string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Refresh when the release state changes")
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "Output format: text or yaml")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusFormat != "text" && statusFormat != "yaml" {
		return fmt.Errorf("unknown format %q (supported: text, yaml)", statusFormat)
	}

	manager, err := workspace.NewManager("")
	if err != nil {
		return err
	}
	ws, err := manager.Locate()
	if err != nil {
		if errors.Is(err, errors.ErrWorkspaceAbsent) {
			fmt.Println("No active release")
			return nil
		}
		return err
	}

	if err := printStatus(ws); err != nil {
		return err
	}
	if !statusWatch {
		return nil
	}
	return watchStatus(cmd, ws)
}

// watchStatus re-renders on every change to the state file. The watch is
// on the directory: the store writes via rename, which replaces the file.
func watchStatus(cmd *cobra.Command, ws *workspace.Workspace) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(state.StateDir(ws.Path)); err != nil {
		return fmt.Errorf("failed to watch state directory: %w", err)
	}

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != state.StatePath(ws.Path) {
				continue
			}
			// Collapse bursts: rename arrives as create+rename pairs.
			time.Sleep(50 * time.Millisecond)
			fmt.Println()
			if err := printStatus(ws); err != nil {
				if errors.Is(err, errors.ErrStateNotFound) {
					fmt.Println("Release finished; state removed")
					return nil
				}
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func printStatus(ws *workspace.Workspace) error {
	st, err := state.Load(ws.Path)
	if err != nil {
		return err
	}
	if statusFormat == "yaml" {
		return printStatusYAML(st)
	}
	printStatusText(ws, st)
	return nil
}

func printStatusText(ws *workspace.Workspace, st *state.ReleaseState) {
	fmt.Println(headerStyle.Render("Release " + st.ReleaseID))
	fmt.Printf("Phase:     %s\n", st.CurrentPhase)
	fmt.Printf("Bump:      %s\n", st.BumpKind)
	if st.TagName != "" {
		fmt.Printf("Tag:       %s\n", st.TagName)
	}
	fmt.Printf("Source:    %s @ %s\n", st.SourcePath, shortCommit(st.SourceCommit))
	fmt.Printf("Workspace: %s\n", ws.Path)
	fmt.Printf("Started:   %s\n", humanize.Time(st.CreatedAt))
	fmt.Printf("Updated:   %s\n", humanize.Time(st.UpdatedAt))
	if st.DryRun {
		fmt.Println(warnStyle.Render("Dry run"))
	}
	if st.FailureReason != "" {
		fmt.Println(errorStyle.Render("Failure: ") + st.FailureReason)
	}

	fmt.Println()
	names := make([]string, 0, len(st.Packages))
	for name := range st.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ps := st.Packages[name]
		line := fmt.Sprintf("  %-20s %s",
			packageStyle.Render(name),
			statusStyle(ps.Status).Render(string(ps.Status)))
		if n := st.Retries[name]; n > 1 {
			line += dimStyle.Render(fmt.Sprintf("  attempts=%d", n))
		}
		if ps.Reason != "" {
			line += dimStyle.Render("  " + ps.Reason)
		}
		fmt.Println(line)
	}
}

// statusDocument is the stable yaml shape for scripting.
type statusDocument struct {
	ReleaseID string                   `yaml:"release_id"`
	Phase     string                   `yaml:"phase"`
	Bump      string                   `yaml:"bump"`
	Tag       string                   `yaml:"tag,omitempty"`
	DryRun    bool                     `yaml:"dry_run"`
	CreatedAt time.Time                `yaml:"created_at"`
	UpdatedAt time.Time                `yaml:"updated_at"`
	Failure   string                   `yaml:"failure,omitempty"`
	Packages  map[string]packageStatus `yaml:"packages"`
}

type packageStatus struct {
	Status   string `yaml:"status"`
	Version  string `yaml:"version,omitempty"`
	Attempts int    `yaml:"attempts,omitempty"`
	Reason   string `yaml:"reason,omitempty"`
}

func printStatusYAML(st *state.ReleaseState) error {
	doc := statusDocument{
		ReleaseID: st.ReleaseID,
		Phase:     string(st.CurrentPhase),
		Bump:      string(st.BumpKind),
		Tag:       st.TagName,
		DryRun:    st.DryRun,
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
		Failure:   st.FailureReason,
		Packages:  make(map[string]packageStatus, len(st.Packages)),
	}
	for name, ps := range st.Packages {
		doc.Packages[name] = packageStatus{
			Status:   string(ps.Status),
			Version:  ps.NewVersion,
			Attempts: st.Retries[name],
			Reason:   ps.Reason,
		}
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
