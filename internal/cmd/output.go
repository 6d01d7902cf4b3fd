package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/state"
	"github.com/freighter-dev/freighter/internal/workspace"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	packageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// statusStyle picks a display style for a package status.
func statusStyle(s state.PackageStatus) lipgloss.Style {
	switch s {
	case state.StatusPublished:
		return okStyle
	case state.StatusFailed:
		return errorStyle
	case state.StatusSkipped, state.StatusInProgress:
		return warnStyle
	default:
		return dimStyle
	}
}

// renderError formats a fatal error with the release snapshot and a
// remediation hint when a release is on disk.
func renderError(err error) string {
	var sb strings.Builder
	sb.WriteString(errorStyle.Render("error: ") + err.Error())

	st := loadActiveState()
	if st != nil {
		sb.WriteString("\n\n")
		sb.WriteString(headerStyle.Render(fmt.Sprintf("Release %s", st.ReleaseID)))
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  phase=%s", st.CurrentPhase)))
		sb.WriteString("\n")
		sb.WriteString(renderPackageSnapshot(st))
		sb.WriteString("\n" + remediationHint(st, err))
	}
	return sb.String()
}

// renderPackageSnapshot prints one line per package, sorted by name.
func renderPackageSnapshot(st *state.ReleaseState) string {
	names := make([]string, 0, len(st.Packages))
	for name := range st.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		ps := st.Packages[name]
		line := fmt.Sprintf("  %s %s",
			packageStyle.Render(name),
			statusStyle(ps.Status).Render(string(ps.Status)))
		if ps.Reason != "" {
			line += dimStyle.Render("  " + ps.Reason)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// remediationHint tells the operator what to run next.
func remediationHint(st *state.ReleaseState, err error) string {
	switch {
	case errors.Is(err, errors.ErrAlreadyInProgress):
		return "Another release holds the lock. Wait for it, or run 'freighter cleanup' if it crashed."
	case errors.Is(err, errors.ErrStateCorrupted):
		return "The release state is unreadable. Inspect it by hand before running 'freighter cleanup'."
	case st.CurrentPhase == state.PhaseFailed:
		return "Run 'freighter rollback' to undo this release, then fix the cause and release again."
	case st.CurrentPhase.Terminal():
		return "Run 'freighter cleanup' to remove leftover release data."
	default:
		return "Run 'freighter resume' to continue, or 'freighter rollback' to undo this release."
	}
}

// loadActiveState reads the active release state, returning nil when no
// release is on disk or it cannot be read.
func loadActiveState() *state.ReleaseState {
	manager, err := workspace.NewManager("")
	if err != nil {
		return nil
	}
	ws, err := manager.Locate()
	if err != nil {
		return nil
	}
	st, err := state.Load(ws.Path)
	if err != nil {
		return nil
	}
	return st
}
