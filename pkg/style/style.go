// Package style renders engine results for the terminal. Engines emit
// plain structured data; all coloring lives here, gated on whether
// stdout is actually a terminal so piped output stays clean.
package style

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/arthur-debert/dotkeep/pkg/snapshot"
	"github.com/arthur-debert/dotkeep/pkg/writer"
)

// Styles for outcome lines
var (
	SuccessStyle = pterm.NewStyle(pterm.FgGreen)
	MutedStyle   = pterm.NewStyle(pterm.FgGray)
	WarnStyle    = pterm.NewStyle(pterm.FgYellow)
	ErrorStyle   = pterm.NewStyle(pterm.FgRed)
	TitleStyle   = pterm.NewStyle(pterm.Bold)
)

// isTTY reports whether stdout is an interactive terminal.
func isTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// paint applies a style only when stdout is a terminal.
func paint(style *pterm.Style, s string) string {
	if !isTTY() {
		return s
	}
	return style.Sprint(s)
}

// Bold renders s bold on terminals.
func Bold(s string) string {
	return paint(TitleStyle, s)
}

// actionStyle maps writer actions to display styles.
func actionStyle(action writer.Action) *pterm.Style {
	switch action {
	case writer.ActionCreate, writer.ActionRelink:
		return SuccessStyle
	case writer.ActionNone:
		return MutedStyle
	case writer.ActionBackupReplace:
		return WarnStyle
	case writer.ActionSkip:
		return ErrorStyle
	default:
		return MutedStyle
	}
}

// RenderOutcome renders one writer outcome as an aligned status line.
func RenderOutcome(out writer.Outcome) string {
	label := fmt.Sprintf("%-18s", out.Action.String())
	line := fmt.Sprintf("  [%s] %s", paint(actionStyle(out.Action), label), out.Target)
	if out.BackupPath != "" {
		line += paint(MutedStyle, fmt.Sprintf(" (backup: %s)", out.BackupPath))
	}
	return line
}

// statusStyle maps snapshot file statuses to display styles.
func statusStyle(status snapshot.FileStatus) *pterm.Style {
	switch status {
	case snapshot.StatusSnapshotted:
		return SuccessStyle
	case snapshot.StatusUnchanged:
		return MutedStyle
	case snapshot.StatusMissing:
		return WarnStyle
	case snapshot.StatusFailed:
		return ErrorStyle
	default:
		return MutedStyle
	}
}

// RenderFileResult renders one snapshot batch entry.
func RenderFileResult(fr snapshot.FileResult) string {
	label := fmt.Sprintf("%-12s", fr.Status.String())
	line := fmt.Sprintf("  [%s] %s", paint(statusStyle(fr.Status), label), fr.FilePath)
	if fr.Err != nil {
		line += paint(ErrorStyle, fmt.Sprintf(" (%v)", fr.Err))
	}
	return line
}

// RenderDiff colors a unified diff line by line: additions green,
// removals red, hunk headers cyan.
func RenderDiff(diffText string) string {
	if !isTTY() {
		return diffText
	}

	lines := strings.Split(diffText, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = TitleStyle.Sprint(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = pterm.NewStyle(pterm.FgCyan).Sprint(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = SuccessStyle.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = ErrorStyle.Sprint(line)
		}
	}
	return strings.Join(lines, "\n")
}

// DryRunNote is the standard trailer for dry-run output.
func DryRunNote() string {
	return paint(WarnStyle, "[dry-run]") + " No changes made"
}
