// Package notifytext renders notify.Notification values as styled
// terminal lines, for the CLI adapter's use of the Notification Surface.
// The palette and render functions are adapted from the teacher's
// transfer-toast styles, repurposed from file-transfer progress to
// room events.
package notifytext

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/coremeet/roomclient/internal/notify"
)

// Color palette.
var (
	Primary = lipgloss.Color("#22d3ee")
	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	MutedColor = lipgloss.Color("#6B7280")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(Warning)
	errorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(Primary)
	mutedStyle   = lipgloss.NewStyle().Foreground(MutedColor)
)

const bell = "\a"

// Render formats n as a single styled line, ready to be printed.
func Render(n notify.Notification) string {
	icon, style := iconAndStyle(n.Category)
	line := fmt.Sprintf("%s %s", style.Render(icon), style.Render(n.Text))
	if n.Sound {
		line += bell
	}
	return line
}

func iconAndStyle(c notify.Category) (string, lipgloss.Style) {
	switch c {
	case notify.CategorySuccess:
		return "✓", successStyle
	case notify.CategoryWarning:
		return "⚠", warningStyle
	case notify.CategoryError:
		return "✗", errorStyle
	default:
		return "ℹ", infoStyle
	}
}

// Muted renders s in the muted/secondary style, used for status-line
// decoration outside the notification stream itself.
func Muted(s string) string {
	return mutedStyle.Render(s)
}
