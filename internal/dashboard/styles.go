package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/powerroam/powerroam/internal/ui"
)

var (
	// PendingStyle colors the spinner shown for fields not reported yet.
	PendingStyle = lipgloss.NewStyle().
			Foreground(ui.WarningColor)

	StatusLiveStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor).
			Bold(true)

	StatusWaitingStyle = lipgloss.NewStyle().
				Foreground(ui.WarningColor).
				Bold(true)

	StatusEndedStyle = lipgloss.NewStyle().
				Foreground(ui.ErrorColor).
				Bold(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true).
			PaddingLeft(2)

	HelpStyle = lipgloss.NewStyle().
			Padding(1, 2, 0, 2)
)
