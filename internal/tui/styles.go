package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("#7aa2f7")
	textColor    = lipgloss.Color("#e0e0e0")
	mutedColor   = lipgloss.Color("#6c6c6c")
	successColor = lipgloss.Color("#73daca")
	warningColor = lipgloss.Color("#e0af68")
	errorColor   = lipgloss.Color("#f7768e")

	titleStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle = lipgloss.NewStyle().Foreground(textColor)

	okStyle   = lipgloss.NewStyle().Foreground(successColor)
	warnStyle = lipgloss.NewStyle().Foreground(warningColor)
	errStyle  = lipgloss.NewStyle().Foreground(errorColor)

	helpStyle = lipgloss.NewStyle().Foreground(mutedColor).Padding(1, 1, 0, 1)
)
