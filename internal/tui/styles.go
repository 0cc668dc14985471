package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selfStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	peerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5A9BF6"))
	fileStyle  = lipgloss.NewStyle().Underline(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 2)
)

func statusStyle(connected bool) lipgloss.Style {
	if connected {
		return okStyle
	}
	return errorStyle
}
