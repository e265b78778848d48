package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// PanelStyle frames the metrics block.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().Faint(true).Width(18)

	ActiveTabStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	InactiveTabStyle = lipgloss.NewStyle().Faint(true)
)

// FormatReturn formats a ratio as a percentage with an up or down marker.
func FormatReturn(value float64) string {
	str := fmt.Sprintf("%.2f%%", value*100)

	if value > 0 {
		return str + " ▲"
	} else if value < 0 {
		return str + " ▼"
	}

	return str
}
