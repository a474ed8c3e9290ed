package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"luminakraft-launcher/model"
)

// Colorize applies the given ANSI or hex color to the text using lipgloss.
func Colorize(text string, color string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}

// StatusColor maps a lifecycle status onto a terminal color.
func StatusColor(s model.Status) string {
	switch s {
	case model.StatusInstalled:
		return "10" // Green
	case model.StatusOutdated:
		return "11" // Yellow
	case model.StatusError:
		return "9" // Red
	case model.StatusNotInstalled:
		return "8" // Grey
	default:
		return "12" // Blue for anything in flight
	}
}

// RenderStatus pads the status to width before coloring it so columns line up.
func RenderStatus(s model.Status, width int) string {
	return Colorize(fmt.Sprintf("%-*s", width, s), StatusColor(s))
}

var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Header  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	Footer  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	Failure = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
