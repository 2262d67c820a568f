package tui

import (
	"github.com/charmbracelet/lipgloss"

	"ethwallet/pkg/models"
)

const (
	colorAccent  = lipgloss.Color("#7D56F4")
	colorBorder  = lipgloss.Color("#874BFD")
	colorText    = lipgloss.Color("#FAFAFA")
	colorOK      = lipgloss.Color("#04B575")
	colorWarn    = lipgloss.Color("#FFA500")
	colorErr     = lipgloss.Color("#FF0000")
	colorMuted   = lipgloss.Color("241")
	colorHighlit = lipgloss.Color("205")
)

var (
	subtleStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	titleStyle       = lipgloss.NewStyle().Foreground(colorText).Background(colorAccent).Padding(0, 1).Bold(true)
	infoStyle        = lipgloss.NewStyle().Foreground(colorOK)
	warnStyle        = lipgloss.NewStyle().Foreground(colorWarn)
	errStyle         = lipgloss.NewStyle().Foreground(colorErr)
	boxStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
	secretStyle      = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(colorWarn).Padding(1, 2).Bold(true)
	selectedStyle    = lipgloss.NewStyle().Foreground(colorHighlit).Bold(true)
	tableHeaderStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true).Padding(0, 1)
)

// statusStyle colours a detection outcome message.
func statusStyle(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusOK:
		return infoStyle
	case models.StatusRateLimited:
		return warnStyle
	case models.StatusError:
		return errStyle
	default:
		return subtleStyle
	}
}
