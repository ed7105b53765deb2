// Package tui renders a live view of a running batch plan.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette - matches the CLI colors
var (
	ColorPrimary = lipgloss.Color("#7C3AED") // Purple
	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Yellow
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorMuted   = lipgloss.Color("#6B7280") // Gray
	ColorText    = lipgloss.Color("#F3F4F6") // Light gray
)

// BackendColors tints backend names.
var BackendColors = map[string]lipgloss.Color{
	"pacman": lipgloss.Color("#1793D1"), // Arch blue
	"yay":    lipgloss.Color("#1793D1"),
	"paru":   lipgloss.Color("#1793D1"),
	"apt":    lipgloss.Color("#A80030"), // Debian red
	"dnf":    lipgloss.Color("#294172"), // Fedora blue
}

// Styles contains the lipgloss styles used by the view.
type Styles struct {
	Header lipgloss.Style
	Footer lipgloss.Style

	StepID   lipgloss.Style
	Packages lipgloss.Style
	Backend  lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style

	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style

	Spinner lipgloss.Style
}

// DefaultStyles returns the default style configuration
func DefaultStyles() *Styles {
	s := &Styles{}

	s.Header = lipgloss.NewStyle().
		Foreground(ColorText).
		Bold(true).
		MarginBottom(1)

	s.Footer = lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)

	s.StepID = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Width(12)

	s.Packages = lipgloss.NewStyle().
		Foreground(ColorText)

	s.Backend = lipgloss.NewStyle().
		Foreground(ColorMuted)

	s.Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	s.Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	s.Error = lipgloss.NewStyle().Foreground(ColorError)
	s.Muted = lipgloss.NewStyle().Foreground(ColorMuted)

	s.HelpKey = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)

	s.HelpDesc = lipgloss.NewStyle().
		Foreground(ColorMuted)

	s.Spinner = lipgloss.NewStyle().
		Foreground(ColorPrimary)

	return s
}

// BackendStyle returns the style for a backend name.
func (s *Styles) BackendStyle(name string) lipgloss.Style {
	if c, ok := BackendColors[name]; ok {
		return s.Backend.Foreground(c)
	}
	return s.Backend
}
