package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

var (
	// Colors
	Primary   = lipgloss.Color("63")  // Purple/blue
	Secondary = lipgloss.Color("86")  // Cyan
	Accent    = lipgloss.Color("205") // Pink
	Success   = lipgloss.Color("78")  // Green
	Warning   = lipgloss.Color("214") // Orange
	Error     = lipgloss.Color("196") // Red
	Subtle    = lipgloss.Color("241") // Gray
	Surface   = lipgloss.Color("236") // Dark gray
	Text      = lipgloss.Color("252") // Light gray
	TextDim   = lipgloss.Color("245") // Dimmer text

	// Key hints
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextDim)

	StatusBarKeyStyle = lipgloss.NewStyle().
				Foreground(Text).
				Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	// Status lines
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)

	// General
	BoldStyle   = lipgloss.NewStyle().Bold(true)
	DimStyle    = lipgloss.NewStyle().Foreground(TextDim)
	AccentStyle = lipgloss.NewStyle().Foreground(Accent)
	CodeStyle   = lipgloss.NewStyle().Foreground(Secondary)
)

// ColorEnabled reports whether output to f should be coloured. NO_COLOR
// and noColor both turn colour off, as does a non-terminal f.
func ColorEnabled(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetColor switches the default lipgloss renderer between the terminal's
// own colour profile and plain ASCII.
func SetColor(enabled bool) {
	if enabled {
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}
