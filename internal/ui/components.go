package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Panel renders a rounded-border box with title embedded in the top border.
// width is the total outer width.
func Panel(title, content string, width int) string {
	colorStyle := lipgloss.NewStyle().Foreground(Subtle)

	// ╭─ TITLE ─...─╮  total = width
	// 3 (╭─ ) + len(title) + 1 ( ) + dashCount + 1 (╮) = width
	dashCount := width - lipgloss.Width(title) - 5
	if dashCount < 0 {
		dashCount = 0
	}

	topBorder := colorStyle.Render("╭─ ") + TitleStyle.Render(title) + colorStyle.Render(" "+strings.Repeat("─", dashCount)+"╮")

	// Inner content width: width minus 2 border chars and 2 padding chars
	innerWidth := width - 4
	if innerWidth < 0 {
		innerWidth = 0
	}

	body := lipgloss.NewStyle().
		Width(innerWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderLeft(true).
		BorderRight(true).
		BorderBottom(true).
		BorderTop(false).
		BorderForeground(Subtle).
		PaddingLeft(1).
		PaddingRight(1).
		Render(content)
	return topBorder + "\n" + body
}

// Title renders a styled heading.
func Title(text string) string {
	return TitleStyle.Render(text)
}

// StatusKey renders a key hint.
func StatusKey(k, desc string) string {
	return StatusBarKeyStyle.Render(k) + StatusBarStyle.Render(":"+desc)
}

// Badge renders a small colored badge.
func Badge(text string, color lipgloss.Color) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("230")).
		Background(color).
		Padding(0, 1).
		Render(text)
}

func SuccessBadge(text string) string { return Badge(text, Success) }
func WarningBadge(text string) string { return Badge(text, Warning) }
func ErrorBadge(text string) string   { return Badge(text, Error) }

// OK, Warn, Fail and Info render one status line with a leading glyph.
func OK(msg string) string   { return SuccessStyle.Render("✓") + " " + msg }
func Warn(msg string) string { return WarningStyle.Render("!") + " " + msg }
func Fail(msg string) string { return ErrorStyle.Render("✗") + " " + msg }
func Info(msg string) string { return DimStyle.Render("•") + " " + msg }
