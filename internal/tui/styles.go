package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// HeaderStyle styles table header rows
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	// TitleStyle styles section titles
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))

	// FaintStyle styles secondary text such as log lines
	FaintStyle = lipgloss.NewStyle().Faint(true)

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		"installed": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"completed": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		// Active states
		"checking":    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"installing":  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"downloading": lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"queued":      lipgloss.NewStyle().Foreground(lipgloss.Color("6")),

		// Warning
		"not_installed": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"cancelled":     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		// Error
		"failed": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		// Pending
		"unknown": lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the style for a tool or download status. A failure
// reason after a colon is ignored for the lookup.
func StatusStyle(status string) lipgloss.Style {
	key, _, _ := strings.Cut(strings.TrimSpace(status), ":")
	if s, ok := statusStyles[key]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

// RenderStatus pads status to width and colours it
func RenderStatus(status string, width int) string {
	return StatusStyle(status).Render(Pad(status, width))
}

// Pad right-pads s with spaces to width
func Pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// NonEmptyOrDash returns "-" for empty or whitespace strings
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis truncates a string and adds "..." if it exceeds max length
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
