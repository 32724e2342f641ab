// Package style provides shared UI styling primitives including brand colors
// and icons for consistent visual presentation across the CLI.
package style

import "github.com/charmbracelet/lipgloss"

// Brand Colors.
var (
	Steppe = lipgloss.Color("#C2883A")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	Sky    = lipgloss.Color("#3B82F6")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Dot     = "●"
	Circle  = "○"
	Arrow   = "→"
	Blocked = "⊘"
)

// Text styles shared by the list and plan commands.
var (
	Name  = lipgloss.NewStyle().Bold(true).Foreground(Steppe)
	Muted = lipgloss.NewStyle().Foreground(Slate)
)
