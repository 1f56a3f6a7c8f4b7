// Package style provides shared UI styling primitives including colors and
// icons for consistent presentation across the CLI.
package style

import "github.com/charmbracelet/lipgloss"

// Colors.
var (
	Teal   = lipgloss.Color("#14B8A6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Dot     = "●"
	Arrow   = "→"
)

// Key renders a configuration key.
var Key = lipgloss.NewStyle().Foreground(Teal).Bold(true)

// Muted renders secondary information such as file paths.
var Muted = lipgloss.NewStyle().Foreground(Slate)
