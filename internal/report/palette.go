package report

import "github.com/charmbracelet/lipgloss"

// Terminal colors for the report table.
var (
	Cyan    = lipgloss.Color("#00E5FF")
	Magenta = lipgloss.Color("#FF1B6B")
	Yellow  = lipgloss.Color("#FFB500")
	Green   = lipgloss.Color("#2AFFAA") // gains
	Red     = lipgloss.Color("#FF5555") // losses

	Muted = lipgloss.Color("#6C7280")
	Text  = lipgloss.Color("#ECEFF4")
)

// Palette groups the colors used when rendering a report.
type Palette struct {
	Header   lipgloss.Color
	Text     lipgloss.Color
	Border   lipgloss.Color
	Gain     lipgloss.Color
	Loss     lipgloss.Color
	Degraded lipgloss.Color
	Title    lipgloss.Color
}

// DefaultPalette returns the default report palette.
func DefaultPalette() Palette {
	return Palette{
		Header:   Magenta,
		Text:     Text,
		Border:   Muted,
		Gain:     Green,
		Loss:     Red,
		Degraded: Yellow,
		Title:    Cyan,
	}
}
