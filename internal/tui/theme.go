package tui

import "github.com/charmbracelet/lipgloss"

// State colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorDisconnected = lipgloss.Color("#dc2626")
	ColorRecording    = lipgloss.Color("#dc2626")
	ColorProcessing   = lipgloss.Color("#2563eb")
	ColorIdle         = lipgloss.Color("#4b5563")
)

// UI chrome colors.
var (
	ColorBorder = lipgloss.Color("#4b5563")
	ColorDimmed = lipgloss.Color("#6b7280")
	ColorBright = lipgloss.Color("#f9fafb")
	ColorAccent = lipgloss.Color("#a855f7")
	ColorDanger = lipgloss.Color("#dc2626")
)

// Reusable styles.
var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleTranscript = lipgloss.NewStyle().
			Foreground(ColorBright).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleDishName = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)
)

// ConnColor returns the color for a connection state label.
func ConnColor(state string) lipgloss.Color {
	switch state {
	case "connected":
		return ColorConnected
	case "connecting":
		return ColorConnecting
	default:
		return ColorDisconnected
	}
}

// RecGlyph returns a glyph for a recording state label.
func RecGlyph(state string) string {
	switch state {
	case "recording":
		return "●"
	case "processing":
		return "◌"
	default:
		return "○"
	}
}

// RecColor returns the color for a recording state label.
func RecColor(state string) lipgloss.Color {
	switch state {
	case "recording":
		return ColorRecording
	case "processing":
		return ColorProcessing
	default:
		return ColorIdle
	}
}
