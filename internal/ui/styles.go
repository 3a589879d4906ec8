package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	darkmode "github.com/thiagokokada/dark-mode-go"
)

// Palette is the set of colors a theme renders with.
type Palette struct {
	Bg      lipgloss.Color
	Surface lipgloss.Color
	Border  lipgloss.Color
	Text    lipgloss.Color
	Comment lipgloss.Color
	Accent  lipgloss.Color
	Green   lipgloss.Color
	Yellow  lipgloss.Color
	Red     lipgloss.Color
	Cyan    lipgloss.Color
}

// Tokyo Night
var darkPalette = Palette{
	Bg:      "#1a1b26",
	Surface: "#24283b",
	Border:  "#3b4261",
	Text:    "#c0caf5",
	Comment: "#787fa0",
	Accent:  "#ff9e64",
	Green:   "#9ece6a",
	Yellow:  "#e0af68",
	Red:     "#f7768e",
	Cyan:    "#7dcfff",
}

// Tokyo Night Day
var lightPalette = Palette{
	Bg:      "#e1e2e7",
	Surface: "#d5d6db",
	Border:  "#a8aecb",
	Text:    "#3760bf",
	Comment: "#6172b0",
	Accent:  "#b15c00",
	Green:   "#587539",
	Yellow:  "#8c6c3e",
	Red:     "#f52a65",
	Cyan:    "#007197",
}

// Styles holds the rendered styles for one palette.
type Styles struct {
	Palette Palette

	Title     lipgloss.Style
	Dim       lipgloss.Style
	TabActive lipgloss.Style
	Tab       lipgloss.Style
	Selected  lipgloss.Style
	Branch    lipgloss.Style
	Tag       lipgloss.Style
	Default   lipgloss.Style
	Error     lipgloss.Style
	Panel     lipgloss.Style
	HelpBar   lipgloss.Style
	Key       lipgloss.Style
	User      lipgloss.Style
	Agent     lipgloss.Style
	Pending   lipgloss.Style
}

// NewStyles builds Styles over p.
func NewStyles(p Palette) Styles {
	return Styles{
		Palette:   p,
		Title:     lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		Dim:       lipgloss.NewStyle().Foreground(p.Comment),
		TabActive: lipgloss.NewStyle().Foreground(p.Bg).Background(p.Accent).Bold(true).Padding(0, 1),
		Tab:       lipgloss.NewStyle().Foreground(p.Comment).Padding(0, 1),
		Selected:  lipgloss.NewStyle().Foreground(p.Bg).Background(p.Cyan).Bold(true),
		Branch:    lipgloss.NewStyle().Foreground(p.Border),
		Tag:       lipgloss.NewStyle().Foreground(p.Comment),
		Default:   lipgloss.NewStyle().Foreground(p.Accent),
		Error:     lipgloss.NewStyle().Foreground(p.Red),
		Panel:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Border).Padding(0, 1),
		HelpBar: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(p.Border).
			Padding(0, 1),
		Key:     lipgloss.NewStyle().Foreground(p.Cyan).Bold(true),
		User:    lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		Agent:   lipgloss.NewStyle().Foreground(p.Green).Bold(true),
		Pending: lipgloss.NewStyle().Foreground(p.Comment).Italic(true),
	}
}

// StateStyle colors a connection state word.
func (s Styles) StateStyle(state string) lipgloss.Style {
	switch state {
	case "connected":
		return lipgloss.NewStyle().Foreground(s.Palette.Green).Bold(true)
	case "connecting", "reconnecting", "disconnecting":
		return lipgloss.NewStyle().Foreground(s.Palette.Yellow).Bold(true)
	case "error":
		return lipgloss.NewStyle().Foreground(s.Palette.Red).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(s.Palette.Comment)
	}
}

// MenuKey renders one "key label" help entry.
func (s Styles) MenuKey(key, label string) string {
	return fmt.Sprintf("%s %s", s.Key.Render(key), s.Dim.Render(label))
}

// ResolveTheme maps a config theme name to a palette. "auto" asks the OS
// first and falls back to the terminal's background color.
func ResolveTheme(name string) Palette {
	switch name {
	case "light":
		return lightPalette
	case "auto":
		if dark, err := darkmode.IsDarkMode(); err == nil {
			if dark {
				return darkPalette
			}
			return lightPalette
		}
		if termenv.HasDarkBackground() {
			return darkPalette
		}
		return lightPalette
	default:
		return darkPalette
	}
}
