package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/syncer"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// DisableColor strips ANSI styling from all subsequent output. Used when
// stdout is not a terminal.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// PercentStyle colors a completion percentage: green from 66, yellow from
// 33, red below.
func PercentStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= 66:
		return StyleGreen
	case pct >= 33:
		return StyleYellow
	default:
		return StyleRed
	}
}

// StatusCell renders one entry status as a short fixed-width label.
func StatusCell(code domain.StatusCode) string {
	label := fmt.Sprintf("%4s", code.Label())
	switch {
	case code == domain.StatusNone:
		return StyleDim.Render("   ·")
	case code.IsDone():
		return StyleGreen.Render(label)
	case code.IsSkipped():
		return StylePurple.Render(label)
	default:
		return PercentStyle(code.Percent()).Render(label)
	}
}

// PhaseBadge renders the sync phase of a session.
func PhaseBadge(phase syncer.Phase) string {
	switch phase {
	case syncer.PhaseSynced:
		return StyleGreen.Render("● synced")
	case syncer.PhaseDisconnected:
		return StyleRed.Render("● offline")
	case syncer.PhaseIdle:
		return StyleDim.Render("○ signed out")
	default:
		return StyleYellow.Render("◌ " + strings.ReplaceAll(string(phase), "_", " "))
	}
}

// Header renders a section header with an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len([]rune(upper)))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
