package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	PrimaryColor   = lipgloss.Color("#7D56F4")
	MissingColor   = lipgloss.Color("#FF5F56")
	MatchedColor   = lipgloss.Color("#04B575")
	AddedColor     = lipgloss.Color("#FFCC00")
	SubtleColor    = lipgloss.Color("#626262")
	HighlightColor = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(HighlightColor).
			Background(PrimaryColor).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// Column borders; the focused column is drawn in the primary color.
	ColumnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(0, 1)

	FocusedColumnStyle = ColumnStyle.
				BorderForeground(PrimaryColor)

	StatusStyle = lipgloss.NewStyle().
			Foreground(AddedColor)
)

// categoryColor returns the accent for a result category.
func categoryColor(category Category) lipgloss.Color {
	switch category {
	case CategoryMissing:
		return MissingColor
	case CategoryMatched:
		return MatchedColor
	default:
		return AddedColor
	}
}
