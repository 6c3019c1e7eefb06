package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles used by the view.
type Theme struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Focused  lipgloss.Style
	Button   lipgloss.Style
	Error    lipgloss.Style
	Muted    lipgloss.Style
	BugTitle lipgloss.Style
	Selected lipgloss.Style
	Status   map[string]lipgloss.Style
}

// DefaultTheme is the built-in dark-terminal style set.
var DefaultTheme = Theme{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Focused:  lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
	Button:   lipgloss.NewStyle().Bold(true),
	Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	BugTitle: lipgloss.NewStyle().Bold(true),
	Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
	Status: map[string]lipgloss.Style{
		"open":        lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		"in-progress": lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		"resolved":    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	},
}

func (t Theme) status(s string) lipgloss.Style {
	if style, ok := t.Status[s]; ok {
		return style
	}
	return lipgloss.NewStyle()
}
