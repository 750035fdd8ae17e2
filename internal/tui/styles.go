package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title   lipgloss.Style
	Name    lipgloss.Style
	Idle    lipgloss.Style
	Hovered lipgloss.Style
	Opening lipgloss.Style
	Muted   lipgloss.Style
	Cursor  lipgloss.Style
	Footer  lipgloss.Style
	Error   lipgloss.Style
}

func defaultStyles() styles {
	accent := lipgloss.Color("#7D56F4")
	muted := lipgloss.Color("#6C6C6C")

	return styles{
		Title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			MarginBottom(1),

		Name: lipgloss.NewStyle().
			Width(24),

		Idle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FAFD7")),

		Hovered: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FAFD7")).
			Underline(true),

		Opening: lipgloss.NewStyle().
			Foreground(muted),

		Muted: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),

		Cursor: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			MarginTop(1),
	}
}
