// Package tui provides interactive terminal UI components using BubbleTea.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles contains reusable lipgloss styles for the TUI.
var Styles = struct {
	Title    lipgloss.Style
	Datetime lipgloss.Style
	Path     lipgloss.Style
	Key      lipgloss.Style
	Status   lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
	Datetime: lipgloss.NewStyle().Faint(true),
	Path:     lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	Key:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Status:   lipgloss.NewStyle().Faint(true),
}

// Run starts a BubbleTea program with the given model.
func Run(model tea.Model) (tea.Model, error) {
	p := tea.NewProgram(model)
	return p.Run()
}
