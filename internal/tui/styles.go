package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	styleScheduled = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleSkipped   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	styleSummary = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)
)
