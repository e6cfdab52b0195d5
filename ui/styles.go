package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	dimColor       = lipgloss.Color("7")
	accentColor    = lipgloss.Color("12")
	successColor   = lipgloss.Color("10")
	warningColor   = lipgloss.Color("11")
	dangerColor    = lipgloss.Color("9")
	highlightColor = lipgloss.Color("13")

	// User prompt style
	UserStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	// Streamed assistant text
	AssistantStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	// Thinking, usage and run summaries
	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	ThinkingStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true)

	ToolStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)
)
