package main

import "github.com/charmbracelet/lipgloss"

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5FD2")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render
	faint     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}).Render
	good      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	bad       = lipgloss.NewStyle().Foreground(lipgloss.Color("#ED567A")).Render
)
