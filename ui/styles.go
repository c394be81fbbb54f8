package ui

import "github.com/charmbracelet/lipgloss"

var (
	pink      = lipgloss.AdaptiveColor{Light: "#D6339D", Dark: "#FF5FD2"}
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	faintFg   = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(pink).
			Bold(true).
			Padding(0, 1)

	spinnerStyle = lipgloss.NewStyle().Foreground(pink)

	liveStyle    = lipgloss.NewStyle().Foreground(darkGreen).Bold(true).Render
	stoppedStyle = lipgloss.NewStyle().Foreground(faintFg).Render
	faintStyle   = lipgloss.NewStyle().Foreground(faintFg).Render
	authorStyle  = lipgloss.NewStyle().Bold(true).Render
	typingStyle  = lipgloss.NewStyle().Foreground(pink).Italic(true).Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(red).
				Render

	kindStyles = map[string]lipgloss.Style{
		"chat":  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#5FAFFF"}),
		"rule":  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD75F"}),
		"reply": lipgloss.NewStyle().Foreground(pink).Bold(true),
		"warn":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"error": lipgloss.NewStyle().Foreground(red),
	}
)
