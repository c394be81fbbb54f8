package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

const helpText = "enter start • s stop • i edit • y copy • c clear • q quit"

func (m model) headerView() string {
	name := m.cfg.PersonaName
	if name == "" {
		name = "prisma"
	}

	var state string
	switch {
	case m.starting:
		state = m.spinner.View() + " connecting"
	case m.running:
		state = liveStyle("● live")
	default:
		state = stoppedStyle("○ stopped")
	}

	details := faintStyle(fmt.Sprintf("%s → %s → %s • %d rules • queue %d",
		m.cfg.Source, m.cfg.Backend, m.cfg.Engine, m.cfg.Rules, m.pending))

	return m.fit(logoStyle.Render(name) + " " + state + "  " + details)
}

// typingView shows the reply being streamed, or when the last one was said.
func (m model) typingView() string {
	switch {
	case m.partial != "":
		return m.fit(typingStyle(m.cfg.PersonaName + ": " + oneLine(m.partial)))
	case m.lastReply != "":
		return m.fit(faintStyle("last reply " + humanize.Time(m.lastReplyAt) + ": " + oneLine(m.lastReply)))
	default:
		return ""
	}
}

func (m model) statusBarView() string {
	width := max(m.width, 1)

	if m.statusMessage != "" {
		style := statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
		msg := truncate.StringWithTail(" "+m.statusMessage+" ", uint(width), ellipsis) //nolint:gosec
		return style(msg + strings.Repeat(" ", max(width-lipgloss.Width(msg), 0)))
	}

	help := truncate.StringWithTail(" "+helpText, uint(width), ellipsis) //nolint:gosec
	return statusBarNoteStyle(runewidth.FillRight(help, width))
}

func (m model) fit(s string) string {
	if m.width <= 0 {
		return s
	}
	return truncate.StringWithTail(s, uint(m.width), ellipsis) //nolint:gosec
}
