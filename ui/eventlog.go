package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/biglexj/prisma-vtuber/internal/events"
)

const maxLogLines = 500

// kindWidth fits the longest label shown in the log.
const kindWidth = 6

// eventLog keeps the most recent events for display.
type eventLog struct {
	max    int
	events []events.Event
}

func (l *eventLog) add(e events.Event) {
	l.events = append(l.events, e)
	if over := len(l.events) - l.max; l.max > 0 && over > 0 {
		l.events = append(l.events[:0], l.events[over:]...)
	}
}

func (l *eventLog) clear() {
	l.events = l.events[:0]
}

func (l *eventLog) len() int {
	return len(l.events)
}

// render draws one line per event, cut to width.
func (l *eventLog) render(width int) string {
	lines := make([]string, 0, len(l.events))
	for _, e := range l.events {
		lines = append(lines, renderEvent(e, width))
	}
	return strings.Join(lines, "\n")
}

func renderEvent(e events.Event, width int) string {
	label := e.Kind.String()
	if label == "speech" {
		label = "said"
	}
	label = runewidth.FillRight(label, kindWidth)
	if st, ok := kindStyles[e.Kind.String()]; ok {
		label = st.Render(label)
	} else {
		label = faintStyle(label)
	}

	text := oneLine(e.Text)
	if e.Author != "" {
		text = authorStyle(e.Author) + ": " + text
	}

	line := faintStyle(e.Time.Format("15:04:05")) + " " + label + " " + text
	if width <= 0 {
		return line
	}
	return truncate.StringWithTail(line, uint(width), ellipsis) //nolint:gosec
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
