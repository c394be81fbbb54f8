// Package ui provides the terminal control panel for prisma: enter a stream
// identifier, start and stop chat processing, and watch what the VTuber hears
// and says.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"

	"github.com/biglexj/prisma-vtuber/internal/events"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied!"
	refreshInterval      = time.Millisecond * 500
	ellipsis             = "…"

	// header, input, typing line and status bar
	chromeHeight = 4
)

// Controller is the part of the app the panel drives.
type Controller interface {
	Start(ctx context.Context, identifier string) error
	Stop()
	IsRunning() bool
	Pending() int
}

// Config contains TUI-specific configuration.
type Config struct {
	Identifier  string // prefilled stream URL, video id or relay URL
	Source      string
	Backend     string
	Engine      string
	PersonaName string
	Rules       int
	EnableMouse bool
}

// NewProgram returns a new Tea program.
func NewProgram(ctx context.Context, cfg Config, ctrl Controller, ch <-chan events.Event) *tea.Program {
	log.Debug("Starting prisma TUI", "source", cfg.Source, "backend", cfg.Backend, "engine", cfg.Engine)

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(ctx, cfg, ctrl, ch), opts...)
}

type (
	eventMsg                events.Event
	eventsClosedMsg         struct{}
	startedMsg              struct{ err error }
	refreshMsg              time.Time
	statusMessageTimeoutMsg struct{}
)

type model struct {
	ctx    context.Context
	cfg    Config
	ctrl   Controller
	events <-chan events.Event

	width  int
	height int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	log      eventLog

	// Reply being streamed, and the last complete one.
	partial     string
	lastReply   string
	lastReplyAt time.Time

	starting bool
	running  bool
	pending  int

	statusMessage string
	statusIsError bool
}

func newModel(ctx context.Context, cfg Config, ctrl Controller, ch <-chan events.Event) model {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = placeholderFor(cfg.Source)
	ti.SetValue(cfg.Identifier)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return model{
		ctx:      ctx,
		cfg:      cfg,
		ctrl:     ctrl,
		events:   ch,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		log:      eventLog{max: maxLogLines},
	}
}

func placeholderFor(source string) string {
	switch source {
	case "websocket":
		return "ws://localhost:8765/chat"
	default:
		return "https://www.youtube.com/watch?v=…"
	}
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func startCmd(ctx context.Context, c Controller, identifier string) tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: c.Start(ctx, identifier)}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events), refresh())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)

	case eventMsg:
		m.addEvent(events.Event(msg))
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		log.Debug("Event channel closed")

	case startedMsg:
		m.starting = false
		if msg.err != nil {
			m.running = false
			cmds = append(cmds, m.setError(msg.err.Error()), m.input.Focus())
			break
		}
		m.running = true
		cmds = append(cmds, m.setStatus("listening to chat"))

	case refreshMsg:
		if !m.starting {
			m.running = m.ctrl.IsRunning()
		}
		m.pending = m.ctrl.Pending()
		return m, refresh()

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.start()
	case "esc", "tab":
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "i", "/", "tab":
		if m.running || m.starting {
			return m, m.setError("stop before changing the stream")
		}
		return m, m.input.Focus()

	case "s", "enter":
		if m.running {
			m.ctrl.Stop()
			m.running = false
			return m, m.setStatus("stopping; queued replies will still be spoken")
		}
		return m.start()

	case "y":
		if m.lastReply == "" {
			return m, m.setError("nothing to copy yet")
		}
		if err := clipboard.WriteAll(m.lastReply); err != nil {
			log.Debug("Clipboard unavailable", "err", err)
			return m, m.setError("could not copy: " + err.Error())
		}
		return m, m.setStatus("copied the last reply")

	case "c":
		m.log.clear()
		m.viewport.SetContent("")
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) start() (tea.Model, tea.Cmd) {
	if m.starting || m.running {
		return m, nil
	}
	identifier := strings.TrimSpace(m.input.Value())
	m.starting = true
	m.input.Blur()
	return m, tea.Batch(startCmd(m.ctx, m.ctrl, identifier), m.setStatus("connecting…"))
}

func (m *model) addEvent(e events.Event) {
	switch e.Kind {
	case events.KindFragment:
		m.partial += e.Text
		return
	case events.KindReply:
		m.partial = ""
		m.lastReply = e.Text
		m.lastReplyAt = e.Time
	case events.KindError:
		m.partial = ""
	}

	atBottom := m.viewport.AtBottom()
	m.log.add(e)
	m.viewport.SetContent(m.log.render(m.viewport.Width))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *model) setSize(w, h int) {
	m.width = w
	m.height = h
	m.input.Width = max(w-runewidth.StringWidth(m.input.Prompt)-1, 10)
	m.viewport.Width = w
	m.viewport.Height = max(h-chromeHeight, 1)
	m.viewport.SetContent(m.log.render(w))
}

func (m *model) setStatus(s string) tea.Cmd {
	m.statusMessage = s
	m.statusIsError = false
	return m.statusTimeout()
}

func (m *model) setError(s string) tea.Cmd {
	m.statusMessage = s
	m.statusIsError = true
	return m.statusTimeout()
}

func (m *model) statusTimeout() tea.Cmd {
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{}
	})
}

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintln(&b, m.headerView())
	fmt.Fprintln(&b, m.input.View())
	fmt.Fprintln(&b, m.viewport.View())
	fmt.Fprintln(&b, m.typingView())
	b.WriteString(m.statusBarView())
	return b.String()
}
