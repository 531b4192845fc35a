package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/room4-2/accessai/session"
)

const maxTranscriptLines = 200

// conversation is the part of session.Conversation the companion drives.
type conversation interface {
	Start(ctx context.Context) error
	Stop() error
	SendText(text string) error
	Dismiss() bool
	OpenLiveMap() bool
	Snapshot() (session.State, *session.SideData)
}

// StateMsg carries a state machine transition into the program.
type StateMsg struct {
	State session.State
	Side  *session.SideData
}

// TranscriptMsg is one line of conversation text.
type TranscriptMsg struct {
	Role string
	Text string
}

// actionMsg reports the outcome of a conversation call made off the UI loop.
type actionMsg struct {
	action string
	err    error
}

type keyMap struct {
	Start   key.Binding
	Stop    key.Binding
	Dismiss key.Binding
	LiveMap key.Binding
	Send    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "start")),
		Stop:    key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "stop")),
		Dismiss: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
		LiveMap: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "live map")),
		Send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7DD3FC"))
	badgeStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#0F172A"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#F59E0B")).Padding(0, 1)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A3E635"))
	modelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E2E8F0"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))
	stateColors = map[session.State]string{
		session.Idle:                     "#94A3B8",
		session.Listening:                "#4ADE80",
		session.Processing:               "#FACC15",
		session.Speaking:                 "#38BDF8",
		session.Breathing:                "#C084FC",
		session.ShowingCard:              "#FB923C",
		session.ShowingMap:               "#FB923C",
		session.ShowingPlacesList:        "#FB923C",
		session.ShowingLiveMap:           "#FB923C",
		session.ShowingEmergencyContacts: "#F87171",
	}
)

// Model is the companion's bubbletea model.
type Model struct {
	conv  conversation
	ctx   context.Context
	keys  keyMap
	input textinput.Model

	state session.State
	side  *session.SideData
	lines []string
	err   string

	width  int
	height int
}

// NewModel creates a model driving conv. ctx bounds conversations it starts.
func NewModel(ctx context.Context, conv conversation) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a question, or press ctrl+s and talk"
	ti.CharLimit = 500
	ti.Focus()

	state, side := conv.Snapshot()
	return Model{
		conv:  conv,
		ctx:   ctx,
		keys:  defaultKeyMap(),
		input: ti,
		state: state,
		side:  side,
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil
	case StateMsg:
		m.state = msg.State
		m.side = msg.Side
		return m, nil
	case TranscriptMsg:
		m.appendLine(msg.Role, msg.Text)
		return m, nil
	case actionMsg:
		m.applyAction(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		conv := m.conv
		return m, func() tea.Msg {
			_ = conv.Stop()
			return tea.Quit()
		}
	case key.Matches(msg, m.keys.Start):
		m.err = ""
		return m, m.call("start", func() error { return m.conv.Start(m.ctx) })
	case key.Matches(msg, m.keys.Stop):
		return m, m.call("stop", m.conv.Stop)
	case key.Matches(msg, m.keys.Dismiss):
		return m, m.call("dismiss", ignoredUnless(m.conv.Dismiss))
	case key.Matches(msg, m.keys.LiveMap):
		return m, m.call("live map", ignoredUnless(m.conv.OpenLiveMap))
	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.appendLine("user", text)
		return m, m.call("send", func() error { return m.conv.SendText(text) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

var errIgnored = errors.New("not available in this state")

func ignoredUnless(fn func() bool) func() error {
	return func() error {
		if !fn() {
			return errIgnored
		}
		return nil
	}
}

// call runs fn off the update loop. State sinks deliver through
// Program.Send, which would block if the loop itself were inside a
// transition.
func (m Model) call(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: action, err: fn()}
	}
}

func (m *Model) applyAction(msg actionMsg) {
	switch {
	case msg.err == nil:
		m.err = ""
	case errors.Is(msg.err, session.ErrAlreadyRunning):
		m.err = "already running"
	case errors.Is(msg.err, session.ErrNotRunning):
		m.err = "press ctrl+s to start a conversation first"
	default:
		m.err = fmt.Sprintf("%s: %v", msg.action, msg.err)
	}
}

func (m *Model) appendLine(role, text string) {
	style := modelStyle
	prefix := "Access.ai"
	if role == "user" {
		style = userStyle
		prefix = "You"
	}
	m.lines = append(m.lines, style.Render(prefix+": "+text))
	if len(m.lines) > maxTranscriptLines {
		m.lines = m.lines[len(m.lines)-maxTranscriptLines:]
	}
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	color := stateColors[m.state]
	b.WriteString(titleStyle.Render("Access.ai"))
	b.WriteString("  ")
	b.WriteString(badgeStyle.Background(lipgloss.Color(color)).Render(m.state.String()))
	b.WriteString("\n\n")

	if panel := m.overlayPanel(); panel != "" {
		b.WriteString(panel)
		b.WriteString("\n")
	}

	b.WriteString(strings.Join(m.visibleLines(), "\n"))
	b.WriteString("\n\n")

	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) visibleLines() []string {
	if m.height == 0 {
		return m.lines
	}
	room := m.height - 8
	if m.state.IsOverlay() {
		room -= 6
	}
	room = max(room, 1)
	if len(m.lines) <= room {
		return m.lines
	}
	return m.lines[len(m.lines)-room:]
}

func (m Model) overlayPanel() string {
	var body string
	switch m.state {
	case session.ShowingCard:
		body = "Food safety card"
	case session.ShowingMap:
		body = "Map of the area"
	case session.ShowingPlacesList:
		body = m.placesBody("Nearby")
	case session.ShowingLiveMap:
		body = m.placesBody("Live map")
	case session.ShowingEmergencyContacts:
		body = "Emergency contacts"
		if m.side != nil && m.side.AutoCall != "" {
			body += "\nCalling " + m.side.AutoCall
		}
	default:
		return ""
	}
	return panelStyle.Render(body + "\n" + helpStyle.Render("esc to dismiss"))
}

func (m Model) placesBody(title string) string {
	if m.side == nil {
		return title
	}
	var b strings.Builder
	b.WriteString(title)
	if m.side.PlaceType != "" {
		b.WriteString(" " + m.side.PlaceType)
	}
	for i, p := range m.side.Places {
		fmt.Fprintf(&b, "\n%d. %s", i+1, p.Name)
		if p.DistanceKM > 0 {
			fmt.Fprintf(&b, " (%.1f km)", p.DistanceKM)
		}
	}
	return b.String()
}

func (m Model) helpLine() string {
	bindings := []key.Binding{m.keys.Start, m.keys.Stop, m.keys.Send, m.keys.Dismiss, m.keys.LiveMap, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
