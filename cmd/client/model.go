package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor = lipgloss.Color("#55FF55")
	mutedColor  = lipgloss.Color("#6B7280")
	errorColor  = lipgloss.Color("#FF5555")

	promptStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle  = lipgloss.NewStyle().Foreground(errorColor)
	headerStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true).Padding(0, 1)
)

// scrollback is the number of server lines kept.
const scrollback = 1000

type keyMap struct {
	Enter    key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

var keys = keyMap{
	Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c", "ctrl+d"), key.WithHelp("ctrl+c", "quit")),
	Up:       key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous input")),
	Down:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next input")),
	PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
}

// serverLineMsg is one line received from the server.
type serverLineMsg string

// disconnectedMsg reports that the server closed the connection.
type disconnectedMsg struct{ err error }

type model struct {
	input      textinput.Model
	view       viewport.Model
	out        io.Writer
	addr       string
	lines      []string
	history    []string
	historyIdx int
	ready      bool
	connected  bool
	quitting   bool
	sendErr    error
}

func newModel(addr string, out io.Writer) model {
	ti := textinput.New()
	ti.Placeholder = "chat, or /help"
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.CharLimit = 512
	ti.Focus()
	return model{
		input:      ti,
		view:       viewport.New(80, 20),
		out:        out,
		addr:       addr,
		historyIdx: -1,
		connected:  true,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-3, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case serverLineMsg:
		m.appendLine(string(msg))
		return m, nil

	case disconnectedMsg:
		m.connected = false
		text := "Disconnected."
		if msg.err != nil {
			text = fmt.Sprintf("Disconnected: %v", msg.err)
		}
		m.appendLine(errorStyle.Render(text))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Up):
			if len(m.history) > 0 {
				if m.historyIdx == -1 {
					m.historyIdx = len(m.history) - 1
				} else if m.historyIdx > 0 {
					m.historyIdx--
				}
				m.input.SetValue(m.history[m.historyIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.historyIdx != -1 {
				if m.historyIdx < len(m.history)-1 {
					m.historyIdx++
					m.input.SetValue(m.history[m.historyIdx])
				} else {
					m.historyIdx = -1
					m.input.SetValue("")
				}
				m.input.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.PageUp), key.Matches(msg, keys.PageDown):
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd

		case key.Matches(msg, keys.Enter):
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line to the server. "/quit" also ends the client
// once the server has said goodbye.
func (m model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	m.historyIdx = -1
	if line == "" {
		return m, nil
	}
	m.history = append(m.history, line)
	if !m.connected {
		m.appendLine(errorStyle.Render("Not connected."))
		return m, nil
	}
	if _, err := io.WriteString(m.out, line+"\r\n"); err != nil {
		m.sendErr = err
		m.appendLine(errorStyle.Render("Send failed: " + err.Error()))
		return m, nil
	}
	if strings.EqualFold(line, "/quit") || strings.EqualFold(line, "quit") {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if over := len(m.lines) - scrollback; over > 0 {
		m.lines = m.lines[over:]
	}
	m.refresh()
}

func (m *model) refresh() {
	atBottom := m.view.AtBottom()
	m.view.SetContent(strings.Join(m.lines, "\n"))
	if atBottom || !m.ready {
		m.view.GotoBottom()
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	state := "connected"
	if !m.connected {
		state = "offline"
	}
	header := headerStyle.Render("localchat") + statusStyle.Render(m.addr+" ("+state+")")
	return header + "\n" + m.view.View() + "\n" + m.input.View()
}
