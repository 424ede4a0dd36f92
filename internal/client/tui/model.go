// Package tui is the terminal front end of the chat client.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/caret-chat/pkg/protocol"
)

// Header is shown above the message log.
const Header = "Press ESC to exit, Enter to send and /help for help."

const (
	headerHeight = 2
	inputHeight  = 3
)

var (
	bold        = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("#374151"))
	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(lipgloss.Color("#374151"))
	serverStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5EEAD4"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#93C5FD")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// Sender delivers one line of user input to the server.
type Sender interface {
	Send(text string) error
}

type incomingMsg string

type disconnectedMsg struct{}

// waitForMessage blocks until the next server frame or the end of the stream.
func waitForMessage(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-ch
		if !ok {
			return disconnectedMsg{}
		}
		return incomingMsg(frame)
	}
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	sender   Sender
	incoming <-chan string

	lines    []string
	viewport viewport.Model
	input    textinput.Model

	disconnected bool
}

// New returns a model sending input through sender and showing every frame
// read from incoming.
func New(sender Sender, incoming <-chan string) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message..."
	input.CharLimit = protocol.MaxFrameLen
	input.Focus()

	return Model{
		sender:   sender,
		incoming: incoming,
		viewport: viewport.New(80, 20),
		input:    input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForMessage(m.incoming))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-inputHeight, 1)
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.refresh()
		return m, nil

	case incomingMsg:
		m.appendLine(render(string(msg)))
		return m, waitForMessage(m.incoming)

	case disconnectedMsg:
		m.disconnected = true
		m.input.Blur()
		m.appendLine(errorStyle.Render("Disconnected from server"))
		return m, nil
	}

	var inputCmd, viewCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewCmd)
}

// View implements tea.Model.
func (m Model) View() string {
	header := headerStyle.Render(
		"Press " + bold.Render("ESC") + " to exit, " +
			bold.Render("Enter") + " to send and " +
			bold.Render("/help") + " for help.")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputStyle.Render(m.input.View()),
	)
}

// Lines returns the rendered message log.
func (m Model) Lines() []string {
	return m.lines
}

func (m *Model) submit() {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return
	}
	m.input.Reset()
	if err := m.sender.Send(text); err != nil {
		m.appendLine(errorStyle.Render("Message not sent: " + err.Error()))
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// render styles a server frame by its label.
func render(frame string) string {
	label, body := protocol.SplitLabel(frame)
	switch label {
	case "":
		return body
	case protocol.LabelServer:
		return serverStyle.Render(label+":") + " " + body
	case protocol.LabelSystem:
		return systemStyle.Render(label+":") + " " + body
	default:
		return nameStyle.Render(label+":") + " " + body
	}
}
