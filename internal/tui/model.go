// Package tui is a terminal chat window for the relay. Replies are revealed
// word by word by a render.Renderer, with the transcript viewport acting as
// the scroll container.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat_relay_go_backend/internal/render"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Sender delivers one message to the relay and returns the reply.
type Sender interface {
	Send(ctx context.Context, message string) (string, error)
}

type bubbleKind int

const (
	outgoing bubbleKind = iota
	incoming
)

type bubble struct {
	kind    bubbleKind
	text    string
	loading bool
	failed  bool
}

type replyMsg struct {
	text string
	err  error
}

type revealTickMsg time.Time

const (
	inputHeight  = 3
	chromeHeight = inputHeight + 2 // counter line and spacing
)

var (
	outgoingStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	incomingStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("244")).
			Padding(0, 1)
	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("196")).
			Padding(0, 1)
	counterStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	limitExceededText = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type Model struct {
	sender   Sender
	renderer *render.Renderer
	interval time.Duration
	maxWords int

	viewport viewport.Model
	input    textarea.Model

	bubbles []bubble
	offsets []int
	// question and answer index the bubbles of the exchange in progress.
	question int
	answer   int
}

func New(sender Sender, interval time.Duration, maxWords int) *Model {
	if interval <= 0 {
		interval = render.DefaultInterval
	}
	ta := textarea.New()
	ta.Placeholder = "Enter a message..."
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	return &Model{
		sender:   sender,
		renderer: render.New(),
		interval: interval,
		maxWords: maxWords,
		viewport: viewport.New(80, 20),
		input:    ta,
		question: -1,
		answer:   -1,
	}
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-chromeHeight)
		m.input.SetWidth(msg.Width)
		m.relayout()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.renderer.Cancel()
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case replyMsg:
		return m, m.receive(msg)

	case revealTickMsg:
		if !m.renderer.Busy() {
			return m, nil
		}
		if done := m.renderer.Tick(m); !done {
			return m, m.tick()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.renderer.Busy() {
		return nil
	}
	if m.maxWords > 0 && render.CountWords(text) > m.maxWords {
		return nil
	}
	if err := m.renderer.Begin(); err != nil {
		return nil
	}

	m.bubbles = append(m.bubbles, bubble{kind: outgoing, text: text})
	m.question = len(m.bubbles) - 1
	m.bubbles = append(m.bubbles, bubble{kind: incoming, loading: true})
	m.answer = len(m.bubbles) - 1
	m.input.Reset()
	m.relayout()
	m.viewport.GotoBottom()

	sender := m.sender
	return func() tea.Msg {
		reply, err := sender.Send(context.Background(), text)
		return replyMsg{text: reply, err: err}
	}
}

func (m *Model) receive(msg replyMsg) tea.Cmd {
	if m.answer < 0 {
		return nil
	}
	b := &m.bubbles[m.answer]
	b.loading = false

	if msg.err != nil {
		m.renderer.Fail()
		b.failed = true
		b.text = msg.err.Error()
		m.relayout()
		return nil
	}

	if err := m.renderer.Reveal(msg.text); err != nil {
		return nil
	}
	m.relayout()
	if m.renderer.Busy() {
		return m.tick()
	}
	return nil
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return revealTickMsg(t)
	})
}

// SetText implements render.Surface for the incoming bubble.
func (m *Model) SetText(text string) {
	if m.answer < 0 {
		return
	}
	m.bubbles[m.answer].text = text
	m.relayout()
}

func (m *Model) QuestionTop() (int, bool) {
	if m.question < 0 || m.question >= len(m.offsets) {
		return 0, false
	}
	return m.offsets[m.question], true
}

func (m *Model) ScrollHeight() int { return m.viewport.TotalLineCount() }

func (m *Model) ClientHeight() int { return m.viewport.Height }

func (m *Model) SetScrollTop(offset int) { m.viewport.SetYOffset(offset) }

func (m *Model) bubbleWidth() int {
	return max(10, m.viewport.Width*3/4)
}

func (m *Model) renderBubble(b bubble) string {
	width := m.bubbleWidth()
	text := b.text
	if b.loading {
		text = "..."
	}
	switch {
	case b.failed:
		return errorStyle.Width(width).Render(text)
	case b.kind == outgoing:
		rendered := outgoingStyle.Width(width).Render(text)
		return lipgloss.PlaceHorizontal(m.viewport.Width, lipgloss.Right, rendered)
	default:
		return incomingStyle.Width(width).Render(text)
	}
}

// relayout re-renders every bubble and records the first line of each.
func (m *Model) relayout() {
	var sb strings.Builder
	m.offsets = m.offsets[:0]
	line := 0
	for i, b := range m.bubbles {
		if i > 0 {
			sb.WriteString("\n\n")
			line++
		}
		rendered := m.renderBubble(b)
		m.offsets = append(m.offsets, line)
		sb.WriteString(rendered)
		line += lipgloss.Height(rendered)
	}
	m.viewport.SetContent(sb.String())
}

func (m *Model) counter() string {
	words := render.CountWords(m.input.Value())
	if m.maxWords > 0 && words > m.maxWords {
		return limitExceededText.Render(fmt.Sprintf("Maximum %d words allowed", m.maxWords))
	}
	return counterStyle.Render(fmt.Sprintf("%d / %d", words, m.maxWords))
}

func (m *Model) View() string {
	return fmt.Sprintf("%s\n%s\n%s", m.viewport.View(), m.counter(), m.input.View())
}
