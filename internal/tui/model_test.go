package tui

import (
	"context"
	"errors"
	"testing"

	"chat_relay_go_backend/internal/render"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	reply string
	err   error
	sent  []string
}

func (f *fakeSender) Send(_ context.Context, message string) (string, error) {
	f.sent = append(f.sent, message)
	return f.reply, f.err
}

func newTestModel(t *testing.T, sender Sender) *Model {
	t.Helper()
	m := New(sender, render.DefaultInterval, 100)
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 16})
	return m
}

func submit(t *testing.T, m *Model, text string) tea.Cmd {
	t.Helper()
	m.input.SetValue(text)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestSubmitRevealsReplyAndClampsScroll(t *testing.T) {
	sender := &fakeSender{reply: "Two plus two is four, which is the sum of two and two. " +
		"That is all there is to it, and nothing more needs to be said about it today."}
	m := newTestModel(t, sender)

	// Some earlier history so the question does not start at the top.
	for i := 0; i < 3; i++ {
		m.bubbles = append(m.bubbles, bubble{kind: outgoing, text: "earlier question"}, bubble{kind: incoming, text: "earlier answer"})
	}
	m.relayout()

	cmd := submit(t, m, "What is 2+2?")
	require.NotNil(t, cmd)
	assert.Equal(t, render.Awaiting, m.renderer.State())
	assert.Empty(t, sender.sent, "send runs inside the command")

	msg := cmd()
	assert.Equal(t, []string{"What is 2+2?"}, sender.sent)
	_, cmd = m.Update(msg)
	require.NotNil(t, cmd)
	assert.Equal(t, render.Revealing, m.renderer.State())

	ticks := 0
	for m.renderer.Busy() {
		m.Update(revealTickMsg{})
		ticks++

		questionTop, ok := m.QuestionTop()
		require.True(t, ok)
		assert.Equal(t, render.ClampScroll(questionTop, m.ScrollHeight(), m.ClientHeight()), m.viewport.YOffset, "tick %d", ticks)
	}

	assert.Equal(t, render.CountWords(sender.reply), ticks)
	assert.Equal(t, sender.reply, m.bubbles[m.answer].text)
	assert.Equal(t, "What is 2+2?", m.bubbles[m.question].text)
}

func TestSubmitWhileBusyIsIgnored(t *testing.T) {
	m := newTestModel(t, &fakeSender{reply: "ok"})

	require.NotNil(t, submit(t, m, "first"))
	bubbles := len(m.bubbles)

	assert.Nil(t, submit(t, m, "second"))
	assert.Len(t, m.bubbles, bubbles)
}

func TestSubmitRejectsEmptyAndTooLong(t *testing.T) {
	m := New(&fakeSender{reply: "ok"}, render.DefaultInterval, 3)

	assert.Nil(t, submit(t, m, "   "))
	assert.Nil(t, submit(t, m, "one two three four"))
	assert.Contains(t, m.counter(), "Maximum 3 words allowed")
	assert.Empty(t, m.bubbles)
	assert.False(t, m.renderer.Busy())
}

func TestFailedReplyShowsError(t *testing.T) {
	m := newTestModel(t, &fakeSender{err: errors.New("Daily limit is exhausted. You can ask a maximum of 50 questions per day.")})

	cmd := submit(t, m, "Hello")
	require.NotNil(t, cmd)
	_, next := m.Update(cmd())

	assert.Nil(t, next)
	answer := m.bubbles[m.answer]
	assert.True(t, answer.failed)
	assert.False(t, answer.loading)
	assert.Contains(t, answer.text, "50")
	assert.False(t, m.renderer.Busy(), "failure clears the in-progress flag")

	assert.NotNil(t, submit(t, m, "Hello again"))
}

func TestEmptyReplyCompletesWithoutTicks(t *testing.T) {
	m := newTestModel(t, &fakeSender{reply: ""})

	cmd := submit(t, m, "Hello")
	_, next := m.Update(cmd())

	assert.Nil(t, next)
	assert.False(t, m.renderer.Busy())
	assert.Empty(t, m.bubbles[m.answer].text)
}

func TestOffsetsTrackBubbleLines(t *testing.T) {
	m := newTestModel(t, &fakeSender{})
	m.bubbles = []bubble{
		{kind: outgoing, text: "hi"},
		{kind: incoming, text: "hello"},
	}
	m.relayout()

	require.Len(t, m.offsets, 2)
	assert.Equal(t, 0, m.offsets[0])
	// a one-line bordered bubble is three lines tall, plus one blank separator
	assert.Equal(t, 4, m.offsets[1])
	assert.Equal(t, 7, m.ScrollHeight())
}
