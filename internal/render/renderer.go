// Package render reveals a finished model reply word by word while keeping
// the user's question in view.
//
// A Renderer is a small state machine:
//
//	Idle --Begin--> Awaiting --Reveal--> Revealing --last tick--> Idle
//	                   |                     |
//	                   +--Fail---> Idle <----+--Cancel
//
// Any state other than Idle counts as a response in progress, and Begin
// refuses new submissions until the renderer returns to Idle. The host owns
// the clock: it calls Tick every DefaultInterval while Busy.
package render

import (
	"errors"
	"strings"
	"time"
)

const DefaultInterval = 30 * time.Millisecond

var (
	ErrInProgress = errors.New("render: a response is already in progress")
	ErrNotWaiting = errors.New("render: no request is awaiting a reply")
)

type State int

const (
	Idle State = iota
	Awaiting
	Revealing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Awaiting:
		return "awaiting"
	case Revealing:
		return "revealing"
	default:
		return "unknown"
	}
}

// Surface is the display the renderer writes to. In a browser it would be
// the reply element plus its scroll container.
type Surface interface {
	// SetText replaces the visible text of the reply element.
	SetText(text string)
	// QuestionTop returns the offset of the triggering user message within
	// the scroll container, or false if it cannot be located.
	QuestionTop() (int, bool)
	ScrollHeight() int
	ClientHeight() int
	SetScrollTop(offset int)
}

type Renderer struct {
	state  State
	tokens []string
	next   int
	text   strings.Builder
	done   chan struct{}
}

func New() *Renderer {
	return &Renderer{}
}

func (r *Renderer) State() State {
	return r.state
}

// Busy reports whether a response is in progress.
func (r *Renderer) Busy() bool {
	return r.state != Idle
}

// Text returns what has been revealed so far.
func (r *Renderer) Text() string {
	return r.text.String()
}

// Done returns a channel closed when the current response finishes, fails
// or is cancelled. It is nil while Idle.
func (r *Renderer) Done() <-chan struct{} {
	return r.done
}

// Begin marks a submission in flight.
func (r *Renderer) Begin() error {
	if r.state != Idle {
		return ErrInProgress
	}
	r.state = Awaiting
	r.tokens = nil
	r.next = 0
	r.text.Reset()
	r.done = make(chan struct{})
	return nil
}

// Fail ends a submission whose reply never arrived.
func (r *Renderer) Fail() {
	if r.state == Awaiting {
		r.finish()
	}
}

// Reveal starts showing reply. A reply without words completes at once.
func (r *Renderer) Reveal(reply string) error {
	if r.state != Awaiting {
		return ErrNotWaiting
	}
	r.tokens = strings.Fields(reply)
	r.next = 0
	if len(r.tokens) == 0 {
		r.finish()
		return nil
	}
	r.state = Revealing
	return nil
}

// Tick appends the next word to s, re-clamps the scroll position and
// reports whether the reveal is complete.
func (r *Renderer) Tick(s Surface) bool {
	if r.state != Revealing {
		return true
	}
	if r.next > 0 {
		r.text.WriteByte(' ')
	}
	r.text.WriteString(r.tokens[r.next])
	r.next++

	s.SetText(r.text.String())
	ApplyScroll(s)

	if r.next == len(r.tokens) {
		r.finish()
		return true
	}
	return false
}

// Cancel abandons the current response, for example when the view closes.
func (r *Renderer) Cancel() {
	if r.state != Idle {
		r.finish()
	}
}

func (r *Renderer) finish() {
	r.state = Idle
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
}

// ClampScroll returns the scroll offset that shows as much of the reply as
// possible without pushing the question above the top of the viewport.
func ClampScroll(questionTop, scrollHeight, clientHeight int) int {
	maxScroll := scrollHeight - clientHeight
	if maxScroll < 0 {
		maxScroll = 0
	}
	if questionTop < 0 {
		questionTop = 0
	}
	return min(maxScroll, questionTop)
}

// ApplyScroll clamps s to its question, or anchors it to the bottom when no
// question can be found.
func ApplyScroll(s Surface) {
	questionTop, ok := s.QuestionTop()
	if !ok {
		maxScroll := s.ScrollHeight() - s.ClientHeight()
		if maxScroll < 0 {
			maxScroll = 0
		}
		s.SetScrollTop(maxScroll)
		return
	}
	s.SetScrollTop(ClampScroll(questionTop, s.ScrollHeight(), s.ClientHeight()))
}

// CountWords counts whitespace separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
