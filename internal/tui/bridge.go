package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/tracker"
)

type signedOutMsg struct{}

type dashboardMsg struct{ user *models.User }

type issuesMsg struct{ cards []tracker.Card }

type resetFormMsg struct{}

type noticeMsg struct{ notice tracker.Notice }

type confirmMsg struct {
	prompt string
	reply  chan<- bool
}

// Bridge implements tracker.View and tracker.Confirmer by turning every
// call into a message for the bubbletea event loop. Calls come from client
// and subscription goroutines and never touch model state directly.
type Bridge struct {
	events    chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

// NewBridge creates a Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		events: make(chan tea.Msg, 64),
		done:   make(chan struct{}),
	}
}

// Close releases anything blocked on the bridge. Call it after the program
// exits and before stopping the client.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

func (b *Bridge) ShowSignedOut()                  { b.send(signedOutMsg{}) }
func (b *Bridge) ShowDashboard(user *models.User) { b.send(dashboardMsg{user: user}) }
func (b *Bridge) RenderIssues(cards []tracker.Card) {
	b.send(issuesMsg{cards: cards})
}
func (b *Bridge) ResetForm()              { b.send(resetFormMsg{}) }
func (b *Bridge) Notify(n tracker.Notice) { b.send(noticeMsg{notice: n}) }

// Confirm shows a y/n modal and waits for the answer. It returns false if
// the program exits first.
func (b *Bridge) Confirm(ctx context.Context, prompt string) (bool, error) {
	reply := make(chan bool, 1)
	b.send(confirmMsg{prompt: prompt, reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-b.done:
		return false, nil
	}
}

// listen returns a tea.Cmd that blocks until the bridge has a message.
func listen(events <-chan tea.Msg, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-done:
			return nil
		}
	}
}
