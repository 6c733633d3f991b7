package tracker

import (
	"context"

	"github.com/joescharf/tracker/internal/models"
)

// Level classifies a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Notice is a message for the user.
type Notice struct {
	Level   Level
	Message string
}

// View is the UI surface the client drives. Methods may be called from any
// goroutine; implementations hand the work to their own event loop.
type View interface {
	// ShowSignedOut switches to the authentication panel.
	ShowSignedOut()
	// ShowDashboard switches to the dashboard for user.
	ShowDashboard(user *models.User)
	// RenderIssues replaces the whole rendered list.
	RenderIssues(cards []Card)
	// ResetForm clears the submission form to its defaults.
	ResetForm()
	Notify(n Notice)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Decline is a Confirmer that always answers no.
var Decline = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })

// Accept is a Confirmer that always answers yes.
var Accept = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
