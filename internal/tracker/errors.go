package tracker

import (
	"errors"
	"fmt"

	"github.com/joescharf/tracker/internal/models"
)

// User-visible messages.
const (
	MsgDuplicateHint  = "Smart Hint: A similar issue already exists. Create anyway?"
	MsgOpenToDone     = "Rule: You must move the issue to 'In Progress' before marking it as 'Done'."
	MsgCreateFailed   = "Failed to create issue. Please try again."
	MsgUpdateFailed   = "Failed to update issue status. Please try again."
	MsgNotSignedIn    = "Sign in to continue."
	MsgSubmitDeclined = "Submission cancelled."
)

var (
	// ErrInvalidInput marks input-validation failures. No remote call was made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRuleViolation marks a workflow transition the rules forbid.
	ErrRuleViolation = errors.New("workflow rule violation")
	// ErrWriteFailed wraps a store write the remote side rejected.
	ErrWriteFailed = errors.New("write failed")
	// ErrSubmissionDeclined means a duplicate warning was not confirmed.
	ErrSubmissionDeclined = errors.New("submission declined")
	// ErrNotSignedIn means the operation needs an authenticated user.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrNotInView means an action targeted an issue that is not in the
	// currently rendered list.
	ErrNotInView = errors.New("issue not in current list")
)

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrInvalidInput) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// RuleError is returned when a status change skips a workflow step.
type RuleError struct {
	From, To models.IssueStatus
}

func (e *RuleError) Error() string { return MsgOpenToDone }

// Is makes errors.Is(err, ErrRuleViolation) hold.
func (e *RuleError) Is(target error) bool { return target == ErrRuleViolation }

// UserMessage maps an error from this package to the message shown to the
// user. Errors outside the taxonomy (identity provider failures) are shown
// verbatim.
func UserMessage(err error) string {
	var verr *ValidationError
	var rerr *RuleError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &rerr):
		return rerr.Error()
	case errors.Is(err, ErrNotSignedIn):
		return MsgNotSignedIn
	case errors.Is(err, ErrSubmissionDeclined):
		return MsgSubmitDeclined
	case errors.Is(err, ErrWriteFailed):
		return MsgCreateFailed
	default:
		return err.Error()
	}
}

func writeFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrWriteFailed, err)
}
