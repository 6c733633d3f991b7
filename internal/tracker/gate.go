package tracker

import (
	"context"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
)

// CheckTransition applies the workflow rule to a requested status change.
// Open may not jump straight to Done; every other change between known
// statuses is allowed.
func CheckTransition(current, requested models.IssueStatus) error {
	if !current.Valid() {
		return &ValidationError{Field: "status", Message: "Unknown current status " + string(current)}
	}
	if !requested.Valid() {
		return &ValidationError{Field: "status", Message: "Unknown status " + string(requested)}
	}
	if current == models.IssueStatusOpen && requested == models.IssueStatusDone {
		return &RuleError{From: current, To: requested}
	}
	return nil
}

// Transition checks the rule against the issue's displayed status and, if
// it passes, writes only the status field.
func Transition(ctx context.Context, s store.Store, id string, current, requested models.IssueStatus) error {
	if err := CheckTransition(current, requested); err != nil {
		return err
	}
	status := requested
	if err := s.UpdateIssue(ctx, id, store.IssuePatch{Status: &status}); err != nil {
		return writeFailed(err)
	}
	return nil
}
