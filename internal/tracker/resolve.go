package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
)

// ResolveIssue finds an issue by full ID or by a unique, case-insensitive
// ID prefix.
func ResolveIssue(ctx context.Context, s store.Store, ref string) (*models.Issue, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &ValidationError{Field: "id", Message: "Issue ID is required"}
	}

	issue, err := s.GetIssue(ctx, ref)
	if err == nil {
		return issue, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	all, err := s.ListIssues(ctx, store.IssueQuery{})
	if err != nil {
		return nil, err
	}
	prefix := strings.ToUpper(ref)
	var matches []*models.Issue
	for _, issue := range all {
		if strings.HasPrefix(strings.ToUpper(issue.ID), prefix) {
			matches = append(matches, issue)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue %s: %w", ref, store.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, &ValidationError{Field: "id", Message: fmt.Sprintf("Issue ID %q matches %d issues", ref, len(matches))}
	}
}
