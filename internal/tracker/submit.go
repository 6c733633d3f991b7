package tracker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
)

// Form is the raw submission form as the user filled it in.
type Form struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	AssignedTo  string `json:"assignedTo"`
}

// Draft is a validated Form.
type Draft struct {
	Title       string
	Description string
	Priority    models.IssuePriority
	AssignedTo  string
}

// Validate trims every field and checks the required ones. An empty
// priority defaults to Low.
func (f Form) Validate() (Draft, error) {
	d := Draft{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		AssignedTo:  strings.TrimSpace(f.AssignedTo),
	}
	switch {
	case d.Title == "":
		return Draft{}, &ValidationError{Field: "title", Message: "Title is required"}
	case d.Description == "":
		return Draft{}, &ValidationError{Field: "description", Message: "Description is required"}
	case d.AssignedTo == "":
		return Draft{}, &ValidationError{Field: "assignedTo", Message: "Assignee is required"}
	}

	p, err := models.ParsePriority(f.Priority)
	if err != nil {
		return Draft{}, &ValidationError{Field: "priority", Message: "Priority must be Low, Medium or High"}
	}
	d.Priority = p
	return d, nil
}

// DuplicateFinder looks for an existing issue that duplicates title.
type DuplicateFinder interface {
	FindDuplicate(ctx context.Context, title string, existing []*models.Issue) (*models.Issue, error)
}

// ExactTitleFinder matches titles case-insensitively after trimming.
type ExactTitleFinder struct{}

func (ExactTitleFinder) FindDuplicate(_ context.Context, title string, existing []*models.Issue) (*models.Issue, error) {
	for _, issue := range existing {
		if SameTitle(issue.Title, title) {
			return issue, nil
		}
	}
	return nil, nil
}

// SameTitle reports whether two titles count as duplicates.
func SameTitle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Submitter runs the submission flow: validate, check for duplicates,
// confirm, write. It holds no per-user state.
type Submitter struct {
	store  store.Store
	finder DuplicateFinder
	logger *slog.Logger
}

// NewSubmitter creates a Submitter. A nil finder means ExactTitleFinder.
func NewSubmitter(s store.Store, finder DuplicateFinder, logger *slog.Logger) *Submitter {
	if finder == nil {
		finder = ExactTitleFinder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{store: s, finder: finder, logger: logger}
}

// Submit creates an issue from form on behalf of user. When a duplicate
// exists, confirm decides whether to go ahead; a nil confirm declines.
// The written issue has status Open and its creation time set by the store.
func (s *Submitter) Submit(ctx context.Context, user *models.User, form Form, confirm Confirmer) (*models.Issue, error) {
	draft, err := form.Validate()
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotSignedIn
	}

	if dup := s.findDuplicate(ctx, draft.Title); dup != nil {
		if confirm == nil {
			confirm = Decline
		}
		ok, err := confirm.Confirm(ctx, MsgDuplicateHint)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSubmissionDeclined
		}
	}

	issue := &models.Issue{
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
		AssignedTo:  draft.AssignedTo,
		Status:      models.IssueStatusOpen,
		CreatedBy:   user.Email,
	}
	if err := s.store.AddIssue(ctx, issue); err != nil {
		s.logger.Error("create issue", "title", draft.Title, "error", err)
		return nil, writeFailed(err)
	}
	return issue, nil
}

// findDuplicate scans the whole collection, not just the filtered view.
// A failed read skips the hint rather than blocking the submission.
func (s *Submitter) findDuplicate(ctx context.Context, title string) *models.Issue {
	existing, err := s.store.ListIssues(ctx, store.IssueQuery{})
	if err != nil {
		s.logger.Warn("duplicate check skipped", "error", err)
		return nil
	}
	dup, err := s.finder.FindDuplicate(ctx, title, existing)
	if err != nil {
		s.logger.Warn("duplicate check failed", "error", err)
		return nil
	}
	return dup
}
