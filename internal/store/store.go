package store

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/tracker/internal/models"
)

// ErrNotFound is returned (wrapped) when a record does not exist.
var ErrNotFound = errors.New("not found")

// IssueQuery selects issues for a one-shot read or a live subscription.
// The zero value matches the whole collection.
type IssueQuery struct {
	Status models.IssueStatus
}

// QueryFor builds the query for a list filter.
func QueryFor(f models.StatusFilter) IssueQuery {
	return IssueQuery{Status: f.Status}
}

// IssuePatch holds the fields of a partial update. Nil fields are left
// untouched. CreatedBy and CreatedAt are write-once and cannot be patched.
type IssuePatch struct {
	Title       *string
	Description *string
	Priority    *models.IssuePriority
	AssignedTo  *string
	Status      *models.IssueStatus
}

// Empty reports whether the patch changes nothing.
func (p IssuePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.AssignedTo == nil && p.Status == nil
}

// Snapshot is the full result set of a live query at one point in time,
// ordered newest first.
type Snapshot struct {
	Issues []*models.Issue
	ReadAt time.Time
}

// SnapshotHandler receives every snapshot of a subscription. A non-nil err
// means the query failed; the subscription stays open and delivers again on
// the next change.
type SnapshotHandler func(snap Snapshot, err error)

// Subscription is a live query handle.
type Subscription interface {
	// Stop releases the subscription. Once Stop returns the handler is never
	// invoked again. Stop must not be called from inside the handler.
	Stop()
}

// Store defines the document store the tracker treats as its system of record.
type Store interface {
	// Issues
	AddIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, q IssueQuery) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, id string, patch IssuePatch) error
	Subscribe(ctx context.Context, q IssueQuery, handler SnapshotHandler) (Subscription, error)

	// Users and sessions
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateSession(ctx context.Context, sess *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
