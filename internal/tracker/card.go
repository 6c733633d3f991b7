package tracker

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/joescharf/tracker/internal/models"
)

// JustNow is shown for an issue whose creation time the store has not
// assigned yet.
const JustNow = "Just now"

// Action is a workflow trigger exposed on every rendered issue.
type Action string

const (
	ActionStart  Action = "start"  // advance to In Progress
	ActionFinish Action = "finish" // advance to Done
)

// Actions lists the triggers in display order.
var Actions = []Action{ActionStart, ActionFinish}

// Target returns the status the action requests.
func (a Action) Target() models.IssueStatus {
	switch a {
	case ActionStart:
		return models.IssueStatusInProgress
	case ActionFinish:
		return models.IssueStatusDone
	}
	return ""
}

// Label is the button text.
func (a Action) Label() string {
	switch a {
	case ActionStart:
		return "Work"
	case ActionFinish:
		return "Done"
	}
	return string(a)
}

// Card is one rendered issue.
type Card struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Status        models.IssueStatus   `json:"status"`
	StatusLabel   string               `json:"statusLabel"`
	Priority      models.IssuePriority `json:"priority"`
	PriorityLabel string               `json:"priorityLabel"`
	AssignedTo    string               `json:"assignedTo"`
	CreatedBy     string               `json:"createdBy"`
	Created       string               `json:"created"`
	Pending       bool                 `json:"pending"`
	Actions       []Action             `json:"actions"`
}

// BuildCards renders a snapshot, keeping the snapshot's order.
func BuildCards(issues []*models.Issue, now time.Time) []Card {
	cards := make([]Card, 0, len(issues))
	for _, issue := range issues {
		cards = append(cards, NewCard(issue, now))
	}
	return cards
}

// NewCard renders one issue.
func NewCard(issue *models.Issue, now time.Time) Card {
	return Card{
		ID:            issue.ID,
		Title:         issue.Title,
		Description:   issue.Description,
		Status:        issue.Status,
		StatusLabel:   issue.Status.Label(),
		Priority:      issue.Priority,
		PriorityLabel: issue.Priority.Label(),
		AssignedTo:    issue.AssignedTo,
		CreatedBy:     issue.CreatedBy,
		Created:       FormatCreated(issue.CreatedAt, now),
		Pending:       issue.CreatedAt == nil,
		Actions:       Actions,
	}
}

// FormatCreated formats a creation time as an absolute local time plus a
// relative hint, or JustNow when the time is not assigned yet.
func FormatCreated(t *time.Time, now time.Time) string {
	if t == nil {
		return JustNow
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("Jan 2, 2006 15:04"), humanize.RelTime(*t, now, "ago", "from now"))
}
