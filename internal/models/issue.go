package models

import (
	"fmt"
	"strings"
	"time"
)

// IssueStatus represents the workflow state of an issue.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusDone       IssueStatus = "done"
)

// Statuses lists every workflow state in order.
var Statuses = []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusDone}

// Label returns the display form of the status ("In Progress").
func (s IssueStatus) Label() string {
	switch s {
	case IssueStatusOpen:
		return "Open"
	case IssueStatusInProgress:
		return "In Progress"
	case IssueStatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusDone:
		return true
	}
	return false
}

// ParseStatus accepts both the stored form ("in_progress") and the label
// form ("In Progress"), case-insensitively.
func ParseStatus(s string) (IssueStatus, error) {
	switch normalize(s) {
	case "open":
		return IssueStatusOpen, nil
	case "in_progress":
		return IssueStatusInProgress, nil
	case "done":
		return IssueStatusDone, nil
	}
	return "", fmt.Errorf("unknown status: %q", s)
}

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "low"
	IssuePriorityMedium IssuePriority = "medium"
	IssuePriorityHigh   IssuePriority = "high"
)

// DefaultPriority is what the submission form resets to.
const DefaultPriority = IssuePriorityLow

// Label returns the display form of the priority.
func (p IssuePriority) Label() string {
	switch p {
	case IssuePriorityLow:
		return "Low"
	case IssuePriorityMedium:
		return "Medium"
	case IssuePriorityHigh:
		return "High"
	default:
		return string(p)
	}
}

// ParsePriority parses a priority name case-insensitively. An empty string
// yields DefaultPriority.
func ParsePriority(s string) (IssuePriority, error) {
	switch normalize(s) {
	case "":
		return DefaultPriority, nil
	case "low":
		return IssuePriorityLow, nil
	case "medium":
		return IssuePriorityMedium, nil
	case "high":
		return IssuePriorityHigh, nil
	}
	return "", fmt.Errorf("unknown priority: %q", s)
}

// Priorities lists the priorities in form-cycling order.
var Priorities = []IssuePriority{IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh}

// StatusFilter selects which issues the live list shows. The zero value is
// StatusFilterAll.
type StatusFilter struct {
	Status IssueStatus
}

// StatusFilterAll matches every issue.
var StatusFilterAll = StatusFilter{}

// FilterFor returns a filter restricted to one status.
func FilterFor(s IssueStatus) StatusFilter {
	return StatusFilter{Status: s}
}

// IsAll reports whether the filter is the "All" sentinel.
func (f StatusFilter) IsAll() bool { return f.Status == "" }

// Label returns "All" or the status label.
func (f StatusFilter) Label() string {
	if f.IsAll() {
		return "All"
	}
	return f.Status.Label()
}

// ParseStatusFilter parses "All" (or an empty string) as the sentinel and
// anything else as a status.
func ParseStatusFilter(s string) (StatusFilter, error) {
	if n := normalize(s); n == "" || n == "all" {
		return StatusFilterAll, nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return StatusFilter{}, err
	}
	return FilterFor(st), nil
}

// StatusFilters lists the filter choices in selector order.
var StatusFilters = []StatusFilter{
	StatusFilterAll,
	FilterFor(IssueStatusOpen),
	FilterFor(IssueStatusInProgress),
	FilterFor(IssueStatusDone),
}

// Issue is a tracked work item.
type Issue struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    IssuePriority `json:"priority"`
	AssignedTo  string        `json:"assignedTo"`
	Status      IssueStatus   `json:"status"`
	CreatedBy   string        `json:"createdBy"`
	CreatedAt   *time.Time    `json:"createdAt"` // nil until the store assigns it
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
