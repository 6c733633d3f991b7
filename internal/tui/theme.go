package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/tracker"
)

// Theme defines the color palette for the dashboard. Colors are ANSI
// 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	PriorityHigh   lipgloss.Color
	PriorityMedium lipgloss.Color
	PriorityLow    lipgloss.Color

	StatusOpen       lipgloss.Color
	StatusInProgress lipgloss.Color
	StatusDone       lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	FocusBorderColor lipgloss.Color
	HelpText         lipgloss.Color

	NoticeInfo    lipgloss.Color
	NoticeSuccess lipgloss.Color
	NoticeWarning lipgloss.Color
	NoticeError   lipgloss.Color
}

// DefaultTheme works on dark terminals.
var DefaultTheme = Theme{
	NormalText:         lipgloss.Color("252"),
	FaintText:          lipgloss.Color("243"),
	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),
	PriorityHigh:       lipgloss.Color("196"),
	PriorityMedium:     lipgloss.Color("214"),
	PriorityLow:        lipgloss.Color("71"),
	StatusOpen:         lipgloss.Color("114"),
	StatusInProgress:   lipgloss.Color("221"),
	StatusDone:         lipgloss.Color("81"),
	HeaderForeground:   lipgloss.Color("75"),
	BorderColor:        lipgloss.Color("240"),
	FocusBorderColor:   lipgloss.Color("75"),
	HelpText:           lipgloss.Color("241"),
	NoticeInfo:         lipgloss.Color("75"),
	NoticeSuccess:      lipgloss.Color("114"),
	NoticeWarning:      lipgloss.Color("221"),
	NoticeError:        lipgloss.Color("203"),
}

func (t Theme) priorityColor(p models.IssuePriority) lipgloss.Color {
	switch p {
	case models.IssuePriorityHigh:
		return t.PriorityHigh
	case models.IssuePriorityMedium:
		return t.PriorityMedium
	default:
		return t.PriorityLow
	}
}

func (t Theme) statusColor(s models.IssueStatus) lipgloss.Color {
	switch s {
	case models.IssueStatusInProgress:
		return t.StatusInProgress
	case models.IssueStatusDone:
		return t.StatusDone
	default:
		return t.StatusOpen
	}
}

func (t Theme) noticeColor(l tracker.Level) lipgloss.Color {
	switch l {
	case tracker.LevelSuccess:
		return t.NoticeSuccess
	case tracker.LevelWarning:
		return t.NoticeWarning
	case tracker.LevelError:
		return t.NoticeError
	default:
		return t.NoticeInfo
	}
}
