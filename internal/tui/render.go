package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/tracker"
)

// View implements tea.Model.
func (m Model) View() string {
	var body string
	switch m.screen {
	case screenAuth:
		body = m.renderAuth()
	case screenDashboard:
		body = m.renderDashboard()
	default:
		body = lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("Loading…")
	}

	parts := []string{body}
	if m.confirm != nil {
		parts = append(parts, m.renderConfirm())
	}
	if m.notice != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(m.theme.noticeColor(m.notice.Level)).Render(m.notice.Message))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) header(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground).Render(text)
}

func (m Model) field(label string, in string, focused bool) string {
	border := m.theme.BorderColor
	if focused {
		border = m.theme.FocusBorderColor
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(48).
		Render(in)
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(label), box)
}

func (m Model) help(bindings ...key.Binding) string {
	var parts []string
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return lipgloss.NewStyle().Foreground(m.theme.HelpText).Render(strings.Join(parts, " • "))
}

func (m Model) renderAuth() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header("Tracker: sign in"),
		"",
		m.field("Email", m.email.View(), m.focus == focusEmail),
		m.field("Password", m.password.View(), m.focus == focusPassword),
		"",
		m.help(m.keys.NextField, m.keys.Submit, m.keys.SignUp, m.keys.Quit),
	)
}

func (m Model) renderDashboard() string {
	email := ""
	if m.user != nil {
		email = m.user.Email
	}
	priority := models.Priorities[m.priority]

	form := lipgloss.JoinVertical(lipgloss.Left,
		m.header("New issue"),
		m.field("Title", m.title.View(), m.focus == focusTitle),
		m.field("Description", m.description.View(), m.focus == focusDescription),
		m.field("Assignee", m.assign.View(), m.focus == focusAssignee),
		"Priority: "+lipgloss.NewStyle().Foreground(m.theme.priorityColor(priority)).Render(priority.Label()),
	)

	filter := models.StatusFilters[m.filter]
	listHeader := m.header(fmt.Sprintf("Issues (%s)", filter.Label()))
	if m.focus == focusList {
		listHeader += lipgloss.NewStyle().Foreground(m.theme.FocusBorderColor).Render("  ◆")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("Signed in as "+email),
		"",
		form,
		"",
		listHeader,
		m.renderList(),
		"",
		m.help(m.keys.NextField, m.keys.Submit, m.keys.Priority, m.keys.Filter, m.keys.Start, m.keys.Finish, m.keys.SignOut, m.keys.Quit),
	)
}

func (m Model) renderList() string {
	if len(m.cards) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("  No issues.")
	}
	var rows []string
	for i, c := range m.cards {
		rows = append(rows, m.renderCard(c, i == m.cursor && m.focus == focusList))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderCard(c tracker.Card, selected bool) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.NormalText)
	if selected {
		title = title.Background(m.theme.SelectedBackground).Foreground(m.theme.SelectedForeground)
	}
	status := lipgloss.NewStyle().Foreground(m.theme.statusColor(c.Status)).Render(c.StatusLabel)
	priority := lipgloss.NewStyle().Foreground(m.theme.priorityColor(c.Priority)).Render(c.PriorityLabel)
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)

	marker := "  "
	if selected {
		marker = "▸ "
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		marker+title.Render(c.Title),
		"  "+c.Description,
		"  "+status+" | "+priority+" | "+faint.Render("Assigned: "+c.AssignedTo),
		"  "+faint.Render("By "+c.CreatedBy+" | "+c.Created),
	)
}

func (m Model) renderConfirm() string {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(m.theme.NoticeWarning).
		Padding(0, 1).
		Render(m.confirm.prompt + "\n" + m.help(m.keys.Yes, m.keys.No))
}
