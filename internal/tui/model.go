package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/tracker"
)

// Client is what the dashboard drives. *tracker.Client implements it.
type Client interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	Submit(ctx context.Context, form tracker.Form) (*models.Issue, error)
	LoadIssues(ctx context.Context, filter models.StatusFilter) error
	Dispatch(ctx context.Context, issueID string, action tracker.Action) error
}

type screen int

const (
	screenLoading screen = iota
	screenAuth
	screenDashboard
)

// Focus regions. The auth panel uses the first two, the dashboard the rest.
type focus int

const (
	focusEmail focus = iota
	focusPassword
	focusTitle
	focusDescription
	focusAssignee
	focusList
)

var (
	authFocusOrder      = []focus{focusEmail, focusPassword}
	dashboardFocusOrder = []focus{focusTitle, focusDescription, focusAssignee, focusList}
)

// Model is the bubbletea model for the terminal dashboard.
type Model struct {
	ctx    context.Context
	client Client
	bridge *Bridge
	keys   KeyMap
	theme  Theme

	screen screen
	focus  focus
	user   *models.User

	email, password            textinput.Model
	title, description, assign textinput.Model
	priority                   int // index into models.Priorities
	filter                     int // index into models.StatusFilters

	cards  []tracker.Card
	cursor int

	notice  *tracker.Notice
	confirm *confirmMsg

	width, height int
}

func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Prompt = ""
	return in
}

// New creates the dashboard model. The bridge must be the view the client
// was built with.
func New(ctx context.Context, client Client, bridge *Bridge) Model {
	password := newInput("password", 128)
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return Model{
		ctx:         ctx,
		client:      client,
		bridge:      bridge,
		keys:        DefaultKeyMap,
		theme:       DefaultTheme,
		screen:      screenLoading,
		email:       newInput("you@example.com", 254),
		password:    password,
		title:       newInput("Title", 200),
		description: newInput("Description", 2000),
		assign:      newInput("Assignee", 100),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return listen(m.bridge.events, m.bridge.done)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.confirm != nil {
			return m.handleConfirmKeys(msg)
		}
		switch m.screen {
		case screenAuth:
			return m.handleAuthKeys(msg)
		case screenDashboard:
			return m.handleDashboardKeys(msg)
		}
		return m, nil
	}

	if m.handleEvent(msg) {
		cmd := m.focusCmd()
		return m, tea.Batch(cmd, listen(m.bridge.events, m.bridge.done))
	}
	return m, nil
}

// handleEvent applies a bridge message. It reports whether msg was one.
func (m *Model) handleEvent(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case signedOutMsg:
		m.screen = screenAuth
		m.user = nil
		m.cards = nil
		m.cursor = 0
		m.confirm = nil
		m.password.Reset()
		m.setFocus(focusEmail)
	case dashboardMsg:
		m.screen = screenDashboard
		m.user = msg.user
		m.password.Reset()
		m.setFocus(focusTitle)
	case issuesMsg:
		m.cards = msg.cards
		if m.cursor >= len(m.cards) {
			m.cursor = max(len(m.cards)-1, 0)
		}
	case resetFormMsg:
		m.title.Reset()
		m.description.Reset()
		m.assign.Reset()
		m.priority = 0
	case noticeMsg:
		n := msg.notice
		m.notice = &n
	case confirmMsg:
		m.confirm = &msg
	default:
		return false
	}
	return true
}

func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Yes), key.Matches(msg, m.keys.Submit):
		m.confirm.reply <- true
		m.confirm = nil
	case key.Matches(msg, m.keys.No):
		m.confirm.reply <- false
		m.confirm = nil
	}
	return m, nil
}

func (m Model) handleAuthKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField):
		m.cycleFocus(authFocusOrder, 1)
		cmd := m.focusCmd()
		return m, cmd
	case key.Matches(msg, m.keys.PrevField):
		m.cycleFocus(authFocusOrder, -1)
		cmd := m.focusCmd()
		return m, cmd
	case key.Matches(msg, m.keys.Submit):
		if m.focus == focusEmail {
			m.setFocus(focusPassword)
			cmd := m.focusCmd()
			return m, cmd
		}
		m.notice = nil
		email, password := m.email.Value(), m.password.Value()
		return m, m.run(func(ctx context.Context) error { return m.client.SignIn(ctx, email, password) })
	case key.Matches(msg, m.keys.SignUp):
		m.notice = nil
		email, password := m.email.Value(), m.password.Value()
		return m, m.run(func(ctx context.Context) error { return m.client.SignUp(ctx, email, password) })
	}
	return m.updateInput(msg)
}

func (m Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField):
		m.cycleFocus(dashboardFocusOrder, 1)
		cmd := m.focusCmd()
		return m, cmd
	case key.Matches(msg, m.keys.PrevField):
		m.cycleFocus(dashboardFocusOrder, -1)
		cmd := m.focusCmd()
		return m, cmd
	case key.Matches(msg, m.keys.SignOut):
		return m, m.run(m.client.SignOut)
	case key.Matches(msg, m.keys.Priority):
		m.priority = (m.priority + 1) % len(models.Priorities)
		return m, nil
	}

	if m.focus == focusList {
		return m.handleListKeys(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		m.notice = nil
		form := tracker.Form{
			Title:       m.title.Value(),
			Description: m.description.Value(),
			Priority:    string(models.Priorities[m.priority]),
			AssignedTo:  m.assign.Value(),
		}
		return m, m.run(func(ctx context.Context) error {
			_, err := m.client.Submit(ctx, form)
			return err
		})
	}
	return m.updateInput(msg)
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.cards)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Filter):
		m.filter = (m.filter + 1) % len(models.StatusFilters)
		m.cursor = 0
		filter := models.StatusFilters[m.filter]
		return m, m.run(func(ctx context.Context) error { return m.client.LoadIssues(ctx, filter) })
	case key.Matches(msg, m.keys.Start):
		return m, m.dispatch(tracker.ActionStart)
	case key.Matches(msg, m.keys.Finish):
		return m, m.dispatch(tracker.ActionFinish)
	}
	return m, nil
}

func (m Model) dispatch(action tracker.Action) tea.Cmd {
	if len(m.cards) == 0 {
		return nil
	}
	id := m.cards[m.cursor].ID
	return m.run(func(ctx context.Context) error { return m.client.Dispatch(ctx, id, action) })
}

// run performs a client call off the event loop. Outcomes come back
// through the bridge as notices and renders.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_ = fn(ctx)
		return nil
	}
}

func (m *Model) input(f focus) *textinput.Model {
	switch f {
	case focusEmail:
		return &m.email
	case focusPassword:
		return &m.password
	case focusTitle:
		return &m.title
	case focusDescription:
		return &m.description
	case focusAssignee:
		return &m.assign
	}
	return nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	in := m.input(m.focus)
	if in == nil {
		return m, nil
	}
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	return m, cmd
}

func (m *Model) setFocus(f focus) {
	for _, other := range []focus{focusEmail, focusPassword, focusTitle, focusDescription, focusAssignee} {
		m.input(other).Blur()
	}
	m.focus = f
}

// focusCmd focuses the input under the current focus region.
func (m *Model) focusCmd() tea.Cmd {
	if in := m.input(m.focus); in != nil {
		return in.Focus()
	}
	return nil
}

func (m *Model) cycleFocus(order []focus, step int) {
	i := 0
	for j, f := range order {
		if f == m.focus {
			i = j
			break
		}
	}
	i = (i + step + len(order)) % len(order)
	m.setFocus(order[i])
}

// Run starts the dashboard and blocks until the user quits or ctx ends.
func Run(ctx context.Context, client Client, bridge *Bridge) error {
	p := tea.NewProgram(New(ctx, client, bridge), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
