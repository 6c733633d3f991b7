package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joescharf/tracker/internal/auth"
	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
)

// state is everything the client tracks between events. Only the fields
// under Client.mu are read or written after Start.
type state struct {
	user       *models.User
	filter     models.StatusFilter
	sub        store.Subscription
	generation uint64
	cards      []Card
}

type actionHandler func(ctx context.Context, card Card) error

// Client drives one user's session: it follows the identity provider,
// keeps a live subscription for the selected filter, and routes form
// submissions and workflow actions to the store.
type Client struct {
	store     store.Store
	auth      auth.Provider
	view      View
	submitter *Submitter
	confirm   Confirmer
	finder    DuplicateFinder
	logger    *slog.Logger
	now       func() time.Time
	actions   map[Action]actionHandler

	mu          sync.Mutex
	state       state
	ctx         context.Context
	unsubscribe func()
}

// Option configures a Client.
type Option func(*Client)

// WithConfirmer sets how duplicate warnings are answered. The default
// declines.
func WithConfirmer(c Confirmer) Option {
	return func(cl *Client) { cl.confirm = c }
}

// WithDuplicateFinder replaces the exact-title duplicate check.
func WithDuplicateFinder(f DuplicateFinder) Option {
	return func(cl *Client) { cl.finder = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithClock sets the clock used for relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// WithFilter sets the filter the first load uses.
func WithFilter(f models.StatusFilter) Option {
	return func(cl *Client) { cl.state.filter = f }
}

// New creates a Client. Call Start to begin following auth state.
func New(s store.Store, p auth.Provider, v View, opts ...Option) *Client {
	c := &Client{
		store:   s,
		auth:    p,
		view:    v,
		confirm: Decline,
		logger:  slog.Default(),
		now:     time.Now,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.submitter = NewSubmitter(s, c.finder, c.logger)
	c.actions = map[Action]actionHandler{
		ActionStart:  c.moveTo(ActionStart.Target()),
		ActionFinish: c.moveTo(ActionFinish.Target()),
	}
	return c
}

// Start registers with the identity provider. The view is switched right
// away to match the current auth state. Subscriptions opened later live
// until ctx is done, sign-out, or Close.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	unsubscribe := c.auth.OnAuthStateChanged(c.onAuthState)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Close stops following auth state and releases the live subscription.
func (c *Client) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.stopSubscription()
}

func (c *Client) onAuthState(u *models.User) {
	c.mu.Lock()
	c.state.user = u
	filter := c.state.filter
	ctx := c.ctx
	c.mu.Unlock()

	if u == nil {
		c.stopSubscription()
		c.view.ShowSignedOut()
		return
	}

	c.view.ShowDashboard(u)
	if err := c.LoadIssues(ctx, filter); err != nil {
		c.logger.Error("load issues", "error", err)
		c.view.Notify(Notice{Level: LevelError, Message: "Failed to load issues."})
	}
}

// stopSubscription drops the live query and the cards it rendered.
func (c *Client) stopSubscription() {
	c.mu.Lock()
	sub := c.state.sub
	c.state.sub = nil
	c.state.generation++
	c.state.cards = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Stop()
	}
}

// SignIn signs in with the provider. The view switches through the auth
// state listener; a failure is shown as an error notice and returned.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	if _, err := c.auth.SignIn(ctx, email, password); err != nil {
		c.view.Notify(Notice{Level: LevelError, Message: UserMessage(err)})
		return err
	}
	return nil
}

// SignUp registers and signs in.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	if _, err := c.auth.SignUp(ctx, email, password); err != nil {
		c.view.Notify(Notice{Level: LevelError, Message: UserMessage(err)})
		return err
	}
	return nil
}

// SignOut ends the session.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.auth.SignOut(ctx); err != nil {
		c.view.Notify(Notice{Level: LevelError, Message: UserMessage(err)})
		return err
	}
	return nil
}

// User returns the signed-in user or nil.
func (c *Client) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.user
}

// Filter returns the selected filter.
func (c *Client) Filter() models.StatusFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.filter
}

// Cards returns the currently rendered list.
func (c *Client) Cards() []Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Card, len(c.state.cards))
	copy(out, c.state.cards)
	return out
}

// LoadIssues replaces the live subscription with one for filter that lives
// until ctx is done. The previous subscription is stopped first, so only
// snapshots of the newest filter are ever rendered. Signed out, the filter
// is only remembered.
func (c *Client) LoadIssues(ctx context.Context, filter models.StatusFilter) error {
	c.mu.Lock()
	old := c.state.sub
	c.state.sub = nil
	c.state.filter = filter
	c.state.generation++
	gen := c.state.generation
	user := c.state.user
	c.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if user == nil {
		return nil
	}

	sub, err := c.store.Subscribe(ctx, store.QueryFor(filter), func(snap store.Snapshot, err error) {
		c.onSnapshot(gen, snap, err)
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	c.mu.Lock()
	if c.state.generation != gen {
		// A newer load or a sign-out won the race.
		c.mu.Unlock()
		sub.Stop()
		return nil
	}
	c.state.sub = sub
	c.mu.Unlock()
	return nil
}

func (c *Client) onSnapshot(gen uint64, snap store.Snapshot, err error) {
	if err != nil {
		c.logger.Error("issue snapshot", "error", err)
		return
	}
	cards := BuildCards(snap.Issues, c.now())

	c.mu.Lock()
	if gen != c.state.generation {
		c.mu.Unlock()
		return
	}
	c.state.cards = cards
	c.mu.Unlock()

	c.view.RenderIssues(cards)
}

// Submit runs the submission flow for the signed-in user. On success the
// form is reset; every outcome is reported to the view.
func (c *Client) Submit(ctx context.Context, form Form) (*models.Issue, error) {
	issue, err := c.submitter.Submit(ctx, c.User(), form, c.confirm)
	switch {
	case err == nil:
		c.view.ResetForm()
		c.view.Notify(Notice{Level: LevelSuccess, Message: "Issue created."})
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotSignedIn):
		c.view.Notify(Notice{Level: LevelWarning, Message: UserMessage(err)})
	case errors.Is(err, ErrSubmissionDeclined):
		c.view.Notify(Notice{Level: LevelInfo, Message: MsgSubmitDeclined})
	default:
		c.view.Notify(Notice{Level: LevelError, Message: MsgCreateFailed})
	}
	return issue, err
}

// Transition requests a status change for issue id, whose displayed status
// is current.
func (c *Client) Transition(ctx context.Context, id string, current, requested models.IssueStatus) error {
	if c.User() == nil {
		c.view.Notify(Notice{Level: LevelWarning, Message: MsgNotSignedIn})
		return ErrNotSignedIn
	}

	err := Transition(ctx, c.store, id, current, requested)
	switch {
	case err == nil:
		c.view.Notify(Notice{Level: LevelSuccess, Message: "Moved to " + requested.Label() + "."})
	case errors.Is(err, ErrRuleViolation), errors.Is(err, ErrInvalidInput):
		c.view.Notify(Notice{Level: LevelWarning, Message: UserMessage(err)})
	default:
		c.logger.Error("update issue status", "id", id, "status", requested, "error", err)
		c.view.Notify(Notice{Level: LevelError, Message: MsgUpdateFailed})
	}
	return err
}

// Dispatch runs a workflow action on an issue from the rendered list. The
// rule is checked against the status the list displays.
func (c *Client) Dispatch(ctx context.Context, issueID string, action Action) error {
	handler, ok := c.actions[action]
	if !ok {
		return &ValidationError{Field: "action", Message: fmt.Sprintf("Unknown action %q", action)}
	}
	card, ok := c.card(issueID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInView, issueID)
	}
	return handler(ctx, card)
}

func (c *Client) moveTo(status models.IssueStatus) actionHandler {
	return func(ctx context.Context, card Card) error {
		return c.Transition(ctx, card.ID, card.Status, status)
	}
}

func (c *Client) card(id string) (Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, card := range c.state.cards {
		if card.ID == id {
			return card, true
		}
	}
	return Card{}, false
}
