package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joescharf/tracker/internal/auth"
	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestProvider(t *testing.T, s store.Store) *auth.LocalProvider {
	t.Helper()
	dir := auth.NewDirectory(s, auth.WithHashCost(bcrypt.MinCost))
	p, err := auth.NewLocalProvider(context.Background(), dir, filepath.Join(t.TempDir(), "session"))
	require.NoError(t, err)
	return p
}

type fakeView struct {
	mu      sync.Mutex
	screens []string
	renders [][]Card
	resets  int
	notices []Notice
}

func (v *fakeView) ShowSignedOut() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.screens = append(v.screens, "signed-out")
}

func (v *fakeView) ShowDashboard(u *models.User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.screens = append(v.screens, "dashboard:"+u.Email)
}

func (v *fakeView) RenderIssues(cards []Card) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renders = append(v.renders, cards)
}

func (v *fakeView) ResetForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resets++
}

func (v *fakeView) Notify(n Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, n)
}

func (v *fakeView) renderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.renders)
}

func (v *fakeView) lastRender() []Card {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.renders) == 0 {
		return nil
	}
	return v.renders[len(v.renders)-1]
}

func (v *fakeView) lastNotice() Notice {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.notices) == 0 {
		return Notice{}
	}
	return v.notices[len(v.notices)-1]
}

func (v *fakeView) screenLog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.screens...)
}

// waitForTitles waits until the last render shows exactly titles.
func waitForTitles(t *testing.T, v *fakeView, titles ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		cards := v.lastRender()
		if cards == nil || len(cards) != len(titles) {
			return false
		}
		for i, c := range cards {
			if c.Title != titles[i] {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

type failingStore struct {
	store.Store
	addErr    error
	updateErr error
	listErr   error
}

func (f *failingStore) AddIssue(ctx context.Context, issue *models.Issue) error {
	if f.addErr != nil {
		return f.addErr
	}
	return f.Store.AddIssue(ctx, issue)
}

func (f *failingStore) UpdateIssue(ctx context.Context, id string, patch store.IssuePatch) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Store.UpdateIssue(ctx, id, patch)
}

func (f *failingStore) ListIssues(ctx context.Context, q store.IssueQuery) ([]*models.Issue, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListIssues(ctx, q)
}

var testUser = &models.User{ID: "u1", Email: "dev@example.com"}

func validForm(title string) Form {
	return Form{Title: title, Description: "Steps to reproduce", Priority: "High", AssignedTo: "sam"}
}

func TestForm_Validate(t *testing.T) {
	tests := []struct {
		name string
		form Form
		msg  string
	}{
		{"blank title", Form{Title: "   ", Description: "d", AssignedTo: "a"}, "Title is required"},
		{"blank description", Form{Title: "t", Description: "\t", AssignedTo: "a"}, "Description is required"},
		{"blank assignee", Form{Title: "t", Description: "d", AssignedTo: " "}, "Assignee is required"},
		{"bad priority", Form{Title: "t", Description: "d", AssignedTo: "a", Priority: "urgent"}, "Priority must be Low, Medium or High"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.form.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, tt.msg, UserMessage(err))
		})
	}

	d, err := Form{Title: "  Crash  ", Description: " boom ", AssignedTo: " sam "}.Validate()
	require.NoError(t, err)
	assert.Equal(t, Draft{Title: "Crash", Description: "boom", Priority: models.IssuePriorityLow, AssignedTo: "sam"}, d)
}

func TestSubmitter_WritesOpenIssue(t *testing.T) {
	s := newTestStore(t)
	sub := NewSubmitter(s, nil, nil)

	issue, err := sub.Submit(context.Background(), testUser, validForm("Login broken"), Decline)
	require.NoError(t, err)
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, models.IssueStatusOpen, issue.Status)
	assert.Equal(t, models.IssuePriorityHigh, issue.Priority)
	assert.Equal(t, "dev@example.com", issue.CreatedBy)
	require.NotNil(t, issue.CreatedAt)
}

func TestSubmitter_RejectsWithoutWriting(t *testing.T) {
	s := newTestStore(t)
	sub := NewSubmitter(s, nil, nil)
	ctx := context.Background()

	_, err := sub.Submit(ctx, testUser, Form{Title: " ", Description: "d", AssignedTo: "a"}, Accept)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = sub.Submit(ctx, nil, validForm("No user"), Accept)
	assert.ErrorIs(t, err, ErrNotSignedIn)

	all, err := s.ListIssues(ctx, store.IssueQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmitter_DuplicateHint(t *testing.T) {
	s := newTestStore(t)
	sub := NewSubmitter(s, nil, nil)
	ctx := context.Background()

	first, err := sub.Submit(ctx, testUser, validForm("Fix login"), Decline)
	require.NoError(t, err)
	// The check covers every status, not just the visible filter.
	done := models.IssueStatusDone
	require.NoError(t, s.UpdateIssue(ctx, first.ID, store.IssuePatch{Status: &done}))

	var prompts []string
	declined := ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		prompts = append(prompts, prompt)
		return false, nil
	})
	_, err = sub.Submit(ctx, testUser, validForm("  fix LOGIN "), declined)
	assert.ErrorIs(t, err, ErrSubmissionDeclined)
	assert.Equal(t, []string{MsgDuplicateHint}, prompts)

	_, err = sub.Submit(ctx, testUser, validForm("FIX LOGIN"), nil)
	assert.ErrorIs(t, err, ErrSubmissionDeclined, "nil confirmer declines")

	_, err = sub.Submit(ctx, testUser, validForm("fix login"), Accept)
	require.NoError(t, err)

	all, err := s.ListIssues(ctx, store.IssueQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSubmitter_DuplicateReadFailureDoesNotBlock(t *testing.T) {
	s := &failingStore{Store: newTestStore(t), listErr: errors.New("offline")}
	sub := NewSubmitter(s, nil, nil)

	prompted := false
	confirm := ConfirmFunc(func(context.Context, string) (bool, error) {
		prompted = true
		return false, nil
	})
	_, err := sub.Submit(context.Background(), testUser, validForm("Anything"), confirm)
	require.NoError(t, err)
	assert.False(t, prompted)
}

func TestSubmitter_WriteFailure(t *testing.T) {
	s := &failingStore{Store: newTestStore(t), addErr: errors.New("permission denied")}
	sub := NewSubmitter(s, nil, nil)

	_, err := sub.Submit(context.Background(), testUser, validForm("Anything"), Accept)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, MsgCreateFailed, UserMessage(err))
}

func TestCheckTransition(t *testing.T) {
	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			err := CheckTransition(from, to)
			if from == models.IssueStatusOpen && to == models.IssueStatusDone {
				assert.ErrorIs(t, err, ErrRuleViolation)
				assert.Equal(t, MsgOpenToDone, UserMessage(err))
				continue
			}
			assert.NoError(t, err, "%s -> %s", from, to)
		}
	}

	assert.ErrorIs(t, CheckTransition("blocked", models.IssueStatusDone), ErrInvalidInput)
	assert.ErrorIs(t, CheckTransition(models.IssueStatusOpen, "archived"), ErrInvalidInput)
}

func TestTransition_WritesOnlyStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issue, err := NewSubmitter(s, nil, nil).Submit(ctx, testUser, validForm("Slow page"), Accept)
	require.NoError(t, err)

	err = Transition(ctx, s, issue.ID, models.IssueStatusOpen, models.IssueStatusDone)
	assert.ErrorIs(t, err, ErrRuleViolation)
	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusOpen, got.Status)

	require.NoError(t, Transition(ctx, s, issue.ID, models.IssueStatusOpen, models.IssueStatusInProgress))
	require.NoError(t, Transition(ctx, s, issue.ID, models.IssueStatusInProgress, models.IssueStatusDone))

	got, err = s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusDone, got.Status)
	assert.Equal(t, issue.Title, got.Title)
	assert.Equal(t, issue.AssignedTo, got.AssignedTo)
	assert.Equal(t, issue.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())

	err = Transition(ctx, s, "missing", models.IssueStatusOpen, models.IssueStatusInProgress)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFormatCreated(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, JustNow, FormatCreated(nil, now))

	created := now.Add(-2 * time.Hour)
	got := FormatCreated(&created, now)
	assert.Contains(t, got, "2026")
	assert.Contains(t, got, "(2 hours ago)")
}

func TestBuildCards(t *testing.T) {
	now := time.Now()
	created := now.Add(-time.Minute)
	cards := BuildCards([]*models.Issue{
		{ID: "b", Title: "Pending", Status: models.IssueStatusOpen, Priority: models.IssuePriorityLow},
		{ID: "a", Title: "Older", Status: models.IssueStatusInProgress, Priority: models.IssuePriorityHigh, CreatedAt: &created},
	}, now)

	require.Len(t, cards, 2)
	assert.Equal(t, "Pending", cards[0].Title)
	assert.True(t, cards[0].Pending)
	assert.Equal(t, JustNow, cards[0].Created)
	assert.Equal(t, "In Progress", cards[1].StatusLabel)
	assert.Equal(t, "High", cards[1].PriorityLabel)
	assert.Equal(t, []Action{ActionStart, ActionFinish}, cards[1].Actions)
	assert.Empty(t, BuildCards(nil, now))
}

func TestClient_SessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	p := newTestProvider(t, s)
	v := &fakeView{}
	ctx := context.Background()

	c := New(s, p, v, WithConfirmer(Accept))
	c.Start(ctx)
	t.Cleanup(c.Close)
	assert.Equal(t, []string{"signed-out"}, v.screenLog())

	err := c.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, Notice{Level: LevelError, Message: "auth: invalid credentials"}, v.lastNotice())

	require.NoError(t, c.SignUp(ctx, "dev@example.com", "secret1"))
	assert.Equal(t, []string{"signed-out", "dashboard:dev@example.com"}, v.screenLog())
	require.Eventually(t, func() bool { return v.renderCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, v.lastRender())

	_, err = c.Submit(ctx, validForm("First"))
	require.NoError(t, err)
	waitForTitles(t, v, "First")
	assert.Equal(t, "dev@example.com", v.lastRender()[0].CreatedBy)

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, "signed-out", v.screenLog()[2])
	assert.Empty(t, c.Cards())

	rendered := v.renderCount()
	_, err = NewSubmitter(s, nil, nil).Submit(ctx, testUser, validForm("While away"), Accept)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, rendered, v.renderCount(), "no renders after sign-out")
}

func TestClient_SubmitNotices(t *testing.T) {
	base := newTestStore(t)
	s := &failingStore{Store: base}
	p := newTestProvider(t, base)
	v := &fakeView{}
	ctx := context.Background()

	c := New(s, p, v, WithConfirmer(Decline))
	c.Start(ctx)
	t.Cleanup(c.Close)

	_, err := c.Submit(ctx, validForm("Signed out"))
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Equal(t, Notice{Level: LevelWarning, Message: MsgNotSignedIn}, v.lastNotice())

	require.NoError(t, c.SignUp(ctx, "dev@example.com", "secret1"))

	_, err = c.Submit(ctx, Form{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, Notice{Level: LevelWarning, Message: "Description is required"}, v.lastNotice())
	assert.Zero(t, v.resets)

	_, err = c.Submit(ctx, validForm("Once"))
	require.NoError(t, err)
	assert.Equal(t, 1, v.resets)

	_, err = c.Submit(ctx, validForm("once"))
	assert.ErrorIs(t, err, ErrSubmissionDeclined)
	assert.Equal(t, Notice{Level: LevelInfo, Message: MsgSubmitDeclined}, v.lastNotice())

	s.addErr = errors.New("quota exceeded")
	_, err = c.Submit(ctx, validForm("Another"))
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, Notice{Level: LevelError, Message: MsgCreateFailed}, v.lastNotice())
	assert.Equal(t, 1, v.resets, "form kept on failure")
}

func TestClient_FilterAndDispatch(t *testing.T) {
	s := newTestStore(t)
	p := newTestProvider(t, s)
	v := &fakeView{}
	ctx := context.Background()

	c := New(s, p, v, WithConfirmer(Accept))
	c.Start(ctx)
	t.Cleanup(c.Close)
	require.NoError(t, c.SignUp(ctx, "dev@example.com", "secret1"))

	_, err := c.Submit(ctx, validForm("Alpha"))
	require.NoError(t, err)
	waitForTitles(t, v, "Alpha")
	id := v.lastRender()[0].ID

	err = c.Dispatch(ctx, id, ActionFinish)
	assert.ErrorIs(t, err, ErrRuleViolation)
	assert.Equal(t, Notice{Level: LevelWarning, Message: MsgOpenToDone}, v.lastNotice())

	require.NoError(t, c.LoadIssues(ctx, models.FilterFor(models.IssueStatusInProgress)))
	waitForTitles(t, v)
	assert.Equal(t, models.FilterFor(models.IssueStatusInProgress), c.Filter())

	err = c.Dispatch(ctx, id, ActionStart)
	assert.ErrorIs(t, err, ErrNotInView, "card is filtered out")

	require.NoError(t, c.LoadIssues(ctx, models.StatusFilterAll))
	waitForTitles(t, v, "Alpha")
	require.NoError(t, c.Dispatch(ctx, id, ActionStart))
	require.Eventually(t, func() bool {
		cards := c.Cards()
		return len(cards) == 1 && cards[0].Status == models.IssueStatusInProgress
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Dispatch(ctx, id, ActionFinish))
	got, err := s.GetIssue(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusDone, got.Status)

	assert.ErrorIs(t, c.Dispatch(ctx, id, Action("archive")), ErrInvalidInput)
}

func TestClient_TransitionWriteFailure(t *testing.T) {
	base := newTestStore(t)
	s := &failingStore{Store: base, updateErr: errors.New("denied")}
	p := newTestProvider(t, base)
	v := &fakeView{}
	ctx := context.Background()

	c := New(s, p, v)
	c.Start(ctx)
	t.Cleanup(c.Close)

	err := c.Transition(ctx, "any", models.IssueStatusOpen, models.IssueStatusInProgress)
	assert.ErrorIs(t, err, ErrNotSignedIn)

	require.NoError(t, c.SignUp(ctx, "dev@example.com", "secret1"))
	err = c.Transition(ctx, "any", models.IssueStatusOpen, models.IssueStatusInProgress)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, Notice{Level: LevelError, Message: MsgUpdateFailed}, v.lastNotice())
}

func TestClient_DropsStaleSnapshots(t *testing.T) {
	s := newTestStore(t)
	p := newTestProvider(t, s)
	v := &fakeView{}
	ctx := context.Background()

	c := New(s, p, v)
	c.Start(ctx)
	t.Cleanup(c.Close)
	require.NoError(t, c.SignUp(ctx, "dev@example.com", "secret1"))
	require.Eventually(t, func() bool { return v.renderCount() == 1 }, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	stale := c.state.generation - 1
	c.mu.Unlock()

	c.onSnapshot(stale, store.Snapshot{Issues: []*models.Issue{{ID: "x", Title: "Ghost"}}}, nil)
	assert.Equal(t, 1, v.renderCount())
	assert.Empty(t, c.Cards())
}
