package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/output"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

var (
	issueTitle    string
	issueDesc     string
	issuePriority string
	issueAssignee string
	issueStatus   string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Submit and track issues",
	Long:  "Submit issues and move them through Open -> In Progress -> Done.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Submit a new issue",
	Long: `Submit a new issue. If an issue with a similar title already exists you
are asked whether to create it anyway (--yes answers yes).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(cmd.Context())
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(cmd.Context(), args[0])
	},
}

var issueStartCmd = &cobra.Command{
	Use:   "start <issue-id>",
	Short: "Move an issue to In Progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueTransitionRun(cmd.Context(), args[0], tracker.ActionStart)
	},
}

var issueDoneCmd = &cobra.Command{
	Use:   "done <issue-id>",
	Short: "Move an issue to Done",
	Long:  "Move an issue to Done. Open issues must be started first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueTransitionRun(cmd.Context(), args[0], tracker.ActionFinish)
	},
}

var issueWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live issue list until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueWatchRun(cmd.Context())
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description (required)")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", string(models.DefaultPriority), "Priority: low, medium, high")
	issueAddCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Who should work on it (required)")

	for _, c := range []*cobra.Command{issueCmd, issueListCmd, issueWatchCmd} {
		c.Flags().StringVar(&issueStatus, "status", "", "Filter by status: open, in_progress, done")
	}

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueStartCmd)
	issueCmd.AddCommand(issueDoneCmd)
	issueCmd.AddCommand(issueWatchCmd)
	rootCmd.AddCommand(issueCmd)
}

// promptConfirmer asks on the terminal.
var promptConfirmer = tracker.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
	return ui.Confirm(prompt)
})

func issueAddRun(ctx context.Context) error {
	form := tracker.Form{
		Title:       issueTitle,
		Description: issueDesc,
		Priority:    issuePriority,
		AssignedTo:  issueAssignee,
	}
	draft, err := form.Validate()
	if err != nil {
		return errors.New(tracker.UserMessage(err))
	}

	u, err := requireUser(ctx)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add issue: %s [%s] assigned to %s", draft.Title, draft.Priority.Label(), draft.AssignedTo)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	submitter := tracker.NewSubmitter(s, duplicateFinder(), logger)
	issue, err := submitter.Submit(ctx, u, form, promptConfirmer)
	switch {
	case errors.Is(err, tracker.ErrSubmissionDeclined):
		ui.Info(tracker.MsgSubmitDeclined)
		return nil
	case err != nil:
		return errors.New(tracker.UserMessage(err))
	}

	ui.Success("Created issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

func issueFilter() (models.StatusFilter, error) {
	f, err := models.ParseStatusFilter(issueStatus)
	if err != nil {
		return models.StatusFilterAll, fmt.Errorf("invalid --status: %w", err)
	}
	return f, nil
}

func issueListRun(ctx context.Context) error {
	filter, err := issueFilter()
	if err != nil {
		return err
	}
	if _, err := requireUser(ctx); err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	issues, err := s.ListIssues(ctx, store.QueryFor(filter))
	if err != nil {
		return err
	}
	renderIssueTable(tracker.BuildCards(issues, time.Now()))
	return nil
}

func renderIssueTable(cards []tracker.Card) {
	if len(cards) == 0 {
		ui.Info("No issues found.")
		return
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Assignee", "Created By", "Created"})
	for _, c := range cards {
		_ = table.Append([]string{
			shortID(c.ID),
			c.Title,
			output.StatusColor(c.Status),
			output.PriorityColor(c.Priority),
			c.AssignedTo,
			c.CreatedBy,
			c.Created,
		})
	}
	_ = table.Render()
}

func issueShowRun(ctx context.Context, ref string) error {
	if _, err := requireUser(ctx); err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	issue, err := tracker.ResolveIssue(ctx, s, ref)
	if err != nil {
		return err
	}
	c := tracker.NewCard(issue, time.Now())

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(c.ID)), c.Title)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(c.Status))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(c.Priority))
	fmt.Fprintf(ui.Out, "  Assigned:   %s\n", c.AssignedTo)
	fmt.Fprintf(ui.Out, "  Desc:       %s\n", c.Description)
	fmt.Fprintf(ui.Out, "  Created by: %s\n", c.CreatedBy)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", c.Created)
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", c.ID)
	return nil
}

func issueTransitionRun(ctx context.Context, ref string, action tracker.Action) error {
	if _, err := requireUser(ctx); err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	issue, err := tracker.ResolveIssue(ctx, s, ref)
	if err != nil {
		return err
	}
	target := action.Target()

	if err := tracker.CheckTransition(issue.Status, target); err != nil {
		return errors.New(tracker.UserMessage(err))
	}
	if dryRun {
		ui.DryRunMsg("Would move issue %s from %s to %s", shortID(issue.ID), issue.Status.Label(), target.Label())
		return nil
	}

	if err := tracker.Transition(ctx, s, issue.ID, issue.Status, target); err != nil {
		if errors.Is(err, tracker.ErrWriteFailed) {
			logger.Error("transition failed", "issue", issue.ID, "error", err)
			return errors.New(tracker.MsgUpdateFailed)
		}
		return err
	}
	ui.Success("Moved %s to %s", output.Cyan(shortID(issue.ID)), output.StatusColor(target))
	return nil
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// cliView redraws the issue table on every snapshot.
type cliView struct {
	mu        sync.Mutex
	filter    models.StatusFilter
	signedOut chan struct{}
	once      sync.Once
}

func (v *cliView) ShowSignedOut() {
	v.once.Do(func() { close(v.signedOut) })
}

func (v *cliView) ShowDashboard(u *models.User) {
	ui.VerboseLog("Watching issues as %s", u.Email)
}

func (v *cliView) RenderIssues(cards []tracker.Card) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprint(ui.Out, "\033[H\033[2J")
	ui.Info("Issues (%s), %d shown, updated %s. Ctrl-C to stop.", v.filter.Label(), len(cards), time.Now().Format("15:04:05"))
	fmt.Fprintln(ui.Out)
	renderIssueTable(cards)
}

func (v *cliView) ResetForm() {}

func (v *cliView) Notify(n tracker.Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch n.Level {
	case tracker.LevelError:
		ui.Error("%s", n.Message)
	case tracker.LevelWarning:
		ui.Warning("%s", n.Message)
	case tracker.LevelSuccess:
		ui.Success("%s", n.Message)
	default:
		ui.Info("%s", n.Message)
	}
}

func issueWatchRun(ctx context.Context) error {
	filter, err := issueFilter()
	if err != nil {
		return err
	}
	if _, err := requireUser(ctx); err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	view := &cliView{filter: filter, signedOut: make(chan struct{})}
	p, err := getProvider(ctx)
	if err != nil {
		return err
	}
	client := tracker.New(s, p, view,
		tracker.WithFilter(filter),
		tracker.WithLogger(logger),
	)
	client.Start(ctx)
	defer client.Close()

	select {
	case <-ctx.Done():
		fmt.Fprintln(ui.Out)
		return nil
	case <-view.signedOut:
		return fmt.Errorf("%w (run 'tracker login')", tracker.ErrNotSignedIn)
	}
}
