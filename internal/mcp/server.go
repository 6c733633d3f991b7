package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// UserSource reports who the tools act as.
type UserSource interface {
	CurrentUser() *models.User
}

// Server exposes the tracker as MCP tools, acting as the signed-in user.
type Server struct {
	store     store.Store
	users     UserSource
	submitter *tracker.Submitter
	version   string
	now       func() time.Time
}

// NewServer creates the MCP server wrapper. A nil finder means exact title
// matching.
func NewServer(s store.Store, users UserSource, finder tracker.DuplicateFinder, logger *slog.Logger, version string) *Server {
	return &Server{
		store:     s,
		users:     users,
		submitter: tracker.NewSubmitter(s, finder, logger),
		version:   version,
		now:       time.Now,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("tracker", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.submitIssueTool())
	srv.AddTool(s.transitionIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// tracker_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tracker_list_issues",
		mcp.WithDescription("List issues, newest first. Returns a JSON array with id, title, description, status, priority, assignee, creator and creation time."),
		mcp.WithString("status", mcp.Description("Filter by status: All (default), open, in_progress, done")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, err := models.ParseStatusFilter(request.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issues, err := s.store.ListIssues(ctx, store.QueryFor(filter))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}
	return jsonResult(tracker.BuildCards(issues, s.now()))
}

// tracker_submit_issue
func (s *Server) submitIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tracker_submit_issue",
		mcp.WithDescription("Create an issue as the signed-in user. New issues start Open. If an issue with the same title exists the call fails with a hint unless confirm_duplicate is true."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What is wrong or needed")),
		mcp.WithString("assigned_to", mcp.Required(), mcp.Description("Who should work on it")),
		mcp.WithString("priority", mcp.Description("low (default), medium or high")),
		mcp.WithBoolean("confirm_duplicate", mcp.Description("Create even if a similar issue exists")),
	)
	return tool, s.handleSubmitIssue
}

func (s *Server) handleSubmitIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	form := tracker.Form{
		Title:       request.GetString("title", ""),
		Description: request.GetString("description", ""),
		Priority:    request.GetString("priority", ""),
		AssignedTo:  request.GetString("assigned_to", ""),
	}
	confirm := tracker.Decline
	if request.GetBool("confirm_duplicate", false) {
		confirm = tracker.Accept
	}

	issue, err := s.submitter.Submit(ctx, s.users.CurrentUser(), form, confirm)
	switch {
	case err == nil:
		return jsonResult(tracker.NewCard(issue, s.now()))
	case errors.Is(err, tracker.ErrSubmissionDeclined):
		return mcp.NewToolResultError(tracker.MsgDuplicateHint + " Set confirm_duplicate to create it anyway."), nil
	case errors.Is(err, tracker.ErrWriteFailed):
		return mcp.NewToolResultError(fmt.Sprintf("%s (%v)", tracker.MsgCreateFailed, err)), nil
	default:
		return mcp.NewToolResultError(tracker.UserMessage(err)), nil
	}
}

// tracker_transition_issue
func (s *Server) transitionIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tracker_transition_issue",
		mcp.WithDescription("Move an issue to another status. An Open issue must go to in_progress before done. Returns the updated issue as JSON."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status: open, in_progress, done")),
	)
	return tool, s.handleTransitionIssue
}

func (s *Server) handleTransitionIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.users.CurrentUser() == nil {
		return mcp.NewToolResultError(tracker.MsgNotSignedIn), nil
	}
	ref, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	requested, err := models.ParseStatus(request.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issue, err := tracker.ResolveIssue(ctx, s.store, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("issue not found: %s", ref)), nil
		}
		return mcp.NewToolResultError(tracker.UserMessage(err)), nil
	}

	if err := tracker.Transition(ctx, s.store, issue.ID, issue.Status, requested); err != nil {
		if errors.Is(err, tracker.ErrWriteFailed) {
			return mcp.NewToolResultError(fmt.Sprintf("%s (%v)", tracker.MsgUpdateFailed, err)), nil
		}
		return mcp.NewToolResultError(tracker.UserMessage(err)), nil
	}

	issue.Status = requested
	return jsonResult(tracker.NewCard(issue, s.now()))
}
