package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

type staticUser struct{ user *models.User }

func (s staticUser) CurrentUser() *models.User { return s.user }

func newTestServer(t *testing.T, u *models.User) (*Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewServer(s, staticUser{u}, nil, nil, "test"), s
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), target))
}

var dev = &models.User{ID: "u1", Email: "dev@example.com"}

func TestMCPServer_ListTools(t *testing.T) {
	srv, _ := newTestServer(t, dev)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(context.Background(), reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))

	var names []string
	for _, tool := range rpcResp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"tracker_list_issues", "tracker_submit_issue", "tracker_transition_issue"}, names)
}

func TestHandleSubmitIssue(t *testing.T) {
	srv, _ := newTestServer(t, dev)
	ctx := context.Background()
	args := map[string]any{"title": "Crash on save", "description": "NPE", "assigned_to": "sam", "priority": "medium"}

	result, err := srv.handleSubmitIssue(ctx, callToolReq("tracker_submit_issue", args))
	require.NoError(t, err)
	var card tracker.Card
	resultJSON(t, result, &card)
	assert.Equal(t, models.IssueStatusOpen, card.Status)
	assert.Equal(t, "Medium", card.PriorityLabel)
	assert.Equal(t, "dev@example.com", card.CreatedBy)

	result, err = srv.handleSubmitIssue(ctx, callToolReq("tracker_submit_issue", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), tracker.MsgDuplicateHint)

	args["confirm_duplicate"] = true
	result, err = srv.handleSubmitIssue(ctx, callToolReq("tracker_submit_issue", args))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = srv.handleSubmitIssue(ctx, callToolReq("tracker_submit_issue", map[string]any{"title": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Description is required", resultText(t, result))
}

func TestHandleSubmitIssue_SignedOut(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	args := map[string]any{"title": "t", "description": "d", "assigned_to": "a"}
	result, err := srv.handleSubmitIssue(context.Background(), callToolReq("tracker_submit_issue", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, tracker.MsgNotSignedIn, resultText(t, result))
}

func TestHandleListIssues(t *testing.T) {
	srv, s := newTestServer(t, dev)
	ctx := context.Background()
	require.NoError(t, s.AddIssue(ctx, &models.Issue{Title: "One"}))
	require.NoError(t, s.AddIssue(ctx, &models.Issue{Title: "Two", Status: models.IssueStatusDone}))

	result, err := srv.handleListIssues(ctx, callToolReq("tracker_list_issues", nil))
	require.NoError(t, err)
	var cards []tracker.Card
	resultJSON(t, result, &cards)
	assert.Len(t, cards, 2)

	result, err = srv.handleListIssues(ctx, callToolReq("tracker_list_issues", map[string]any{"status": "done"}))
	require.NoError(t, err)
	resultJSON(t, result, &cards)
	require.Len(t, cards, 1)
	assert.Equal(t, "Two", cards[0].Title)

	result, err = srv.handleListIssues(ctx, callToolReq("tracker_list_issues", map[string]any{"status": "blocked"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleTransitionIssue(t *testing.T) {
	srv, s := newTestServer(t, dev)
	ctx := context.Background()
	issue := &models.Issue{Title: "Flow"}
	require.NoError(t, s.AddIssue(ctx, issue))

	call := func(status string) *mcpgo.CallToolResult {
		result, err := srv.handleTransitionIssue(ctx, callToolReq("tracker_transition_issue", map[string]any{
			"issue_id": strings.ToLower(issue.ID[:12]),
			"status":   status,
		}))
		require.NoError(t, err)
		return result
	}

	result := call("done")
	assert.True(t, result.IsError)
	assert.Equal(t, tracker.MsgOpenToDone, resultText(t, result))

	var card tracker.Card
	resultJSON(t, call("in_progress"), &card)
	assert.Equal(t, models.IssueStatusInProgress, card.Status)

	resultJSON(t, call("Done"), &card)
	assert.Equal(t, models.IssueStatusDone, card.Status)

	result, err := srv.handleTransitionIssue(ctx, callToolReq("tracker_transition_issue", map[string]any{"issue_id": "nope", "status": "done"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "issue not found")
}
