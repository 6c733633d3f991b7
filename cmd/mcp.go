package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/tracker/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Tools act as the user signed in with 'tracker login'. Configure an MCP
client with:

  {
    "mcpServers": {
      "tracker": { "command": "tracker", "args": ["mcp"] }
    }
  }

Available tools: tracker_list_issues, tracker_submit_issue,
tracker_transition_issue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	p, err := getProvider(ctx)
	if err != nil {
		return err
	}
	if p.CurrentUser() == nil {
		logger.Warn("mcp server started while signed out; tools will refuse until 'tracker login'")
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	srv := mcp.NewServer(s, p, duplicateFinder(), logger, buildVersion)
	return srv.ServeStdio(ctx)
}
