package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tracker/internal/tracker"
	"github.com/joescharf/tracker/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal dashboard",
	Long: `Open the full-screen dashboard: sign in, submit issues and watch the
list update live as anyone changes it. Diagnostics go to tracker-tui.log
in state_dir while the dashboard owns the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tuiRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func tuiLogger() (*slog.Logger, func(), error) {
	path := filepath.Join(viper.GetString("state_dir"), "tracker-tui.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), func() { _ = f.Close() }, nil
}

func tuiRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	p, err := getProvider(ctx)
	if err != nil {
		return err
	}
	log, closeLog, err := tuiLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := tui.NewBridge()
	client := tracker.New(s, p, bridge,
		tracker.WithConfirmer(bridge),
		tracker.WithDuplicateFinder(duplicateFinder()),
		tracker.WithLogger(log),
	)
	client.Start(ctx)

	err = tui.Run(ctx, client, bridge)
	bridge.Close()
	client.Close()
	return err
}
