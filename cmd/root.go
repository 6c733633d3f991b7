package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tracker/internal/auth"
	"github.com/joescharf/tracker/internal/llm"
	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/output"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore *store.SQLiteStore
	directory *auth.Directory
	provider  *auth.LocalProvider

	verbose   bool
	dryRun    bool
	assumeYes bool
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Tracker - a small shared issue tracker",
	Long: `tracker keeps a shared list of issues with a simple
Open -> In Progress -> Done workflow. Use it from the command line,
the terminal dashboard (tracker tui) or the web UI (tracker serve).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	closeDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to confirmation prompts")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/tracker/config.yaml)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default. state_dir-relative
// paths are resolved by statePath.
func setDefaults() {
	dir, _ := configDirFunc()

	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", "tracker.db")
	viper.SetDefault("session_file", "session")
	viper.SetDefault("store.poll_interval", "1s")
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("hint.llm", false)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
	ui.AssumeYes = assumeYes

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// The store is opened lazily so config/version run without a database.
}

func closeDeps() {
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
	directory = nil
	provider = nil
}

// statePath resolves a path config value against state_dir.
func statePath(key string) string {
	p := viper.GetString(key)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(viper.GetString("state_dir"), p)
}

// getStore returns the shared store, initializing it on first call.
func getStore() (*store.SQLiteStore, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := statePath("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	s, err := store.NewSQLiteStore(dbPath,
		store.WithPollInterval(viper.GetDuration("store.poll_interval")),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getDirectory returns the shared account directory.
func getDirectory() (*auth.Directory, error) {
	if directory != nil {
		return directory, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	directory = auth.NewDirectory(s)
	return directory, nil
}

// getProvider returns the identity provider with the saved session restored.
func getProvider(ctx context.Context) (*auth.LocalProvider, error) {
	if provider != nil {
		return provider, nil
	}
	dir, err := getDirectory()
	if err != nil {
		return nil, err
	}
	p, err := auth.NewLocalProvider(ctx, dir, statePath("session_file"))
	if err != nil {
		return nil, err
	}
	provider = p
	return provider, nil
}

// requireUser returns the signed-in user or a hint to log in.
func requireUser(ctx context.Context) (*models.User, error) {
	p, err := getProvider(ctx)
	if err != nil {
		return nil, err
	}
	u := p.CurrentUser()
	if u == nil {
		return nil, fmt.Errorf("%w (run 'tracker login' or 'tracker signup')", tracker.ErrNotSignedIn)
	}
	return u, nil
}

// duplicateFinder returns the model-backed finder when hint.llm is on and an
// API key is configured, otherwise nil (exact title match).
func duplicateFinder() tracker.DuplicateFinder {
	if !viper.GetBool("hint.llm") {
		return nil
	}
	client := newLLMClient()
	if client == nil {
		logger.Warn("hint.llm is enabled but no Anthropic API key is configured")
		return nil
	}
	return llm.NewSimilarTitleFinder(client)
}
