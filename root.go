package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ringsync/ringsync/internal/config"
	"github.com/ringsync/ringsync/internal/engine"
	"github.com/ringsync/ringsync/internal/provider/healthd"
	"github.com/ringsync/ringsync/internal/scoring"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagUser       string
	flagHealthdURL string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by
// PersistentPreRunE. It is available to all subcommands after the root
// pre-run phase completes.
var resolvedCfg *config.Config

// httpClientTimeout prevents hung connections from blocking CLI
// commands indefinitely.
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with
// all subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ringsync",
		Short:   "Health metrics sync client",
		Long:    "Syncs daily activity metrics from the local health daemon to the scoring service,\nmaintaining streaks, personal records, and milestone events.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it
		// ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagUser, "user", "", "scoring service user ID")
	cmd.PersistentFlags().StringVar(&flagHealthdURL, "healthd-url", "", "health daemon address")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newConnectCmd())
	cmd.AddCommand(newDisconnectCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newGoalsCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override
// chain and stores the result in resolvedCfg for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	// Only pass flags the user explicitly set.
	if cmd.Flags().Changed("user") {
		cli.UserID = &flagUser
	}

	if cmd.Flags().Changed("healthd-url") {
		cli.HealthdURL = &flagHealthdURL
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config
// and CLI flags. Config-file log level provides the baseline;
// --verbose and --quiet override it because CLI flags always win.
// "auto" format picks text on a terminal and JSON otherwise.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	format := "auto"
	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = resolvedCfg.Logging.LogFormat
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "text"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the SQLite state database at the platform default
// location, creating the data directory on first run.
func openStore(logger *slog.Logger) (*engine.Store, error) {
	dataDir := config.DefaultDataDir()
	if dataDir == "" {
		return nil, fmt.Errorf("cannot determine data directory")
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	store, err := engine.NewStore(config.DefaultStatePath(), logger)
	if err != nil {
		return nil, err
	}

	// Configured [goals] apply until the provider reports a valid set
	// or the user sets one explicitly.
	store.SetDefaultGoals(engine.GoalSet{
		MoveCalories:    resolvedCfg.Goals.MoveCalories,
		ExerciseMinutes: resolvedCfg.Goals.ExerciseMinutes,
		StandHours:      resolvedCfg.Goals.StandHours,
		Steps:           resolvedCfg.Goals.Steps,
	})

	return store, nil
}

// buildOrchestrator wires the adapter, scoring client, and store into
// a ready orchestrator. Requires a saved scoring token — commands that
// never talk to the backend read the store directly instead.
func buildOrchestrator(logger *slog.Logger) (*engine.Orchestrator, *engine.Store, error) {
	tokens, err := scoring.NewFileTokenStore(resolvedCfg.TokenPath(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (run 'ringsync login' first)", err)
	}

	store, err := openStore(logger)
	if err != nil {
		return nil, nil, err
	}

	adapter := healthd.New(healthd.Options{
		BaseURL:    resolvedCfg.Provider.HealthdURL,
		HTTPClient: defaultHTTPClient(),
		Logger:     logger,
	})

	backend := scoring.NewClient(resolvedCfg.Scoring.BaseURL, defaultHTTPClient(), tokens, logger)

	orch := engine.New(engine.Options{
		Adapter:       adapter,
		Backend:       backend,
		Store:         store,
		Logger:        logger,
		FetchDeadline: resolvedCfg.FetchDeadline(),
		InterDayDelay: resolvedCfg.BackfillDelay(),
	})

	return orch, store, nil
}

// requireUserID returns the configured scoring user ID or an error
// telling the user how to set it.
func requireUserID() (string, error) {
	if resolvedCfg.Scoring.UserID == "" {
		return "", fmt.Errorf("no user ID configured: pass --user or set scoring.user_id in the config file")
	}

	return resolvedCfg.Scoring.UserID, nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
