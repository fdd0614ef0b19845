package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fileflow/fileflow-go/internal/api"
	"github.com/fileflow/fileflow-go/internal/auth"
	"github.com/fileflow/fileflow-go/internal/config"
	"github.com/fileflow/fileflow-go/internal/health"
	"github.com/fileflow/fileflow-go/internal/metadata"
	"github.com/fileflow/fileflow-go/internal/session"
	"github.com/fileflow/fileflow-go/internal/transfer"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by
// PersistentPreRunE. It is available to all subcommands after the root
// pre-run phase completes.
var resolvedCfg *config.Config

// httpClientTimeout bounds every request so a hung connection cannot
// block a CLI command indefinitely. Large transfers stream within this
// window per request; the watcher issues one request per file.
const httpClientTimeout = 10 * time.Minute

// defaultHTTPClient returns the HTTP client shared by all service clients.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fileflow",
		Short:   "File storage and sharing CLI client",
		Long:    "A CLI client for the fileflow storage backend: upload, download, tag, and share files.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newShareCmd())
	cmd.AddCommand(newRevokeCmd())
	cmd.AddCommand(newSharesCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override
// chain and stores the result in resolvedCfg for use by subcommands.
func loadConfig() error {
	env := config.ReadEnvOverrides()

	// --config beats FILEFLOW_CONFIG because CLI flags always win.
	if flagConfigPath != "" {
		env.ConfigPath = flagConfigPath
	}

	cfg, err := config.Resolve(env)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config
// and CLI flags. Config-file log level provides the baseline; --verbose
// and --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// clients bundles the per-command service clients, all sharing one
// session store and dispatcher.
type clients struct {
	sessions *session.Store
	auth     *auth.Client
	engine   *transfer.Engine
	metadata *metadata.Client
	prober   *health.Prober
	logger   *slog.Logger
}

// buildClients wires up the full client stack from the resolved config.
// Every command that talks to the backend starts here.
func buildClients() (*clients, error) {
	logger := buildLogger()

	if err := os.MkdirAll(resolvedCfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	sessions := session.NewStore(resolvedCfg.SessionPath(), logger)
	httpClient := defaultHTTPClient()

	dispatcher := api.NewDispatcher(httpClient, sessions, logger)
	dispatcher.OnSessionExpired(func() {
		fmt.Fprintln(os.Stderr, "Session expired — run 'fileflow login' again.")
	})

	prober := health.NewProber(httpClient, logger)

	return &clients{
		sessions: sessions,
		auth:     auth.NewClient(dispatcher, prober, sessions, resolvedCfg.AuthURL, logger),
		engine:   transfer.NewEngine(dispatcher, prober, resolvedCfg.FileURL, logger),
		metadata: metadata.NewClient(dispatcher, sessions, resolvedCfg.GraphURL+"/graphql", logger),
		prober:   prober,
		logger:   logger,
	}, nil
}

// requireSession returns an error telling the user to log in when no
// session is present. Commands that need a credential call this before
// touching the backend so the failure is immediate and clear.
func requireSession(sessions *session.Store) error {
	if !sessions.Get().Valid() {
		return fmt.Errorf("not logged in — run 'fileflow login' first")
	}

	return nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
