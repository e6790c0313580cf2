// Package cli wires configuration, logging and the backend client into the
// openx command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/asynkron/openx/internal/backend"
	"github.com/asynkron/openx/internal/config"
	"github.com/asynkron/openx/internal/core/app"
	"github.com/asynkron/openx/internal/core/commands"
	"github.com/asynkron/openx/internal/logging"
	"github.com/asynkron/openx/internal/tui"
	"github.com/asynkron/openx/internal/workspace"
)

// Version is reported by --version and the TUI header.
var Version = "0.1.0"

type deps struct {
	lookupEnv  func(string) (string, bool)
	loadDotEnv func() error
	workspace  func() (*workspace.Context, error)
	runTUI     func(ctx context.Context, a *app.App, opts tui.Options) error
}

func defaultDeps() deps {
	return deps{
		lookupEnv:  os.LookupEnv,
		loadDotEnv: func() error { return config.LoadDotEnv() },
		workspace:  workspace.Current,
		runTUI:     tui.Run,
	}
}

type flags struct {
	configPath     string
	baseURL        string
	timeout        time.Duration
	conversationID string
	logFile        string
	logLevel       string
}

// usageError marks mistakes in how the command was invoked (exit code 2).
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// reportedError marks failures already explained on stderr (exit code 1).
var errReported = errors.New("reported")

// Run executes the openx CLI using the provided arguments.
// It returns a POSIX-style exit code indicating whether execution succeeded.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, stdout, stderr, defaultDeps())
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, d deps) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCmd(d)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var usage usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Run 'openx --help' for usage.")
		return 2
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newRootCmd(d deps) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "openx",
		Short: "OpenX - terminal client for the OpenX agent",
		Long: `OpenX is a terminal chat client for the OpenX agent service.

Run without arguments to start the interactive TUI, or use a subcommand for
one-shot requests.

Configuration is read from ~/.openx/config.yaml (or --config), then .env and
the OPENX_* environment variables, then flags.

Examples:
  openx                          # Start interactive TUI
  openx health                   # Check the backend
  openx tools                    # List backend tools
  openx chat what failed in CI   # Ask the agent once
  openx run list_repos           # Run a raw backend command`,
		Version:       Version,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, d, f, func(s *session) error {
				ws, err := d.workspace()
				if err != nil {
					return fmt.Errorf("determine working directory: %w", err)
				}
				a, err := app.New(app.Options{
					Gateway:        s.client,
					ConversationID: s.cfg.ConversationID,
					RequestTimeout: s.cfg.Timeout,
					Logger:         s.logger,
				})
				if err != nil {
					return err
				}
				return d.runTUI(cmd.Context(), a, tui.Options{
					Workspace: ws,
					Version:   Version,
					Logger:    s.logger,
				})
			})
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to the YAML config file (default ~/.openx/config.yaml)")
	pf.StringVar(&f.baseURL, "base-url", "", "OpenX backend URL (env "+config.EnvBaseURL+")")
	pf.DurationVar(&f.timeout, "timeout", 0, "per-request timeout (env "+config.EnvTimeout+")")
	pf.StringVar(&f.conversationID, "conversation-id", "", "conversation id sent with chat requests (env "+config.EnvConversationID+")")
	pf.StringVar(&f.logFile, "log-file", "", "write structured logs to this file (env "+config.EnvLogFile+")")
	pf.StringVar(&f.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (env "+config.EnvLogLevel+")")

	root.AddCommand(
		newHealthCmd(d, f),
		newToolsCmd(d, f),
		newChatCmd(d, f),
		newRunCmd(d, f),
	)
	return root
}

func newHealthCmd(d deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the backend is reachable",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, d, f, func(s *session) error {
				if !s.client.Health(cmd.Context()) {
					fmt.Fprintf(cmd.ErrOrStderr(), "unreachable %s\n", s.client.BaseURL())
					return errReported
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", s.client.BaseURL())
				return nil
			})
		},
	}
}

func newToolsCmd(d deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the backend advertises",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, d, f, func(s *session) error {
				tools, err := s.client.ListTools(cmd.Context())
				if err != nil {
					return err
				}
				width := 0
				for _, t := range tools {
					width = max(width, len(t.Name))
				}
				out := cmd.OutOrStdout()
				for _, t := range tools {
					fmt.Fprintf(out, "%-*s  %s\n", width, t.Name, t.Description)
				}
				return nil
			}, backend.WithRetry(backend.DefaultRetryConfig()))
		},
	}
}

func newChatCmd(d deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send one message to the agent and print the reply",
		Long: `Send one message to the agent and print the reply.

Slash shortcuts work as in the TUI, so "openx chat /prs owner/repo" sends
"list_prs owner/repo".`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, d, f, func(s *session) error {
				command := commands.Normalize(strings.Join(args, " "))
				if command == "" {
					return usageError{errors.New("message must not be empty")}
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), s.cfg.Timeout)
				defer cancel()

				resp, err := s.client.Chat(ctx, commands.ChatMessage(command), s.conversationID())
				if err != nil {
					return err
				}
				if resp.Error != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), resp.Error)
					return errReported
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Text())
				return nil
			})
		},
	}
}

func newRunCmd(d deps, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <command...>",
		Short: "Execute a raw backend command and print its output",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, d, f, func(s *session) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), s.cfg.Timeout)
				defer cancel()

				resp, err := s.client.Run(ctx, commands.Normalize(strings.Join(args, " ")))
				if err != nil {
					return err
				}
				if resp.Error != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), resp.Error)
					return errReported
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.FormatOutput())
				return nil
			})
		},
	}
}

type session struct {
	cfg    config.Options
	logger logging.Logger
	client *backend.Client
}

func (s *session) conversationID() string {
	if s.cfg.ConversationID != "" {
		return s.cfg.ConversationID
	}
	return app.NewConversationID()
}

// withSession resolves configuration, opens the log file and builds the
// backend client before handing control to fn. extra options are applied
// after the defaults.
func withSession(cmd *cobra.Command, d deps, f *flags, fn func(*session) error, extra ...backend.Option) error {
	cfg, err := resolveConfig(d, f)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.OpenFile(cfg.LogFile, cfg.Level())
	if err != nil {
		return err
	}
	defer closeLog()
	logger = logger.WithFields(logging.Field("command", cmd.Name()))

	opts := append([]backend.Option{
		backend.WithTimeout(cfg.Timeout),
		backend.WithLogger(logger),
		backend.WithMetrics(backend.NewInMemoryMetrics()),
	}, extra...)
	client, err := backend.NewClient(cfg.BaseURL, opts...)
	if err != nil {
		return err
	}

	logger.Debug(cmd.Context(), "configuration resolved",
		logging.Field("base_url", cfg.BaseURL),
		logging.Field("timeout", cfg.Timeout),
	)
	defer logRequestSummary(cmd.Context(), logger, client.Metrics())
	return fn(&session{cfg: cfg, logger: logger, client: client})
}

func logRequestSummary(ctx context.Context, logger logging.Logger, metrics backend.Metrics) {
	snap := metrics.Snapshot()
	if snap.Total() == 0 {
		return
	}
	for _, e := range snap.Endpoints {
		logger.Debug(ctx, "backend requests",
			logging.Field("endpoint", e.Endpoint),
			logging.Field("total", e.Total),
			logging.Field("failed", e.Failed),
			logging.Field("max", e.MaxTime.Round(time.Millisecond)),
		)
	}
}

func resolveConfig(d deps, f *flags) (config.Options, error) {
	if d.loadDotEnv != nil {
		if err := d.loadDotEnv(); err != nil {
			return config.Options{}, err
		}
	}

	path, required := f.configPath, f.configPath != ""
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, required, d.lookupEnv)
	if err != nil {
		return config.Options{}, err
	}
	cfg.Apply(config.Options{
		BaseURL:        strings.TrimSpace(f.baseURL),
		Timeout:        f.timeout,
		ConversationID: strings.TrimSpace(f.conversationID),
		LogFile:        strings.TrimSpace(f.logFile),
		LogLevel:       strings.TrimSpace(f.logLevel),
	})
	if err := cfg.Validate(); err != nil {
		return config.Options{}, usageError{err}
	}
	return cfg, nil
}
