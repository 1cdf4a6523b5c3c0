package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/events-watch/internal/config"
	"github.com/pfrederiksen/events-watch/internal/crypto"
	"github.com/pfrederiksen/events-watch/internal/logger"
	"github.com/pfrederiksen/events-watch/internal/notifier"
	"github.com/pfrederiksen/events-watch/internal/runner"
	"github.com/pfrederiksen/events-watch/internal/scraper"
	"github.com/pfrederiksen/events-watch/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

type options struct {
	envFile    string
	format     string
	dryRun     bool
	verbose    bool
	allowEmpty bool
}

// NewRootCmd creates the root command. Running it without a subcommand performs
// a check.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "events-watch",
		Short: "Report items newly posted on an events page",
		Long: `A CLI tool that watches a web page for newly posted events.
Each run fetches the page, compares the listed items against the previous run and
sends an email (plus optional Telegram and Twitter posts) for the new ones.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load (ignored when missing)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")

	addCheckFlags(cmd, opts)

	check := &cobra.Command{
		Use:   "check",
		Short: "Fetch the page once and notify about new items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}
	addCheckFlags(check, opts)

	keygen := &cobra.Command{
		Use:   "keygen",
		Short: "Print a new random key for ARTIFACT_ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the items stored by the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts)
		},
	}

	cmd.AddCommand(check, keygen, show)
	return cmd
}

func addCheckFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the notification instead of sending it and leave state untouched")
	cmd.Flags().BoolVar(&opts.allowEmpty, "allow-empty", false, "Accept a page with no items even if items were seen before")
}

// setup loads the configuration and builds the logger shared by all commands
func setup(cmd *cobra.Command, opts *options) (config.Config, OutputFormat, *logger.Logger, error) {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON {
		return config.Config{}, "", nil, fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return config.Config{}, "", nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("%w: LOG_LEVEL: %w", config.ErrInvalid, err)
	}
	if opts.verbose {
		level = logger.LevelDebug
	}

	return cfg, format, logger.New(level, cmd.ErrOrStderr()), nil
}

func runCheck(cmd *cobra.Command, opts *options) error {
	cfg, format, log, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	if opts.allowEmpty {
		cfg.AllowEmpty = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	// dry-run output must not corrupt JSON on stdout
	notifyOut := cmd.OutOrStdout()
	if format == FormatJSON {
		notifyOut = cmd.ErrOrStderr()
	}
	n, err := buildNotifier(ctx, cfg, opts.dryRun, notifyOut, log)
	if err != nil {
		return err
	}

	r := &runner.Runner{
		Config: cfg,
		Store:  store,
		Fetcher: scraper.New(
			scraper.WithTimeouts(cfg.LoadTimeout, cfg.WaitTimeout),
			scraper.WithPollInterval(cfg.PollInterval),
			scraper.WithLogger(log),
		),
		Notifier: n,
		Logger:   log,
		Metrics:  logger.NewMetrics(),
		DryRun:   opts.dryRun,
	}

	result, err := r.Run(ctx)
	if err != nil {
		log.Error("Run failed", r.Metrics.Fields(), err)
		return err
	}
	log.Info("Run complete", r.Metrics.Fields())

	if err := WriteResult(cmd.OutOrStdout(), result, format, opts.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// buildNotifier returns the email channel plus every optional channel that is
// fully configured. Only email failures fail the run. In dry-run mode the composed
// email is printed instead.
func buildNotifier(ctx context.Context, cfg config.Config, dryRun bool, out io.Writer, log *logger.Logger) (notifier.Notifier, error) {
	email := notifier.NewEmailNotifier(cfg.SMTP, cfg.Message)
	if dryRun {
		log.Debug("Dry run, notifications are printed only", nil)
		return notifier.NewDryRunNotifier(email, out), nil
	}

	channels := notifier.Multi{email}
	if cfg.Telegram.Enabled() {
		tg, err := notifier.NewTelegramNotifier(cfg.Telegram, cfg.Message)
		if err != nil {
			return nil, err
		}
		channels = append(channels, notifier.BestEffort{Channel: "telegram", Notifier: tg, Log: log})
		log.Debug("Telegram channel enabled", logger.Fields{"chat_id": cfg.Telegram.ChatID})
	}
	if cfg.Twitter.Enabled() {
		tw, err := notifier.NewTwitterNotifier(ctx, cfg.Twitter, cfg.Message.LinkURL)
		if err != nil {
			return nil, err
		}
		channels = append(channels, notifier.BestEffort{Channel: "twitter", Notifier: tw, Log: log})
		log.Debug("Twitter channel enabled", nil)
	}
	return channels, nil
}

func runShow(cmd *cobra.Command, opts *options) error {
	cfg, format, log, err := setup(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	set, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	if err := WriteItems(cmd.OutOrStdout(), set.Sorted(), format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// Execute runs the CLI
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
