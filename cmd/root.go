package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/listunsub/internal/config"
	"github.com/teemow/listunsub/internal/logging"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI.
func SetVersion(v string) {
	version = v
}

// globalOptions are the persistent flags shared by every subcommand. They
// override the environment only when set explicitly.
type globalOptions struct {
	dbPath          string
	tokenPath       string
	credentialsPath string
	authMode        string
	logFormat       string
	debug           bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "listunsub",
		Short: "Unsubscribes from mailing lists found in your Gmail mailbox",
		Long: `listunsub scans your Gmail mailbox for messages that carry a
List-Unsubscribe header with a mailto: target and sends one unsubscribe
email per list. Handled lists are recorded in a local SQLite database so
they are never contacted twice.

Search terms in blacklist.txt (one per line) are appended to the Gmail
query, e.g. "-from:boss@example.com" to leave a sender alone.`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "listunsub version %s\n" .Version}}`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.dbPath, "db", "unsubscribed.db", "SQLite database of handled targets. Can also use LISTUNSUB_DATABASE env var.")
	pf.StringVar(&opts.tokenPath, "token", "token.json", "OAuth token file. Can also use LISTUNSUB_TOKEN env var.")
	pf.StringVar(&opts.credentialsPath, "credentials", "credentials.json", "OAuth client secret downloaded from the Google Cloud console. Can also use LISTUNSUB_CREDENTIALS env var.")
	pf.StringVar(&opts.authMode, "auth-mode", "interactive", "How to obtain a token when none is stored: interactive or headless. Can also use LISTUNSUB_AUTH_MODE env var.")
	pf.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json. Can also use LOG_FORMAT env var.")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newLoginCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	// If no subcommand is provided, run the unsubscribe pass by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	opts.apply(cmd, cfg)
	cfg.Instrumentation.ServiceVersion = version

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *globalOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DatabasePath = o.dbPath
	}
	if flags.Changed("token") {
		cfg.TokenPath = o.tokenPath
	}
	if flags.Changed("credentials") {
		cfg.CredentialsPath = o.credentialsPath
	}
	if flags.Changed("auth-mode") {
		cfg.AuthMode = o.authMode
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(w, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cfg.NoColor)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
