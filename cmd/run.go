package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/teemow/listunsub/internal/config"
	"github.com/teemow/listunsub/internal/gmail"
	"github.com/teemow/listunsub/internal/google"
	"github.com/teemow/listunsub/internal/instrumentation"
	"github.com/teemow/listunsub/internal/logging"
	"github.com/teemow/listunsub/internal/server"
	"github.com/teemow/listunsub/internal/store"
	"github.com/teemow/listunsub/internal/unsubscribe"
)

type runOptions struct {
	blacklistPath  string
	newerThan      string
	defaultSubject string
	metricsAddr    string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send unsubscribe emails for mailing lists in your mailbox",
		Long: `Search the mailbox for recent messages with a List-Unsubscribe mailto:
target and send one unsubscribe email per target that has not been handled
by an earlier run. Each handled target is recorded in the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runUnsubscribe(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&opts.blacklistPath, "blacklist", "blacklist.txt", "File with one Gmail search term per line appended to the query. Can also use LISTUNSUB_BLACKLIST env var.")
	cmd.Flags().StringVar(&opts.newerThan, "newer-than", "1y", "Only consider messages newer than this Gmail window (e.g. 30d, 6m, 1y). Can also use LISTUNSUB_NEWER_THAN env var.")
	cmd.Flags().StringVar(&opts.defaultSubject, "subject", "unsubscribe", "Subject used when the target does not specify one. Can also use LISTUNSUB_DEFAULT_SUBJECT env var.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run. Requires INSTRUMENTATION_ENABLED=true. Can also use LISTUNSUB_METRICS_ADDR env var.")

	return cmd
}

func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("blacklist") {
		cfg.BlacklistPath = o.blacklistPath
	}
	if flags.Changed("newer-than") {
		cfg.NewerThan = o.newerThan
	}
	if flags.Changed("subject") {
		cfg.DefaultSubject = o.defaultSubject
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
}

func runUnsubscribe(cmd *cobra.Command, cfg *config.Config) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	provider, err := instrumentation.NewProvider(ctx, cfg.Instrumentation)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	if cfg.MetricsAddr != "" {
		stop, err := startMetricsServer(cfg.MetricsAddr, provider, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	authorizer, err := google.NewAuthorizer(cfg.AuthMode, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	client, err := newGmailClient(ctx, cfg, authorizer, logging.WithService(logger, instrumentation.ServiceGmail), provider.Metrics())
	if err != nil {
		return err
	}

	from, err := client.EmailAddress(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize Gmail service: %w", err)
	}
	logger = logger.With(logging.Account(from))

	runner := &unsubscribe.Runner{
		Scanner: &unsubscribe.Scanner{
			Provider:      client,
			BlacklistPath: cfg.BlacklistPath,
			NewerThan:     cfg.NewerThan,
		},
		Sender: &unsubscribe.Sender{
			Provider: client,
			From:     from,
			Logger:   logger,
			Metrics:  provider.Metrics(),
		},
		Store:          st,
		DefaultSubject: cfg.DefaultSubject,
		Out:            cmd.OutOrStdout(),
		Logger:         logger,
		Metrics:        provider.Metrics(),
	}

	ctx, span := provider.Tracer(instrumentation.TracerName).Start(ctx, "listunsub.run")
	defer span.End()

	res, err := runner.Run(ctx)
	logger.Info("run finished",
		logging.Operation(unsubscribe.OperationRun),
		slog.String("trace_id", instrumentation.GetTraceID(ctx)),
		slog.Int("pages", res.Pages),
		slog.Int("messages", res.Messages),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped),
		logging.Err(err),
	)
	return err
}

// newGmailClient builds an authorized Gmail client. A missing client
// secret or a failed authorization is returned as an error.
func newGmailClient(ctx context.Context, cfg *config.Config, authorizer google.Authorizer, logger *slog.Logger, metrics *instrumentation.Metrics) (*gmail.Client, error) {
	oauthConfig, err := google.LoadConfig(cfg.CredentialsPath, google.DefaultScopes...)
	if err != nil {
		return nil, err
	}

	creds := &google.Credentials{
		Config:     oauthConfig,
		TokenFile:  &google.TokenFile{Path: cfg.TokenPath},
		Authorizer: authorizer,
		Logger:     logger,
		Metrics:    metrics,
	}
	httpClient, err := creds.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize: %w", err)
	}

	return gmail.NewClient(ctx, metrics, option.WithHTTPClient(httpClient))
}

// startMetricsServer serves /metrics until the returned stop is called.
func startMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (stop func(), err error) {
	if !provider.ServesPrometheus() {
		logger.Warn("metrics address ignored, instrumentation with the prometheus exporter is not enabled",
			slog.String("addr", addr))
		return func() {}, nil
	}

	srv, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("error shutting down metrics server", logging.Err(err))
		}
	}, nil
}
