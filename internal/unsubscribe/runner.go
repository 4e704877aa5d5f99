package unsubscribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/listunsub/internal/instrumentation"
	"github.com/teemow/listunsub/internal/logging"
	"github.com/teemow/listunsub/internal/store"
)

// Operation names attached to log records.
const (
	OperationRun  = "unsubscribe.run"
	OperationSend = "unsubscribe.send"
)

// DefaultSubject is used when a mailto target carries no subject.
const DefaultSubject = "unsubscribe"

// Store records the targets already handled.
type Store interface {
	Exists(ctx context.Context, target string) (bool, error)
	Register(ctx context.Context, target string) error
}

// Result summarizes a run.
type Result struct {
	Pages    int
	Messages int
	Sent     int
	Failed   int
	Skipped  int
}

// Runner performs one full pass over the mailbox.
type Runner struct {
	Scanner *Scanner
	Sender  *Sender
	Store   Store
	// DefaultSubject replaces an empty mailto subject. Falls back to
	// DefaultSubject when unset.
	DefaultSubject string
	// Out receives the progress lines shown to the user.
	Out     io.Writer
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Run walks every result page until the provider returns no continuation
// token. Listing, fetching and store errors abort the run; send failures
// are counted and the run continues.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	ctx, span := instrumentation.StartSpan(ctx, OperationRun)
	defer span.End()

	var res Result
	pageToken := ""
	for {
		if err := ctx.Err(); err != nil {
			instrumentation.SetSpanError(span, err)
			return res, err
		}

		page, err := r.Scanner.ListPage(ctx, pageToken)
		if err != nil {
			instrumentation.SetSpanError(span, err)
			return res, fmt.Errorf("failed to list messages: %w", err)
		}
		res.Pages++
		r.Metrics.RecordPage(ctx)

		logger := logging.WithOperation(r.logger(), OperationRun).With(logging.Page(res.Pages))
		logger.Debug("processing page", slog.Int("messages", len(page.MessageIDs)))

		for _, id := range page.MessageIDs {
			if err := r.process(ctx, logger, id, &res); err != nil {
				instrumentation.SetSpanError(span, err)
				return res, err
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
		r.printf("Total mail lists unsubscribed: %d\n", res.Sent)
	}

	span.SetAttributes(
		attribute.Int("unsubscribe.pages", res.Pages),
		attribute.Int("unsubscribe.sent", res.Sent),
	)
	instrumentation.SetSpanSuccess(span)
	return res, nil
}

func (r *Runner) process(ctx context.Context, logger *slog.Logger, id string, res *Result) error {
	res.Messages++
	r.Metrics.RecordMessage(ctx)
	logger = logger.With(logging.MessageID(id))

	msg, err := r.Scanner.Provider.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	target, ok := ExtractMailto(msg.Headers)
	if !ok {
		logger.Debug("no mailto unsubscribe target",
			slog.String("list_unsubscribe", msg.HeaderValue(HeaderListUnsubscribe)))
		r.skip(ctx, res, instrumentation.SkipNoTarget)
		return nil
	}

	intent, err := ParseMailto(target)
	if err != nil {
		logger.Warn("ignoring unparsable unsubscribe target", logging.Err(err))
		r.skip(ctx, res, instrumentation.SkipInvalidTarget)
		return nil
	}

	seen, err := r.Store.Exists(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to check target: %w", err)
	}
	if seen {
		logger.Debug("target already unsubscribed", logging.Recipient(intent.Address))
		r.skip(ctx, res, instrumentation.SkipAlreadyRegistered)
		return nil
	}

	if intent.Subject == "" {
		intent.Subject = r.defaultSubject()
	}

	if !r.Sender.Send(ctx, intent) {
		res.Failed++
		return nil
	}
	res.Sent++
	r.printf("Unsubscribed from '%s'\n", intent.Address)

	if err := r.Store.Register(ctx, target); err != nil {
		if errors.Is(err, store.ErrAlreadyRegistered) {
			logger.Warn("target was registered concurrently", logging.Recipient(intent.Address))
			return nil
		}
		return fmt.Errorf("failed to register target: %w", err)
	}
	return nil
}

func (r *Runner) skip(ctx context.Context, res *Result, reason string) {
	res.Skipped++
	r.Metrics.RecordSkip(ctx, reason)
}

func (r *Runner) defaultSubject() string {
	if r.DefaultSubject == "" {
		return DefaultSubject
	}
	return r.DefaultSubject
}

func (r *Runner) printf(format string, args ...any) {
	if r.Out == nil {
		return
	}
	fmt.Fprintf(r.Out, format, args...)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
