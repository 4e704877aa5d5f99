package unsubscribe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/teemow/listunsub/internal/instrumentation"
	"github.com/teemow/listunsub/internal/logging"
	"github.com/teemow/listunsub/internal/mailbox"
)

// Sender composes unsubscribe emails and submits them through a Provider.
type Sender struct {
	Provider mailbox.Provider
	// From is the authenticated account's address. When empty the header
	// is left for the provider to fill in.
	From    string
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	now func() time.Time
}

// Compose renders intent as a plain-text RFC 5322 message.
func (s *Sender) Compose(intent Intent) ([]byte, error) {
	var h mail.Header
	h.SetDate(s.clock())
	if s.From != "" {
		h.SetAddressList("From", []*mail.Address{{Address: s.From}})
	}
	// The target is used verbatim, mailing list software may rely on
	// addresses a strict parser would reject.
	h.Set("To", intent.Address)
	h.SetSubject(intent.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := w.Write([]byte(intent.Body)); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

// Send composes and submits the unsubscribe email for intent. It reports
// whether the provider accepted the message; failures are logged, not
// returned.
func (s *Sender) Send(ctx context.Context, intent Intent) bool {
	logger := logging.WithOperation(s.logger(), OperationSend).
		With(logging.Recipient(intent.Address), logging.Domain(intent.Address))

	raw, err := s.Compose(intent)
	if err == nil {
		err = s.Provider.SendRaw(ctx, raw)
	}
	if err != nil {
		logger.Error("failed to send unsubscribe email", logging.Err(err))
		s.Metrics.RecordSend(ctx, instrumentation.StatusError)
		return false
	}

	logger.Debug("sent unsubscribe email", logging.Status(logging.StatusSuccess))
	s.Metrics.RecordSend(ctx, instrumentation.StatusSuccess)
	return true
}

func (s *Sender) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Sender) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
