package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrReason    = "reason"
)

// Metrics records run and API metrics. The zero value is a no-op recorder.
type Metrics struct {
	pagesTotal    metric.Int64Counter
	messagesTotal metric.Int64Counter
	sendsTotal    metric.Int64Counter
	skipsTotal    metric.Int64Counter

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	oauthTokenRefreshTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.pagesTotal, err = meter.Int64Counter(
		"unsubscribe_pages_total",
		metric.WithDescription("Total number of mailbox result pages scanned"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create unsubscribe_pages_total counter: %w", err)
	}

	m.messagesTotal, err = meter.Int64Counter(
		"unsubscribe_messages_total",
		metric.WithDescription("Total number of messages inspected for an unsubscribe target"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create unsubscribe_messages_total counter: %w", err)
	}

	m.sendsTotal, err = meter.Int64Counter(
		"unsubscribe_sends_total",
		metric.WithDescription("Total number of unsubscribe emails sent"),
		metric.WithUnit("{email}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create unsubscribe_sends_total counter: %w", err)
	}

	m.skipsTotal, err = meter.Int64Counter(
		"unsubscribe_skips_total",
		metric.WithDescription("Total number of messages skipped without sending"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create unsubscribe_skips_total counter: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh and consent attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	return m, nil
}

// RecordPage records one scanned result page.
func (m *Metrics) RecordPage(ctx context.Context) {
	if m == nil || m.pagesTotal == nil {
		return
	}
	m.pagesTotal.Add(ctx, 1)
}

// RecordMessage records one inspected message.
func (m *Metrics) RecordMessage(ctx context.Context) {
	if m == nil || m.messagesTotal == nil {
		return
	}
	m.messagesTotal.Add(ctx, 1)
}

// RecordSend records an unsubscribe send attempt. status is StatusSuccess or StatusError.
func (m *Metrics) RecordSend(ctx context.Context, status string) {
	if m == nil || m.sendsTotal == nil {
		return
	}
	m.sendsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordSkip records a message that did not lead to a send.
// reason is one of the Skip* constants.
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	if m == nil || m.skipsTotal == nil {
		return
	}
	m.skipsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records a token refresh or consent attempt.
// result is one of the OAuthResult* constants.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}
