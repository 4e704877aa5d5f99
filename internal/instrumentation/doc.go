// Package instrumentation provides OpenTelemetry metrics and tracing for
// listunsub runs.
//
// # Metrics
//
// Run metrics:
//   - unsubscribe_pages_total: Counter of mailbox result pages scanned
//   - unsubscribe_messages_total: Counter of messages inspected
//   - unsubscribe_sends_total: Counter of unsubscribe emails by status
//   - unsubscribe_skips_total: Counter of skipped messages by reason
//
// Google API metrics:
//   - google_api_operations_total: Counter of Gmail API operations by operation and status
//   - google_api_operation_duration_seconds: Histogram of Gmail API operation durations
//
// OAuth metrics:
//   - oauth_token_refresh_total: Counter of token refresh/consent events by result
//
// # Tracing
//
// Spans are created for the whole run (unsubscribe.run) and for every
// Google API call (google.gmail.<operation>).
//
// # Configuration
//
// Instrumentation is disabled by default for the CLI and is configured from
// the environment:
//   - INSTRUMENTATION_ENABLED: Enable metrics and tracing (default: false)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: Use plain HTTP for OTLP (default: false)
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: listunsub)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, cfg.Instrumentation)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
package instrumentation
