package instrumentation

import (
	"fmt"
	"time"
)

// Config holds the configuration for OpenTelemetry instrumentation.
// Fields are populated from the environment by the config package.
type Config struct {
	// ServiceName is the name of the service (default: listunsub)
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"listunsub"`

	// ServiceVersion is set from the build version, not the environment.
	ServiceVersion string `env:"-"`

	// Enabled determines if instrumentation is active (default: false)
	Enabled bool `env:"INSTRUMENTATION_ENABLED" envDefault:"false"`

	// MetricsExporter is one of "prometheus", "otlp", "stdout"
	MetricsExporter string `env:"METRICS_EXPORTER" envDefault:"prometheus"`

	// TracingExporter is one of "otlp", "stdout", "none"
	TracingExporter string `env:"TRACING_EXPORTER" envDefault:"none"`

	// OTLPEndpoint is the OTLP collector endpoint without protocol prefix,
	// e.g. "localhost:4318".
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// OTLPInsecure switches OTLP export to plain HTTP. Local development only.
	OTLPInsecure bool `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`

	// TraceSamplingRate is the sampling rate for traces (0.0 to 1.0).
	// A run produces few spans, so everything is sampled by default.
	TraceSamplingRate float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	validMetricsExporters := map[string]bool{ExporterPrometheus: true, ExporterOTLP: true, ExporterStdout: true}
	if c.MetricsExporter != "" && !validMetricsExporters[c.MetricsExporter] {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	validTracingExporters := map[string]bool{ExporterOTLP: true, ExporterStdout: true, ExporterNone: true}
	if c.TracingExporter != "" && !validTracingExporters[c.TracingExporter] {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.TracingExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
	}
	if c.MetricsExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
	}

	return nil
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// OAuth result values
	OAuthResultRefreshed = "refreshed"
	OAuthResultConsent   = "consent"
	OAuthResultFailure   = "failure"

	// Google service names
	ServiceGmail = "gmail"

	// Gmail operations
	OperationList    = "list"
	OperationGet     = "get"
	OperationSend    = "send"
	OperationProfile = "profile"

	// Skip reasons
	SkipNoTarget          = "no_target"
	SkipInvalidTarget     = "invalid_target"
	SkipAlreadyRegistered = "already_registered"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the export interval of periodic metric readers.
	DefaultMetricInterval = 10 * time.Second
)
