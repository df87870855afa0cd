package config

import (
	"fmt"
	"strings"
	"time"
)

type TelemetryConfig struct {
	Traces  TracesConfig  `koanf:"traces"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// TracesConfig exports spans over OTLP/HTTP. SampleRatio applies to root spans only; children
// follow their parent. Zero means every trace is sampled.
type TracesConfig struct {
	Enabled     bool           `koanf:"enabled"`
	SampleRatio float64        `koanf:"sampleratio"`
	OtlpHttp    OtlpHttpConfig `koanf:"otlphttp"`
}

type OtlpHttpConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Insecure bool          `koanf:"insecure"`
	Timeout  time.Duration `koanf:"timeout"`
}

// MetricsConfig exposes otel metrics in Prometheus format on the HTTP server.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func (c *TelemetryConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Telemetry ---\n")
	b.WriteString(fmt.Sprintf("  traces.enabled: %v\n", c.Traces.Enabled))
	if c.Traces.Enabled {
		b.WriteString(fmt.Sprintf("  traces.sampleratio: %.2f\n", c.Traces.SampleRatio))
		b.WriteString(fmt.Sprintf("  traces.otlphttp: %s (insecure=%v, timeout=%v)\n",
			c.Traces.OtlpHttp.Endpoint, c.Traces.OtlpHttp.Insecure, c.Traces.OtlpHttp.Timeout))
	}
	b.WriteString(fmt.Sprintf("  metrics.enabled: %v\n", c.Metrics.Enabled))
	if c.Metrics.Enabled {
		b.WriteString(fmt.Sprintf("  metrics.path: %s\n", c.Metrics.Path))
	}
	return b.String()
}

func (c *TelemetryConfig) Validate() error {
	if t := c.Traces; t.Enabled {
		switch {
		case t.OtlpHttp.Endpoint == "":
			return fmt.Errorf("telemetry.traces.otlphttp.endpoint is required when traces are enabled")
		case t.OtlpHttp.Timeout <= 0:
			return fmt.Errorf("telemetry.traces.otlphttp.timeout must be greater than 0")
		case t.SampleRatio < 0 || t.SampleRatio > 1:
			return fmt.Errorf("telemetry.traces.sampleratio must be between 0 and 1, got %v", t.SampleRatio)
		}
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("telemetry.metrics.path must start with '/': %q", c.Metrics.Path)
	}
	return nil
}
