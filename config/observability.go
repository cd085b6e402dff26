package config

import (
	"fmt"
	"strings"
)

const defaultObservabilityName = "ward_console"

// MetricsBackend selects where metrics are emitted.
type MetricsBackend string

const (
	MetricsBackendNone       MetricsBackend = "none"
	MetricsBackendStatsD     MetricsBackend = "statsd"
	MetricsBackendPrometheus MetricsBackend = "prometheus"
)

// UnmarshalText implements encoding.TextUnmarshaler for MetricsBackend.
func (b *MetricsBackend) UnmarshalText(text []byte) error {
	v := MetricsBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case "":
		*b = MetricsBackendNone
	case MetricsBackendNone, MetricsBackendStatsD, MetricsBackendPrometheus:
		*b = v
	default:
		return fmt.Errorf("invalid MetricsBackend: %q (valid options: none, statsd, prometheus)", v)
	}
	return nil
}

// ObservabilityConfig groups configuration that controls metrics and logging.
type ObservabilityConfig struct {
	Metrics  ObservabilityMetricsConfig
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// ObservabilityMetricsConfig controls emission of metrics to StatsD or Prometheus.
type ObservabilityMetricsConfig struct {
	Backend       MetricsBackend `env:"OBSERVABILITY_METRICS_BACKEND"        envDefault:"none"`
	StatsdAddress string         `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string         `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"ward_console"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.Backend == "" {
		c.Backend = MetricsBackendNone
	}
	if c.Backend == MetricsBackendStatsD && c.StatsdAddress == "" {
		c.Backend = MetricsBackendNone
	}
	if c.Prefix = strings.TrimSpace(c.Prefix); c.Prefix == "" {
		c.Prefix = defaultObservabilityName
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Backend != MetricsBackendNone
}
