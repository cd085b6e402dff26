package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/ward-console/config"
	"github.com/target/ward-console/internal/observability/metrics"
	"github.com/target/ward-console/internal/observability/statsd"
)

// Metrics bundles the selected recorder with what the HTTP layer and
// shutdown need from it.
type Metrics struct {
	Recorder metrics.Recorder
	Handler  http.Handler // non-nil only for the Prometheus backend
	close    func() error
}

// Close releases the backend's resources.
func (m Metrics) Close() error {
	if m.close == nil {
		return nil
	}
	return m.close()
}

// BuildMetrics configures the metrics backend.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (Metrics, error) {
	switch cfg.Backend {
	case config.MetricsBackendStatsD:
		client, err := statsd.NewClient(statsd.Config{
			Address: cfg.StatsdAddress,
			Prefix:  cfg.Prefix,
			Logger:  logger,
		})
		if err != nil {
			return Metrics{}, fmt.Errorf("statsd client: %w", err)
		}
		return Metrics{Recorder: metrics.NewStatsD(client), close: client.Close}, nil
	case config.MetricsBackendPrometheus:
		p := metrics.NewPrometheus(cfg.Prefix)
		return Metrics{Recorder: p, Handler: p.Handler()}, nil
	default:
		return Metrics{Recorder: metrics.Nop{}}, nil
	}
}
