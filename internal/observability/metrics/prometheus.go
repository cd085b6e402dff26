package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records metrics into a dedicated registry exposed by Handler.
type Prometheus struct {
	registry     *prometheus.Registry
	apiRequests  *prometheus.CounterVec
	apiDuration  *prometheus.HistogramVec
	tokenMissing prometheus.Counter
	logouts      prometheus.Counter
	profiles     *prometheus.CounterVec
	profileTime  prometheus.Histogram
	visitors     prometheus.Gauge
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus builds the collectors and registers them on a fresh registry.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "ward_console"
	}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Requests sent to the hospital API.",
		}, []string{"method", "route", "code"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Round-trip latency of hospital API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tokenMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_token_unavailable_total",
			Help:      "Requests sent without a bearer token after the token poll gave up.",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_logouts_total",
			Help:      "Sessions terminated because the API rejected the credential.",
		}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_fetches_total",
			Help:      "Role profile fetches by result.",
		}, []string{"result"}),
		profileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "profile_fetch_duration_seconds",
			Help:      "Latency of role profile fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		visitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visitors_active",
			Help:      "Visitor contexts currently held in memory.",
		}),
	}
	p.registry.MustRegister(
		p.apiRequests, p.apiDuration, p.tokenMissing, p.logouts,
		p.profiles, p.profileTime, p.visitors,
		collectors.NewGoCollector(),
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) APIRequest(call APICall) {
	method := strings.ToUpper(call.Method)
	route := RouteLabel(call.Path)
	code := "none"
	if call.Status > 0 {
		code = strconv.Itoa(call.Status)
	}
	p.apiRequests.WithLabelValues(method, route, code).Inc()
	if call.Duration > 0 {
		p.apiDuration.WithLabelValues(method, route).Observe(call.Duration.Seconds())
	}
}

func (p *Prometheus) TokenUnavailable() { p.tokenMissing.Inc() }

func (p *Prometheus) ForcedLogout() { p.logouts.Inc() }

func (p *Prometheus) ProfileFetch(result string, d time.Duration) {
	p.profiles.WithLabelValues(result).Inc()
	if d > 0 {
		p.profileTime.Observe(d.Seconds())
	}
}

func (p *Prometheus) VisitorsActive(n int) { p.visitors.Set(float64(n)) }
