// Package metrics records console-level metrics behind a backend-neutral Recorder.
package metrics

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	obserrors "github.com/target/ward-console/internal/observability/errors"
	"github.com/target/ward-console/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultStale   = "stale"
)

// APICall captures a single round trip to the hospital API.
type APICall struct {
	Method   string
	Path     string
	Status   int // 0 when no response was received
	Duration time.Duration
	Err      error
}

// Recorder is implemented by every metrics backend.
type Recorder interface {
	APIRequest(call APICall)
	TokenUnavailable()
	ForcedLogout()
	ProfileFetch(result string, d time.Duration)
	VisitorsActive(n int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) APIRequest(APICall)                 {}
func (Nop) TokenUnavailable()                  {}
func (Nop) ForcedLogout()                      {}
func (Nop) ProfileFetch(string, time.Duration) {}
func (Nop) VisitorsActive(int)                 {}

// StatsD emits metrics through a StatsD sink.
type StatsD struct {
	sink statsd.Sink
}

var _ Recorder = (*StatsD)(nil)

// NewStatsD wraps a sink. A nil sink behaves like Nop.
func NewStatsD(sink statsd.Sink) *StatsD {
	return &StatsD{sink: sink}
}

func (s *StatsD) APIRequest(call APICall) {
	if s.sink == nil {
		return
	}
	tags := map[string]string{
		"method": strings.ToUpper(call.Method),
		"route":  RouteLabel(call.Path),
		"status": StatusClass(call.Status),
	}
	if call.Err != nil {
		if class := obserrors.Classify(call.Err); class != "" {
			tags["error_class"] = class
		}
	}
	s.sink.Count("api.request", 1, tags)
	if call.Duration > 0 {
		s.sink.Timing("api.request.duration", call.Duration, CloneTags(tags))
	}
}

func (s *StatsD) TokenUnavailable() {
	if s.sink != nil {
		s.sink.Count("api.token_unavailable", 1, nil)
	}
}

func (s *StatsD) ForcedLogout() {
	if s.sink != nil {
		s.sink.Count("session.forced_logout", 1, nil)
	}
}

func (s *StatsD) ProfileFetch(result string, d time.Duration) {
	if s.sink == nil {
		return
	}
	tags := map[string]string{"result": result}
	s.sink.Count("session.profile_fetch", 1, tags)
	if d > 0 {
		s.sink.Timing("session.profile_fetch.duration", d, CloneTags(tags))
	}
}

func (s *StatsD) VisitorsActive(n int) {
	if s.sink != nil {
		s.sink.Gauge("visitors.active", float64(n), nil)
	}
}

var idSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F-]{32,36})$`)

// RouteLabel collapses identifier path segments so label cardinality stays bounded.
func RouteLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segs {
		if idSegment.MatchString(seg) {
			segs[i] = ":id"
		}
	}
	return "/" + strings.Join(segs, "/")
}

// StatusClass buckets an HTTP status code ("2xx", "4xx" ...). Zero means no response.
func StatusClass(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
