package bootstrap

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/ward-console/config"
	"github.com/target/ward-console/internal/cryptoutil"
	"github.com/target/ward-console/internal/observability/metrics"
)

func TestGetEnabledServices(t *testing.T) {
	assert.Equal(t, []string{"http", "sweeper"}, GetEnabledServices(&config.AppConfig{Services: "sweeper,http"}))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "nope"}))
	assert.Empty(t, GetEnabledServices(nil))
}

func TestValidateServiceConfig(t *testing.T) {
	require.Error(t, ValidateServiceConfig(nil))

	cfg := testAppConfig("http://api.ward.test")
	require.NoError(t, ValidateServiceConfig(cfg))

	cfg.Services = ""
	require.Error(t, ValidateServiceConfig(cfg))
}

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLogLevel("info") })
	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, "DEBUG", logLevel.Level().String())
	require.NoError(t, SetLogLevel(""))
	require.Error(t, SetLogLevel("loud"))
}

func TestCreateSealer(t *testing.T) {
	logger := discardLogger()
	assert.IsType(t, cryptoutil.Plain{}, CreateSealer("", logger))

	hexKey := strings.Repeat("ab", 32)
	for _, key := range []string{hexKey, "correct horse battery staple"} {
		s := CreateSealer(key, logger)
		require.IsType(t, &cryptoutil.AESGCM{}, s)

		sealed, err := s.Seal([]byte("refresh-token"))
		require.NoError(t, err)
		assert.NotContains(t, sealed, "refresh-token")
		opened, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "refresh-token", string(opened))
	}
}

func TestBuildMetrics(t *testing.T) {
	logger := discardLogger()

	m, err := BuildMetrics(config.ObservabilityMetricsConfig{Backend: config.MetricsBackendNone}, logger)
	require.NoError(t, err)
	assert.IsType(t, metrics.Nop{}, m.Recorder)
	assert.Nil(t, m.Handler)
	require.NoError(t, m.Close())

	m, err = BuildMetrics(config.ObservabilityMetricsConfig{Backend: config.MetricsBackendPrometheus, Prefix: "ward_console"}, logger)
	require.NoError(t, err)
	require.NotNil(t, m.Handler)
	m.Recorder.ForcedLogout()
	rec := httptest.NewRecorder()
	m.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "ward_console_")

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()
	m, err = BuildMetrics(config.ObservabilityMetricsConfig{
		Backend:       config.MetricsBackendStatsD,
		StatsdAddress: pc.LocalAddr().String(),
		Prefix:        "ward_console",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &metrics.StatsD{}, m.Recorder)
	require.NoError(t, m.Close())
}

func testAppConfig(apiURL string) *config.AppConfig {
	cfg := &config.AppConfig{
		Services: "http",
		API:      config.APIConfig{BaseURL: apiURL},
		Auth: config.AuthConfig{
			Mode:    config.AuthModeMock,
			DevAuth: config.DevAuthConfig{Users: []string{"doc@ward.test:pw:1:Doc"}},
		},
	}
	cfg.Sanitize()
	return cfg
}

func TestNewApp_WiresRouter(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	defer api.Close()

	app, err := NewApp(context.Background(), AppDeps{Config: testAppConfig(api.URL), Logger: discardLogger()})
	require.NoError(t, err)
	defer app.Close()

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign in")

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_RequiresConfig(t *testing.T) {
	_, err := NewApp(context.Background(), AppDeps{})
	require.Error(t, err)

	cfg := testAppConfig("::not a url")
	_, err = NewApp(context.Background(), AppDeps{Config: cfg, Logger: discardLogger()})
	require.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	defer api.Close()

	cfg := testAppConfig(api.URL)
	cfg.Services = "http,sweeper"
	cfg.HTTP.Addr = "127.0.0.1:0"
	app, err := NewApp(context.Background(), AppDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
