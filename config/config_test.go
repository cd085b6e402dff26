package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "http and sweeper with spaces",
			input:    " http , sweeper ",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeSweeper: true},
		},
		{
			name:     "trailing comma",
			input:    "sweeper,",
			expected: map[ServiceMode]bool{ServiceModeSweeper: true},
		},
		{name: "empty", input: "", expectError: true},
		{name: "only commas", input: ",,", expectError: true},
		{name: "unknown service", input: "http,scheduler", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := AppConfig{Services: "http"}
	if !cfg.IsHTTPServerEnabled() || cfg.IsSweeperEnabled() {
		t.Fatalf("expected only http enabled")
	}
	cfg.Services = "bogus"
	if cfg.IsHTTPServerEnabled() || cfg.IsSweeperEnabled() {
		t.Fatalf("invalid services must enable nothing")
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.API.TokenPollAttempts != 10 || cfg.API.TokenPollInterval != 100*time.Millisecond {
		t.Fatalf("unexpected token poll defaults: %d x %s", cfg.API.TokenPollAttempts, cfg.API.TokenPollInterval)
	}
	if cfg.Session.SettleDelay != 500*time.Millisecond {
		t.Fatalf("expected 500ms settle delay, got %s", cfg.Session.SettleDelay)
	}
	if cfg.Session.GuardWait != 5*time.Second {
		t.Fatalf("expected 5s guard wait, got %s", cfg.Session.GuardWait)
	}
	if cfg.API.ProfilePath != "/users/me" {
		t.Fatalf("unexpected profile path %q", cfg.API.ProfilePath)
	}
	if cfg.Auth.Mode != AuthModeOIDC {
		t.Fatalf("expected oidc auth by default, got %q", cfg.Auth.Mode)
	}
	if cfg.Redis.Enabled() {
		t.Fatalf("redis must be disabled without a URI")
	}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsSweeperEnabled() {
		t.Fatalf("expected http and sweeper enabled by default")
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "mock")
	t.Setenv("OIDC_CLIENT_ID", "console")
	t.Setenv("OIDC_CLIENT_SECRET", "super-secret")
	t.Setenv("OIDC_DISCOVERY_URL", "https://login.example.com/.well-known/openid-configuration")
	t.Setenv("OIDC_SCOPE", "openid email")
	t.Setenv("OIDC_SIGNUP_URL", "https://login.example.com/signup")
	t.Setenv("DEV_AUTH_USERS", "a@ward.test:pw:1:Ann;b@ward.test:pw2")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	expected := AuthConfig{
		Mode: AuthModeMock,
		OIDC: OIDCConfig{
			ClientID:     "console",
			ClientSecret: "super-secret",
			Scope:        "openid email",
			DiscoveryURL: "https://login.example.com/.well-known/openid-configuration",
			SignUpURL:    "https://login.example.com/signup",
		},
		DevAuth: DevAuthConfig{Users: []string{"a@ward.test:pw:1:Ann", "b@ward.test:pw2"}},
	}
	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
}

func TestAppConfig_RejectsUnknownModes(t *testing.T) {
	t.Setenv("AUTH_MODE", "saml")
	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatalf("expected AUTH_MODE=saml to fail")
	}

	t.Setenv("AUTH_MODE", "mock")
	t.Setenv("OBSERVABILITY_METRICS_BACKEND", "datadog")
	if err := env.Parse(&cfg); err == nil {
		t.Fatalf("expected unknown metrics backend to fail")
	}
}

func TestAppConfig_Validate(t *testing.T) {
	base := func() AppConfig {
		cfg := AppConfig{
			Services: "http",
			API:      APIConfig{BaseURL: "https://api.ward.test"},
			Auth:     AuthConfig{Mode: AuthModeMock, DevAuth: DevAuthConfig{Users: []string{"a@b.c:pw"}}},
		}
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg = base()
	cfg.API.BaseURL = "ftp://api.ward.test"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "API_BASE_URL") {
		t.Fatalf("expected base URL error, got %v", err)
	}

	cfg = base()
	cfg.Auth = AuthConfig{Mode: AuthModeOIDC}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "OIDC_DISCOVERY_URL") {
		t.Fatalf("expected oidc error, got %v", err)
	}

	cfg = base()
	cfg.Redis.URI = "localhost:6379"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "CREDENTIAL_ENCRYPTION_KEY") {
		t.Fatalf("expected encryption key error, got %v", err)
	}
	cfg.IsDev = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dev mode may run redis without a key: %v", err)
	}
}

func TestHTTPConfig_CookieDomain(t *testing.T) {
	tests := []struct {
		domain  string
		wantErr bool
	}{
		{domain: ""},
		{domain: "console.ward.test"},
		{domain: ".hospital.example.com"},
		{domain: "com", wantErr: true},
		{domain: "co.uk", wantErr: true},
		{domain: "github.io", wantErr: true},
	}
	for _, tt := range tests {
		h := HTTPConfig{CookieDomain: tt.domain}
		h.Sanitize()
		err := h.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("domain %q: wantErr=%v, got %v", tt.domain, tt.wantErr, err)
		}
	}
}

func TestHTTPConfig_SanitizeClampsCompression(t *testing.T) {
	h := HTTPConfig{CompressionLevel: 42, CompressionMinSize: -1}
	h.Sanitize()
	if h.CompressionLevel != 9 || h.CompressionMinSize != 0 {
		t.Fatalf("unexpected clamp result: %+v", h)
	}
	h.CompressionLevel = 0
	h.Sanitize()
	if h.CompressionLevel != 1 {
		t.Fatalf("expected level 1, got %d", h.CompressionLevel)
	}
}

func TestAppConfig_EffectiveBasePath(t *testing.T) {
	cfg := AppConfig{BuildMode: BuildModeProduction, BasePath: "/console/"}
	cfg.Sanitize()
	if got := cfg.EffectiveBasePath(); got != "/console" {
		t.Fatalf("expected /console, got %q", got)
	}

	cfg = AppConfig{BuildMode: BuildModeDevelopment, BasePath: "/console"}
	cfg.Sanitize()
	if got := cfg.EffectiveBasePath(); got != "" {
		t.Fatalf("development builds ignore the base path, got %q", got)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Backend: MetricsBackendStatsD, StatsdAddress: " "}
	cfg.Sanitize()
	if cfg.IsEnabled() {
		t.Fatalf("expected statsd to be disabled when address is empty")
	}

	cfg = ObservabilityMetricsConfig{Backend: MetricsBackendStatsD, StatsdAddress: " statsd:1234 "}
	cfg.Sanitize()
	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != defaultObservabilityName {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}
}
