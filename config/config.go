package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// BuildMode selects production or development behavior.
type BuildMode string

const (
	// BuildModeProduction applies the configured base path to links and assets.
	BuildModeProduction BuildMode = "production"
	// BuildModeDevelopment serves everything from the root.
	BuildModeDevelopment BuildMode = "development"
)

// UnmarshalText implements encoding.TextUnmarshaler for BuildMode.
func (m *BuildMode) UnmarshalText(text []byte) error {
	v := BuildMode(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case BuildModeProduction, BuildModeDevelopment:
		*m = v
		return nil
	default:
		return fmt.Errorf("invalid BuildMode: %q (valid options: production, development)", v)
	}
}

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - api.go: Hospital API client configuration
//   - auth.go: Identity provider configuration
//   - session.go: Session lifecycle timings
//   - http.go: HTTP server configuration
//   - redis.go: Credential store configuration
//   - services.go: Service mode configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// BuildMode decides whether BasePath applies.
	BuildMode BuildMode `env:"BUILD_MODE" envDefault:"production"`

	// BasePath prefixes links to static assets in production.
	BasePath string `env:"APP_BASE_PATH" envDefault:""`

	// WebDir serves templates and static files from disk instead of the
	// embedded copies (development only).
	WebDir string `env:"WEB_DIR" envDefault:""`

	// CredentialEncryptionKey seals refresh tokens before they reach Redis.
	CredentialEncryptionKey string `env:"CREDENTIAL_ENCRYPTION_KEY"`

	API     APIConfig
	Auth    AuthConfig
	Session SessionConfig
	HTTP    HTTPConfig
	Redis   RedisConfig `envPrefix:"REDIS_"`

	// Services is a comma-delimited list of the services this process runs.
	Services string `env:"SERVICES" envDefault:"http,sweeper"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.detectDevMode()
	c.API.Sanitize()
	c.Session.Sanitize()
	c.HTTP.Sanitize()
	c.Redis.Sanitize()
	c.Observability.Sanitize()
	c.BasePath = strings.TrimRight(strings.TrimSpace(c.BasePath), "/")
}

// Validate reports configuration that cannot be repaired by Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := c.GetEnabledServices(); err != nil {
		errs = append(errs, err)
	}
	if err := c.API.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.Enabled() && c.CredentialEncryptionKey == "" && !c.IsDev {
		errs = append(errs, errors.New("CREDENTIAL_ENCRYPTION_KEY is required when Redis is configured"))
	}
	return errors.Join(errs...)
}

// EffectiveBasePath returns BasePath in production builds and "" otherwise.
func (c *AppConfig) EffectiveBasePath() string {
	if c.BuildMode == BuildModeDevelopment || c.IsDev {
		return ""
	}
	return c.BasePath
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
	if c.BuildMode == BuildModeDevelopment {
		c.IsDev = true
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsSweeperEnabled returns true if the idle visitor sweeper is enabled.
func (c *AppConfig) IsSweeperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeSweeper]
}
