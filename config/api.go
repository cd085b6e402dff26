package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// APIConfig configures the authenticated client for the hospital REST API.
type APIConfig struct {
	// BaseURL is the root every request path is resolved against.
	BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8000"`

	// ProfilePath returns the signed-in user's role profile.
	ProfilePath string `env:"API_PROFILE_PATH" envDefault:"/users/me"`

	// ErrorMessageExpr is a JMESPath expression that pulls a message out of JSON error bodies.
	ErrorMessageExpr string `env:"API_ERROR_MESSAGE_EXPR" envDefault:"detail || message || error"`

	// TokenPollAttempts and TokenPollInterval bound the wait for an auth token.
	TokenPollAttempts int           `env:"API_TOKEN_POLL_ATTEMPTS" envDefault:"10"`
	TokenPollInterval time.Duration `env:"API_TOKEN_POLL_INTERVAL" envDefault:"100ms"`

	// Timeout applies to each HTTP round trip.
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to API client values.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.ProfilePath = strings.TrimSpace(c.ProfilePath); c.ProfilePath == "" {
		c.ProfilePath = "/users/me"
	}
	if c.TokenPollAttempts < 1 {
		c.TokenPollAttempts = 10
	}
	if c.TokenPollInterval <= 0 {
		c.TokenPollInterval = 100 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (c *APIConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL must be http or https, got %q", u.Scheme)
	}
	return nil
}
