package config

import (
	"errors"
	"fmt"
	"strings"
)

// AuthMode represents the identity provider the console signs in against.
type AuthMode string

const (
	// AuthModeOIDC uses a hosted OpenID Connect provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses the in-memory dev directory (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, mock)", v)
	}
}

// OIDCConfig contains OpenID Connect configuration.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"ward-console"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// SignUpURL receives account creation requests; sign-up is disabled when empty.
	SignUpURL string `env:"SIGNUP_URL"`
}

// DevAuthConfig lists the accounts of the dev directory.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	// Users holds "email:password[:uid[:name]]" entries.
	Users []string `env:"USERS" envDefault:"doctor@ward.local:doctor:1:Dev Doctor;police@ward.local:police:2:Dev Officer" envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Validate checks that the selected mode is fully configured.
func (c *AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeOIDC:
		if c.OIDC.DiscoveryURL == "" || c.OIDC.ClientID == "" {
			return errors.New("AUTH_MODE=oidc requires OIDC_DISCOVERY_URL and OIDC_CLIENT_ID")
		}
	case AuthModeMock:
		if len(c.DevAuth.Users) == 0 {
			return errors.New("AUTH_MODE=mock requires DEV_AUTH_USERS")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", c.Mode)
	}
	return nil
}
