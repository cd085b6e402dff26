package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/ward-console/config"
	"github.com/target/ward-console/internal/adapters/devauth"
	"github.com/target/ward-console/internal/adapters/oidc"
	"github.com/target/ward-console/internal/ports"
)

// AuthConfig contains configuration for the identity connector.
type AuthConfig struct {
	Auth       config.AuthConfig
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// BuildConnector creates the identity connector for the configured auth mode.
//
//nolint:ireturn // callers only need the connector port
func BuildConnector(cfg AuthConfig) (ports.IdentityConnector, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		dir, err := buildDevDirectory(cfg.Auth.DevAuth, logger)
		if err != nil {
			return nil, err
		}
		return dir, nil
	case config.AuthModeOIDC:
		prov, err := buildOIDCProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
		return prov, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func buildDevDirectory(cfg config.DevAuthConfig, logger *slog.Logger) (*devauth.Directory, error) {
	users, err := devauth.ParseUsers(cfg.Users)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, errors.New("dev auth requires at least one user")
	}
	logger.Warn("using dev identity directory; do not enable in production", "users", len(users))
	return devauth.NewDirectory(devauth.Config{Users: users, Logger: logger})
}

func buildOIDCProvider(cfg AuthConfig, logger *slog.Logger) (*oidc.Provider, error) {
	o := cfg.Auth.OIDC
	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Scope:        o.Scope,
		DiscoveryURL: o.DiscoveryURL,
		SignUpURL:    o.SignUpURL,
		HTTPClient:   cfg.HTTPClient,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	return prov, nil
}
