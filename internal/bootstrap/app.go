package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/ward-console/config"
	redisadapter "github.com/target/ward-console/internal/adapters/redis"
	"github.com/target/ward-console/internal/apiclient"
	"github.com/target/ward-console/internal/ports"
	"github.com/target/ward-console/internal/visitor"
)

// App holds the wired runtime of the console.
type App struct {
	Config   *config.AppConfig
	Registry *visitor.Registry
	Handler  http.Handler
	Metrics  Metrics

	redis  redis.UniversalClient
	logger *slog.Logger
}

// AppDeps groups optional overrides for NewApp.
type AppDeps struct {
	Config *config.AppConfig // Required
	// Connector replaces the connector built from Config.Auth.
	Connector ports.IdentityConnector
	// Redis replaces the client built from Config.Redis; the App closes it.
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// NewApp connects infrastructure and wires every component.
// Callers must Close the returned App.
func NewApp(ctx context.Context, deps AppDeps) (*App, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, logger: logger, redis: deps.Redis}

	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var err error
	if app.Metrics, err = BuildMetrics(cfg.Observability.Metrics, logger); err != nil {
		return nil, err
	}

	connector := deps.Connector
	if connector == nil {
		if connector, err = BuildConnector(AuthConfig{Auth: cfg.Auth, Logger: logger}); err != nil {
			return nil, err
		}
	}

	if app.redis == nil && cfg.Redis.Enabled() {
		if app.redis, err = ConnectRedis(ctx, cfg.Redis, logger); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	var creds ports.CredentialStore
	if app.redis != nil {
		creds = redisadapter.NewCredentialStore(app.redis, redisadapter.CredentialStoreOptions{
			Sealer:     CreateSealer(cfg.CredentialEncryptionKey, logger),
			Prefix:     cfg.Redis.Prefix,
			DefaultTTL: cfg.Redis.CredentialTTL,
		})
	} else {
		logger.InfoContext(ctx, "credential store disabled; visitors are kept in memory only")
	}

	app.Registry, err = visitor.NewRegistry(visitor.RegistryOptions{
		Connector:   connector,
		Credentials: creds,
		Config: visitor.Config{
			APIBaseURL:       cfg.API.BaseURL,
			ProfilePath:      cfg.API.ProfilePath,
			ErrorMessageExpr: cfg.API.ErrorMessageExpr,
			TokenPoll: apiclient.TokenPoll{
				Attempts: cfg.API.TokenPollAttempts,
				Interval: cfg.API.TokenPollInterval,
			},
			SettleDelay:    cfg.Session.SettleDelay,
			FetchTimeout:   cfg.Session.FetchTimeout,
			NoticeDuration: cfg.Session.NoticeDuration,
		},
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Metrics:    app.Metrics.Recorder,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("visitor registry: %w", err)
	}

	app.Handler, err = BuildHTTPHandler(HTTPHandlerConfig{
		Config:   cfg,
		Visitors: app.Registry,
		Metrics:  app.Metrics.Handler,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return app, nil
}

// Run starts the enabled services and blocks until ctx is cancelled or one fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.Config.IsHTTPServerEnabled() {
		server := newServer(a.Config.HTTP.Addr, a.Handler)
		g.Go(func() error { return serveHTTP(gctx, server, a.logger) })
	}
	if a.Config.IsSweeperEnabled() {
		sweeper, err := visitor.NewSweeper(visitor.SweeperOptions{
			Registry: a.Registry,
			Interval: a.Config.Session.SweepInterval,
			IdleTTL:  a.Config.Session.IdleTTL,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases visitors, Redis and metrics. Safe to call on a partially built App.
func (a *App) Close() {
	if a.Registry != nil {
		a.Registry.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("close redis failed", "error", err)
		}
	}
	if err := a.Metrics.Close(); err != nil {
		a.logger.Error("close metrics failed", "error", err)
	}
}
