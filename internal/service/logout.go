package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/target/ward-console/internal/apiclient"
	"github.com/target/ward-console/internal/observability/metrics"
	"github.com/target/ward-console/internal/ports"
)

// Forced logout defaults.
const (
	DefaultLogoutNotice    = "Your session has expired. Please sign in again."
	DefaultLoginPath       = "/login"
	defaultSignOutDeadline = 10 * time.Second
)

// ForcedLogoutOptions groups dependencies for ForcedLogout.
type ForcedLogoutOptions struct {
	Provider ports.IdentityProvider
	Outbox   ForcedLogoutOutbox
	Config   ForcedLogoutConfig
}

// ForcedLogoutOutbox is where the visitor-facing effects land.
type ForcedLogoutOutbox interface {
	ports.Notifier
	ports.Navigator
}

// ForcedLogoutConfig holds optional settings.
type ForcedLogoutConfig struct {
	Notice    string
	LoginPath string
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// ForcedLogout ends a visitor's session when the API rejects its credentials.
//
// It is idempotent: concurrent triggers collapse into one sign-out, and a trigger
// after the identity is already gone does nothing. The visitor sees one notice
// and is sent to the login view once.
type ForcedLogout struct {
	provider  ports.IdentityProvider
	outbox    ForcedLogoutOutbox
	notice    string
	loginPath string
	metrics   metrics.Recorder
	logger    *slog.Logger

	group singleflight.Group
}

var _ apiclient.FailureHandler = (*ForcedLogout)(nil)

// NewForcedLogout constructs a ForcedLogout.
func NewForcedLogout(opts ForcedLogoutOptions) *ForcedLogout {
	if opts.Provider == nil {
		panic("IdentityProvider is required")
	}
	if opts.Outbox == nil {
		panic("ForcedLogoutOutbox is required")
	}
	cfg := opts.Config
	if cfg.Notice == "" {
		cfg.Notice = DefaultLogoutNotice
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ForcedLogout{
		provider:  opts.Provider,
		outbox:    opts.Outbox,
		notice:    cfg.Notice,
		loginPath: cfg.LoginPath,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With("component", "forced_logout"),
	}
}

// HandleFailure triggers a forced logout for 401 responses and ignores everything else.
func (f *ForcedLogout) HandleFailure(ctx context.Context, err error) {
	if !apiclient.IsUnauthorized(err) {
		return
	}
	f.Trigger(ctx)
}

// Trigger runs the logout. It reports whether this call performed it.
func (f *ForcedLogout) Trigger(ctx context.Context) bool {
	if _, ok := f.provider.Current(); !ok {
		return false
	}
	v, _, _ := f.group.Do("logout", func() (any, error) {
		// Re-check: a previous flight may have completed since the check above.
		if _, ok := f.provider.Current(); !ok {
			return false, nil
		}
		f.run(ctx)
		return true, nil
	})
	performed, _ := v.(bool)
	return performed
}

func (f *ForcedLogout) run(ctx context.Context) {
	// The triggering request may be cancelled; the sign-out must still complete.
	signCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultSignOutDeadline)
	defer cancel()

	if err := f.provider.SignOut(signCtx); err != nil {
		f.logger.WarnContext(ctx, "forced logout: sign-out reported error", "error", err)
	}
	f.outbox.Notify(f.notice)
	f.outbox.Navigate(f.loginPath)
	f.metrics.ForcedLogout()
	f.logger.InfoContext(ctx, "forced logout")
}
