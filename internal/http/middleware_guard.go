package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	"github.com/target/ward-console/internal/guard"
)

const (
	// DefaultGuardWait bounds how long a guarded request waits for the session to resolve.
	DefaultGuardWait = 5 * time.Second
	// DefaultLoginPath is where unauthenticated visitors are sent.
	DefaultLoginPath = "/login"
)

// GuardConfig configures the route guard middleware.
type GuardConfig struct {
	Wait      time.Duration
	LoginPath string
	Renderer  *TemplateRenderer // renders the access denied view
	Logger    *slog.Logger
}

func (c GuardConfig) normalized() GuardConfig {
	if c.Wait <= 0 {
		c.Wait = DefaultGuardWait
	}
	if c.LoginPath == "" {
		c.LoginPath = DefaultLoginPath
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// RequireVisitor admits any visitor with an identity.
func RequireVisitor(cfg GuardConfig) func(http.Handler) http.Handler {
	return requireGuard(cfg.normalized(), guard.Authenticated())
}

// RequireCapability admits visitors whose confirmed profile grants c.
func RequireCapability(cfg GuardConfig, c domainauth.Capability) func(http.Handler) http.Handler {
	return requireGuard(cfg.normalized(), guard.Require(c))
}

func requireGuard(cfg GuardConfig, req guard.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vc, ok := VisitorFromContext(r.Context())
			if !ok {
				cfg.Logger.ErrorContext(r.Context(), "guarded route without visitor middleware", "path", r.URL.Path)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			snap := vc.Snapshot()
			if guard.Evaluate(snap, req) == guard.Resolving {
				ctx, cancel := context.WithTimeout(r.Context(), cfg.Wait)
				var err error
				snap, err = vc.Session.WaitResolved(ctx)
				cancel()
				if err != nil {
					cfg.Logger.WarnContext(r.Context(), "session still resolving", "path", r.URL.Path, "error", err)
					w.Header().Set("Retry-After", "1")
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
			}

			switch guard.Evaluate(snap, req) {
			case guard.Authorized:
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), snap)))
			case guard.Denied:
				capability, _ := req.Capability()
				cfg.Renderer.AccessDenied(w, r, snap, capability)
			default:
				redirect(w, r, loginURL(cfg.LoginPath, r))
			}
		})
	}
}

// loginURL builds the login location carrying the current page as redirect_uri.
func loginURL(loginPath string, r *http.Request) string {
	back := ""
	if IsHTMX(r) {
		back = safeRedirectFromURL(r.Header.Get("Hx-Current-Url"))
	}
	if back == "" {
		back = safeRedirectPath(r.URL.RequestURI())
	}
	if back == "" || back == "/" {
		return loginPath
	}
	return loginPath + "?redirect_uri=" + url.QueryEscape(back)
}

type sessionKey struct{}

// SetSessionInContext stores the snapshot a guard admitted the request with.
func SetSessionInContext(ctx context.Context, s domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the snapshot stored by a guard.
func SessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return s, ok
}
