package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/target/ward-console/internal/visitor"
)

const (
	// DefaultVisitorCookieName names the cookie that carries the visitor id.
	DefaultVisitorCookieName = "visitor_id"
	defaultVisitorMaxAge     = 30 * 24 * time.Hour
)

// VisitorResolver finds or creates the visitor context behind a cookie value.
type VisitorResolver interface {
	Resolve(ctx context.Context, id string) (*visitor.Context, error)
	Rotate(ctx context.Context, id string) (*visitor.Context, error)
	Len() int
}

var _ VisitorResolver = (*visitor.Registry)(nil)

// VisitorConfig configures the Visitor middleware.
type VisitorConfig struct {
	Resolver     VisitorResolver
	CookieName   string
	CookieDomain string
	MaxAge       time.Duration
	Logger       *slog.Logger
}

func (cfg VisitorConfig) normalized() VisitorConfig {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultVisitorCookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultVisitorMaxAge
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// setCookie issues the visitor_id cookie carrying id.
func (cfg VisitorConfig) setCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    id,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cfg.MaxAge / time.Second),
	})
}

// Visitor attaches the caller's visitor context to the request, issuing a
// visitor_id cookie when the caller has none or presents an unknown one.
// A navigation queued for the visitor (for example by a forced logout) is
// delivered as a redirect before the request reaches any handler.
func Visitor(cfg VisitorConfig) func(http.Handler) http.Handler {
	cfg = cfg.normalized()
	logger := cfg.Logger

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				presented = c.Value
			}
			vc, err := cfg.Resolver.Resolve(r.Context(), presented)
			if err != nil {
				logger.WarnContext(r.Context(), "resolve visitor failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			if id := vc.ID(); id != presented {
				cfg.setCookie(w, r, id)
			}

			if deliverNavigation(w, r, vc) {
				return
			}
			next.ServeHTTP(w, r.WithContext(SetVisitorInContext(r.Context(), vc)))
		})
	}
}

// deliverNavigation redirects to a queued navigation target. A request that
// is already on its way to the target only consumes it.
func deliverNavigation(w http.ResponseWriter, r *http.Request, vc *visitor.Context) bool {
	target, ok := vc.Outbox.TakeNavigation()
	if !ok {
		return false
	}
	if samePath(r.URL.Path, target) {
		return false
	}
	redirect(w, r, target)
	return true
}

func samePath(path, target string) bool {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	return path == target
}
