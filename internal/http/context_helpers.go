package httpx

import (
	"context"

	"github.com/target/ward-console/internal/visitor"
)

// visitorKey is an unexported context key type to avoid collisions across packages.
type visitorKey struct{}

// SetVisitorInContext returns a child context that carries the visitor context.
// If vc is nil, the original ctx is returned unchanged.
func SetVisitorInContext(ctx context.Context, vc *visitor.Context) context.Context {
	if vc == nil {
		return ctx
	}
	return context.WithValue(ctx, visitorKey{}, vc)
}

// VisitorFromContext returns the visitor context attached by the Visitor middleware.
func VisitorFromContext(ctx context.Context) (*visitor.Context, bool) {
	vc, ok := ctx.Value(visitorKey{}).(*visitor.Context)
	return vc, ok && vc != nil
}
