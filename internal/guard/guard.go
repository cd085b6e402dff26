// Package guard decides what a protected view shows for a given Session.
//
// Evaluation is a pure function of the Session snapshot. While the Session is
// resolving no decision about identity or role is made; callers wait and
// re-evaluate once resolution completes.
package guard

import (
	domainauth "github.com/target/ward-console/internal/domain/auth"
)

// Decision is the outcome of evaluating a guard.
type Decision int

const (
	// Resolving means the session is still settling. Render nothing and do not redirect.
	Resolving Decision = iota
	// Redirecting means no identity is present; send the visitor to the login view.
	Redirecting
	// Denied means an identity is present but lacks the required capability.
	Denied
	// Authorized means the protected content may render.
	Authorized
)

func (d Decision) String() string {
	switch d {
	case Resolving:
		return "resolving"
	case Redirecting:
		return "redirecting"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Requirement describes what a protected view needs.
// A zero Requirement is equivalent to Authenticated().
type Requirement struct {
	capability domainauth.Capability
	hasCap     bool
}

// Authenticated requires any identity. It never yields Denied.
func Authenticated() Requirement { return Requirement{} }

// Require requires an identity holding capability c.
func Require(c domainauth.Capability) Requirement {
	return Requirement{capability: c, hasCap: true}
}

// Capability returns the required capability, if any.
func (r Requirement) Capability() (domainauth.Capability, bool) {
	return r.capability, r.hasCap
}

// Evaluate applies req to s.
func Evaluate(s domainauth.Session, req Requirement) Decision {
	if s.Resolving {
		return Resolving
	}
	if !s.HasIdentity() {
		return Redirecting
	}
	if req.hasCap && !s.Can(req.capability) {
		return Denied
	}
	return Authorized
}
