// Package auth contains domain-level types for identities, role profiles and visitor sessions.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"strings"
	"time"
)

// Role is the application-level role derived from a confirmed role profile.
// Keep string form for easy logging and JSON.
type Role string

const (
	RoleUnauthenticated    Role = "unauthenticated"
	RoleDoctor             Role = "doctor"
	RolePolice             Role = "police"
	RoleAdminDoctor        Role = "admin-doctor"
	RoleAdminPolice        Role = "admin-police"
	RoleOtherAuthenticated Role = "other-authenticated"
)

// Role tags as sent by the hospital API in the profile payload.
const (
	profileRoleTagDoctor = "doctor"
	profileRoleTagPolice = "police"
)

// Capability is a gate checked by route guards.
type Capability string

const (
	CapDoctor      Capability = "doctor"
	CapPolice      Capability = "police"
	CapAdmin       Capability = "admin"
	CapAdminDoctor Capability = "admin-doctor"
)

// Identity represents the authenticated principal reported by the identity provider.
// It says who is logged in, independent of any application role.
type Identity struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Same reports whether two identities refer to the same principal.
func (i Identity) Same(other Identity) bool {
	return i.UID == other.UID
}

// IdentityEvent is a single identity-change notification.
// A nil Identity is an explicit absence (signed out, expired, or never signed in).
type IdentityEvent struct {
	Identity *Identity
}

// Present reports whether the event carries an identity.
func (e IdentityEvent) Present() bool { return e.Identity != nil }

// RoleProfile holds the server-confirmed authorization attributes for an identity.
type RoleProfile struct {
	UserID      string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name,omitempty"`
	RoleTag     string `json:"role"`
	IsAdmin     bool   `json:"is_admin"`
	BadgeNumber string `json:"badge_number,omitempty"`
	License     string `json:"license_number,omitempty"`
}

// Role maps the profile's role tag and admin flag to an application Role.
func (p RoleProfile) Role() Role {
	switch strings.ToLower(strings.TrimSpace(p.RoleTag)) {
	case profileRoleTagDoctor:
		if p.IsAdmin {
			return RoleAdminDoctor
		}
		return RoleDoctor
	case profileRoleTagPolice:
		if p.IsAdmin {
			return RoleAdminPolice
		}
		return RolePolice
	default:
		return RoleOtherAuthenticated
	}
}

// Session is an immutable snapshot of a visitor's authentication and authorization state.
// Generation increases on every identity change and on reset; it tags profile fetches.
type Session struct {
	Identity   *Identity    `json:"identity,omitempty"`
	Profile    *RoleProfile `json:"profile,omitempty"`
	Resolving  bool         `json:"resolving"`
	Generation uint64       `json:"-"`
}

// HasIdentity reports whether an identity is present.
func (s Session) HasIdentity() bool { return s.Identity != nil }

// Role returns the derived role. Without a profile an identity is other-authenticated.
func (s Session) Role() Role {
	if s.Identity == nil {
		return RoleUnauthenticated
	}
	if s.Profile == nil {
		return RoleOtherAuthenticated
	}
	return s.Profile.Role()
}

// IsDoctor is true for doctors and admin doctors.
func (s Session) IsDoctor() bool {
	r := s.Role()
	return r == RoleDoctor || r == RoleAdminDoctor
}

// IsPolice is true for police and admin police.
func (s Session) IsPolice() bool {
	r := s.Role()
	return r == RolePolice || r == RoleAdminPolice
}

// IsAdmin is true for an admin of either branch.
func (s Session) IsAdmin() bool {
	r := s.Role()
	return r == RoleAdminDoctor || r == RoleAdminPolice
}

// Can reports whether the session satisfies a capability.
// Capabilities are computed from the profile, never from the raw identity.
func (s Session) Can(c Capability) bool {
	switch c {
	case CapDoctor:
		return s.IsDoctor()
	case CapPolice:
		return s.IsPolice()
	case CapAdmin:
		return s.IsAdmin()
	case CapAdminDoctor:
		return s.Role() == RoleAdminDoctor
	default:
		return false
	}
}
