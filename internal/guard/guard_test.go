package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/target/ward-console/internal/domain/auth"
)

func sessionWith(profile *domainauth.RoleProfile, resolving bool) domainauth.Session {
	return domainauth.Session{
		Identity:  &domainauth.Identity{UID: "u1", Email: "u1@ward.test"},
		Profile:   profile,
		Resolving: resolving,
	}
}

func TestEvaluate(t *testing.T) {
	doctor := &domainauth.RoleProfile{RoleTag: "doctor"}
	adminDoctor := &domainauth.RoleProfile{RoleTag: "doctor", IsAdmin: true}
	police := &domainauth.RoleProfile{RoleTag: "police"}
	adminPolice := &domainauth.RoleProfile{RoleTag: "police", IsAdmin: true}

	tests := []struct {
		name    string
		session domainauth.Session
		req     Requirement
		want    Decision
	}{
		{"initial state is resolving", domainauth.Session{Resolving: true}, Authenticated(), Resolving},
		{"identity present but still resolving", sessionWith(nil, true), Require(domainauth.CapDoctor), Resolving},
		{"resolving with stale profile", sessionWith(police, true), Require(domainauth.CapDoctor), Resolving},
		{"no identity redirects", domainauth.Session{}, Authenticated(), Redirecting},
		{"no identity redirects from role guard", domainauth.Session{}, Require(domainauth.CapPolice), Redirecting},
		{"authenticated guard never denies", sessionWith(nil, false), Authenticated(), Authorized},
		{"zero requirement is authenticated", sessionWith(nil, false), Requirement{}, Authorized},
		{"police on doctor view is denied", sessionWith(police, false), Require(domainauth.CapDoctor), Denied},
		{"missing profile is denied", sessionWith(nil, false), Require(domainauth.CapDoctor), Denied},
		{"doctor on doctor view", sessionWith(doctor, false), Require(domainauth.CapDoctor), Authorized},
		{"admin doctor on doctor view", sessionWith(adminDoctor, false), Require(domainauth.CapDoctor), Authorized},
		{"doctor on admin doctor view", sessionWith(doctor, false), Require(domainauth.CapAdminDoctor), Denied},
		{"admin doctor on admin doctor view", sessionWith(adminDoctor, false), Require(domainauth.CapAdminDoctor), Authorized},
		{"admin police on police view", sessionWith(adminPolice, false), Require(domainauth.CapPolice), Authorized},
		{"admin police on admin doctor view", sessionWith(adminPolice, false), Require(domainauth.CapAdminDoctor), Denied},
		{"admin police is admin", sessionWith(adminPolice, false), Require(domainauth.CapAdmin), Authorized},
		{"unknown role tag is denied", sessionWith(&domainauth.RoleProfile{RoleTag: "nurse"}, false), Require(domainauth.CapDoctor), Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.session, tt.req))
		})
	}
}

func TestRequirement_Capability(t *testing.T) {
	_, ok := Authenticated().Capability()
	assert.False(t, ok)

	c, ok := Require(domainauth.CapPolice).Capability()
	assert.True(t, ok)
	assert.Equal(t, domainauth.CapPolice, c)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "resolving", Resolving.String())
	assert.Equal(t, "redirecting", Redirecting.String())
	assert.Equal(t, "denied", Denied.String())
	assert.Equal(t, "authorized", Authorized.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
