package auth

// Package auth contains simple hand-written test doubles for identity and session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	apperrors "github.com/target/ward-console/internal/errors"
	"github.com/target/ward-console/internal/identity"
	"github.com/target/ward-console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider  = (*FakeProvider)(nil)
	_ ports.IdentityConnector = (*FakeConnector)(nil)
	_ ports.CredentialStore   = (*MemoryCredentialStore)(nil)
	_ ports.ProfileFetcher    = (*GatedProfiles)(nil)
)

// FakeProvider is a scriptable identity provider connection.
// Emit pushes events through a real identity.Feed so delivery semantics match production.
type FakeProvider struct {
	Feed *identity.Feed

	SignInFunc func(ctx context.Context, email, secret string) (domainauth.Identity, error)
	SignUpFunc func(ctx context.Context, email, secret string) error
	// SignOutErr is returned from SignOut after local state is cleared.
	SignOutErr error

	mu           sync.Mutex
	ident        *domainauth.Identity
	token        string
	signOutCalls int
}

// NewFakeProvider creates a provider with no identity and no event emitted yet.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Feed: identity.NewFeed()}
}

// SetIdentity installs id with token and emits a present event.
func (f *FakeProvider) SetIdentity(id domainauth.Identity, token string) {
	f.mu.Lock()
	f.ident = &id
	f.token = token
	f.mu.Unlock()
	f.Feed.Publish(domainauth.IdentityEvent{Identity: &id})
}

// Emit publishes ev without touching the provider's own state.
func (f *FakeProvider) Emit(ev domainauth.IdentityEvent) {
	f.Feed.Publish(ev)
}

// SignOutCalls reports how many times SignOut ran.
func (f *FakeProvider) SignOutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

func (f *FakeProvider) Subscribe(fn func(domainauth.IdentityEvent)) func() {
	return f.Feed.Subscribe(fn)
}

func (f *FakeProvider) SignIn(ctx context.Context, email, secret string) error {
	if f.SignInFunc == nil {
		return ports.ErrInvalidCredentials
	}
	id, err := f.SignInFunc(ctx, email, secret)
	if err != nil {
		return err
	}
	f.SetIdentity(id, "token-"+id.UID)
	return nil
}

func (f *FakeProvider) SignUp(ctx context.Context, email, secret string) error {
	if f.SignUpFunc == nil {
		return nil
	}
	return f.SignUpFunc(ctx, email, secret)
}

func (f *FakeProvider) SignOut(_ context.Context) error {
	f.mu.Lock()
	f.ident = nil
	f.token = ""
	f.signOutCalls++
	f.mu.Unlock()
	f.Feed.Publish(domainauth.IdentityEvent{})
	return f.SignOutErr
}

func (f *FakeProvider) CurrentToken(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ident == nil || f.token == "" {
		return "", ports.ErrNoIdentity
	}
	return f.token, nil
}

func (f *FakeProvider) Current() (domainauth.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ident == nil {
		return domainauth.Identity{}, false
	}
	return *f.ident, true
}

func (f *FakeProvider) Credential() (ports.StoredCredential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ident == nil {
		return ports.StoredCredential{}, false
	}
	return ports.StoredCredential{
		Subject:      f.ident.UID,
		Email:        f.ident.Email,
		RefreshToken: "refresh-" + f.ident.UID,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, true
}

// FakeConnector hands out FakeProviders and remembers them.
// A restored connection gets the identity named by the credential's Subject.
type FakeConnector struct {
	// SignInFunc is copied onto every connection.
	SignInFunc func(ctx context.Context, email, secret string) (domainauth.Identity, error)

	mu    sync.Mutex
	conns []*FakeProvider
}

func (c *FakeConnector) Connect(restore *ports.StoredCredential) ports.IdentityProvider {
	p := NewFakeProvider()
	p.SignInFunc = c.SignInFunc
	c.mu.Lock()
	c.conns = append(c.conns, p)
	c.mu.Unlock()
	if restore != nil && restore.Subject != "" {
		p.SetIdentity(domainauth.Identity{UID: restore.Subject, Email: restore.Email}, "token-"+restore.Subject)
		return p
	}
	p.Emit(domainauth.IdentityEvent{})
	return p
}

// Connections returns every connection opened so far.
func (c *FakeConnector) Connections() []*FakeProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeProvider(nil), c.conns...)
}

// MemoryCredentialStore is an in-memory credential store for unit tests.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	creds map[string]ports.StoredCredential
}

// NewMemoryCredentialStore creates an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: make(map[string]ports.StoredCredential)}
}

func (m *MemoryCredentialStore) Save(_ context.Context, cred ports.StoredCredential) error {
	if cred.VisitorID == "" {
		return errors.New("visitor ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.VisitorID] = cred
	return nil
}

func (m *MemoryCredentialStore) Get(_ context.Context, visitorID string) (ports.StoredCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[visitorID]
	if !ok {
		return ports.StoredCredential{}, ErrNotFound
	}
	return cred, nil
}

func (m *MemoryCredentialStore) Delete(_ context.Context, visitorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, visitorID)
	return nil
}

// Len reports how many credentials are stored.
func (m *MemoryCredentialStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creds)
}

// ErrNotFound is returned by fakes when an entity is not present.
var ErrNotFound = apperrors.NotFound("not found")

// GatedProfiles serves role profiles by UID. Fetches for a gated UID block until Release.
// It lets tests choose the order in which concurrent fetches complete.
type GatedProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domainauth.RoleProfile
	errs     map[string]error
	gates    map[string]chan struct{}
	started  chan string
	calls    map[string]int
}

// NewGatedProfiles creates an empty fetcher. Unknown UIDs fail with ErrNotFound.
func NewGatedProfiles() *GatedProfiles {
	return &GatedProfiles{
		profiles: make(map[string]*domainauth.RoleProfile),
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
		started:  make(chan string, 64),
		calls:    make(map[string]int),
	}
}

// Set registers the profile returned for uid.
func (g *GatedProfiles) Set(uid string, p domainauth.RoleProfile) *GatedProfiles {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles[uid] = &p
	return g
}

// Fail makes fetches for uid return err.
func (g *GatedProfiles) Fail(uid string, err error) *GatedProfiles {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[uid] = err
	return g
}

// Gate makes fetches for uid block until Release(uid).
func (g *GatedProfiles) Gate(uid string) *GatedProfiles {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gates[uid] = make(chan struct{})
	return g
}

// Release unblocks fetches for uid.
func (g *GatedProfiles) Release(uid string) {
	g.mu.Lock()
	gate, ok := g.gates[uid]
	delete(g.gates, uid)
	g.mu.Unlock()
	if ok {
		close(gate)
	}
}

// Started yields the UID of every fetch as it begins.
func (g *GatedProfiles) Started() <-chan string { return g.started }

// Calls reports how many fetches were issued for uid.
func (g *GatedProfiles) Calls(uid string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[uid]
}

func (g *GatedProfiles) FetchProfile(ctx context.Context, id domainauth.Identity) (*domainauth.RoleProfile, error) {
	g.mu.Lock()
	g.calls[id.UID]++
	gate := g.gates[id.UID]
	g.mu.Unlock()

	select {
	case g.started <- id.UID:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errs[id.UID]; err != nil {
		return nil, err
	}
	p, ok := g.profiles[id.UID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}
