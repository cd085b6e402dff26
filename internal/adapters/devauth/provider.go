// Package devauth provides a simple, config-driven identity provider for local development.
package devauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	"github.com/target/ward-console/internal/identity"
	"github.com/target/ward-console/internal/ports"
)

// User is a directory entry.
type User struct {
	UID      string
	Email    string
	Password string
	Name     string
}

// Config controls the dev directory behavior.
type Config struct {
	Users        []User
	TokenTTL     time.Duration // default 1h when zero
	RestoreDelay time.Duration // simulated provider initialization latency on restore
	Logger       *slog.Logger
}

// Directory is an in-memory user directory shared by all visitor connections.
// It mimics a hosted identity service: sign-in issues short-lived tokens and a
// refresh token that a later connection can restore from.
type Directory struct {
	mu           sync.Mutex
	users        map[string]User   // by lower-cased email
	refresh      map[string]string // refresh token -> email
	tokenTTL     time.Duration
	restoreDelay time.Duration
	logger       *slog.Logger
}

// NewDirectory constructs a dev directory from Config.
func NewDirectory(cfg Config) (*Directory, error) {
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{
		users:        make(map[string]User, len(cfg.Users)),
		refresh:      make(map[string]string),
		tokenTTL:     ttl,
		restoreDelay: cfg.RestoreDelay,
		logger:       logger,
	}
	for _, u := range cfg.Users {
		if err := d.add(u); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ParseUsers parses "email:password[:uid[:name]]" entries.
func ParseUsers(entries []string) ([]User, error) {
	users := make([]User, 0, len(entries))
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 4)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("dev auth: invalid user entry %q (want email:password[:uid[:name]])", raw)
		}
		u := User{Email: parts[0], Password: parts[1]}
		if len(parts) > 2 {
			u.UID = parts[2]
		}
		if len(parts) > 3 {
			u.Name = parts[3]
		}
		users = append(users, u)
	}
	return users, nil
}

func (d *Directory) add(u User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return errors.New("dev auth: Email is required")
	}
	if u.Password == "" {
		return errors.New("dev auth: Password is required")
	}
	if u.UID == "" {
		u.UID = "dev-" + email
	}
	u.Email = email
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[email]; ok {
		return ports.ErrIdentityExists
	}
	d.users[email] = u
	return nil
}

func (d *Directory) authenticate(email, password string) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, false
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return User{}, false
	}
	return u, true
}

func (d *Directory) issueRefresh(email string) (string, error) {
	tok, err := randomString(32)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	d.refresh[tok] = email
	d.mu.Unlock()
	return tok, nil
}

func (d *Directory) redeem(refresh string) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email, ok := d.refresh[refresh]
	if !ok {
		return User{}, false
	}
	u, ok := d.users[email]
	return u, ok
}

func (d *Directory) revoke(refresh string) {
	d.mu.Lock()
	delete(d.refresh, refresh)
	d.mu.Unlock()
}

// Connect opens a visitor connection, restoring a stored credential asynchronously.
func (d *Directory) Connect(restore *ports.StoredCredential) ports.IdentityProvider {
	c := &Connection{dir: d, feed: identity.NewFeed()}
	if restore == nil || restore.RefreshToken == "" {
		c.feed.Publish(domainauth.IdentityEvent{})
		return c
	}
	c.restoring = true
	refresh := restore.RefreshToken
	go c.restore(refresh)
	return c
}

// Connection implements ports.IdentityProvider for one visitor.
type Connection struct {
	dir  *Directory
	feed *identity.Feed

	opMu sync.Mutex // serializes state changes with their notification

	mu        sync.Mutex
	ident     *domainauth.Identity
	token     string
	refresh   string
	epoch     uint64
	restoring bool
}

var _ ports.IdentityProvider = (*Connection)(nil)

// Subscribe registers a listener for identity changes.
func (c *Connection) Subscribe(fn func(domainauth.IdentityEvent)) func() {
	return c.feed.Subscribe(fn)
}

// SignIn checks credentials against the directory.
func (c *Connection) SignIn(_ context.Context, email, secret string) error {
	u, ok := c.dir.authenticate(email, secret)
	if !ok {
		return ports.ErrInvalidCredentials
	}
	refresh, err := c.dir.issueRefresh(u.Email)
	if err != nil {
		return fmt.Errorf("issue refresh token: %w", errors.Join(ports.ErrProviderUnavailable, err))
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	id, err := c.setSignedIn(u, refresh)
	if err != nil {
		return err
	}
	c.feed.Publish(domainauth.IdentityEvent{Identity: &id})
	return nil
}

// SignUp adds a user to the directory without signing in.
func (c *Connection) SignUp(_ context.Context, email, secret string) error {
	return c.dir.add(User{Email: email, Password: secret})
}

// SignOut clears the connection and revokes its refresh token. It never fails.
func (c *Connection) SignOut(_ context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	refresh := c.refresh
	c.ident, c.token, c.refresh = nil, "", ""
	c.epoch++
	c.restoring = false
	c.mu.Unlock()

	if refresh != "" {
		c.dir.revoke(refresh)
	}
	c.feed.Publish(domainauth.IdentityEvent{})
	return nil
}

// CurrentToken returns the current access token, rotating it when expired.
func (c *Connection) CurrentToken(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ident == nil {
		return "", ports.ErrNoIdentity
	}
	if time.Now().After(c.ident.ExpiresAt) {
		tok, err := randomString(24)
		if err != nil {
			return "", fmt.Errorf("rotate token: %w", errors.Join(ports.ErrProviderUnavailable, err))
		}
		c.token = "dev." + tok
		c.ident.ExpiresAt = time.Now().Add(c.dir.tokenTTL)
	}
	return c.token, nil
}

// Current returns the identity currently held by the connection.
func (c *Connection) Current() (domainauth.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ident == nil {
		return domainauth.Identity{}, false
	}
	return *c.ident, true
}

// Credential returns the restorable form of the connection.
func (c *Connection) Credential() (ports.StoredCredential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ident == nil || c.refresh == "" {
		return ports.StoredCredential{}, false
	}
	return ports.StoredCredential{
		Subject:      c.ident.UID,
		Email:        c.ident.Email,
		RefreshToken: c.refresh,
		ExpiresAt:    time.Now().Add(c.dir.tokenTTL * 24),
	}, true
}

func (c *Connection) setSignedIn(u User, refresh string) (domainauth.Identity, error) {
	tok, err := randomString(24)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("issue token: %w", errors.Join(ports.ErrProviderUnavailable, err))
	}
	id := domainauth.Identity{
		UID:       u.UID,
		Email:     u.Email,
		Name:      u.Name,
		ExpiresAt: time.Now().Add(c.dir.tokenTTL),
	}
	c.mu.Lock()
	c.ident = &id
	c.token = "dev." + tok
	c.refresh = refresh
	c.epoch++
	c.restoring = false
	c.mu.Unlock()
	return id, nil
}

// restore resolves a stored refresh token after the configured delay.
// A sign-in or sign-out that happens meanwhile wins over the restore.
func (c *Connection) restore(refresh string) {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	if c.dir.restoreDelay > 0 {
		time.Sleep(c.dir.restoreDelay)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	stale := c.epoch != epoch || !c.restoring
	c.mu.Unlock()
	if stale {
		return
	}

	u, ok := c.dir.redeem(refresh)
	if !ok {
		c.mu.Lock()
		c.restoring = false
		c.mu.Unlock()
		c.dir.logger.Debug("dev auth restore: unknown refresh token")
		c.feed.Publish(domainauth.IdentityEvent{})
		return
	}
	id, err := c.setSignedIn(u, refresh)
	if err != nil {
		c.dir.logger.Warn("dev auth restore failed", "error", err)
		c.feed.Publish(domainauth.IdentityEvent{})
		return
	}
	c.feed.Publish(domainauth.IdentityEvent{Identity: &id})
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least n base64 URL chars
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	return s[:n], nil
}
