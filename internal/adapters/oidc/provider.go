package oidc

// Package oidc adapts an OpenID Connect identity service to ports.IdentityProvider.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	apperrors "github.com/target/ward-console/internal/errors"
	"github.com/target/ward-console/internal/identity"
	"github.com/target/ward-console/internal/ports"
)

// Provider holds the discovered OIDC configuration shared by all visitor connections.
type Provider struct {
	config        *oauth2.Config
	httpClient    *http.Client
	signUpURL     string
	revocationURL string
	logger        *slog.Logger

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	SignUpURL    string       // Optional; sign-up is rejected when empty
	HTTPClient   *http.Client // Optional, defaults to a 30s timeout client
	Logger       *slog.Logger
}

// DiscoveryDocument represents the subset of the OIDC discovery document the adapter reads.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
}

// NewProvider performs discovery and builds the shared OIDC provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if claimsErr := op.Claims(&extra); claimsErr != nil {
		return nil, fmt.Errorf("oidc discovery claims: %w", claimsErr)
	}

	scopes := strings.Fields(config.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile", gooidc.ScopeOfflineAccess}
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
		httpClient:    httpClient,
		signUpURL:     config.SignUpURL,
		revocationURL: extra.RevocationEndpoint,
		logger:        logger,
		oidcProvider:  op,
		verifier:      op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
	}, nil
}

// Connect opens a visitor connection. A stored refresh token is redeemed asynchronously.
func (p *Provider) Connect(restore *ports.StoredCredential) ports.IdentityProvider {
	c := &Connection{p: p, feed: identity.NewFeed()}
	if restore == nil || restore.RefreshToken == "" {
		c.feed.Publish(domainauth.IdentityEvent{})
		return c
	}
	c.restoring = true
	go c.restore(restore.RefreshToken)
	return c
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Connection is one visitor's session with the OIDC provider.
type Connection struct {
	p    *Provider
	feed *identity.Feed

	opMu sync.Mutex // serializes state changes with their notification

	mu        sync.Mutex
	ident     *domainauth.Identity
	source    oauth2.TokenSource
	refresh   string
	epoch     uint64
	restoring bool
}

var _ ports.IdentityProvider = (*Connection)(nil)

// Subscribe registers a listener for identity changes.
func (c *Connection) Subscribe(fn func(domainauth.IdentityEvent)) func() {
	return c.feed.Subscribe(fn)
}

// SignIn uses the resource owner password grant.
func (c *Connection) SignIn(ctx context.Context, email, secret string) error {
	tok, err := c.p.config.PasswordCredentialsToken(c.p.clientContext(ctx), email, secret)
	if err != nil {
		return classifyTokenError(err)
	}
	id, err := c.p.identityFromToken(ctx, tok)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrProviderUnavailable, err)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.setSignedIn(id, tok)
	c.feed.Publish(domainauth.IdentityEvent{Identity: &id})
	return nil
}

// SignUp registers a new account at the configured sign-up endpoint. It does not sign in.
func (c *Connection) SignUp(ctx context.Context, email, secret string) error {
	if c.p.signUpURL == "" {
		return ports.ErrSignUpUnsupported
	}
	body, err := json.Marshal(map[string]string{"email": email, "password": secret})
	if err != nil {
		return fmt.Errorf("encode sign-up: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.p.signUpURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sign-up request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return ports.ErrIdentityExists
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = "sign-up rejected"
		}
		return apperrors.Validation(text)
	default:
		return fmt.Errorf("%w: sign-up returned %s", ports.ErrProviderUnavailable, resp.Status)
	}
}

// SignOut clears local state and notifies subscribers, then revokes the refresh token.
// A revocation failure is logged and swallowed.
func (c *Connection) SignOut(ctx context.Context) error {
	c.opMu.Lock()
	c.mu.Lock()
	refresh := c.refresh
	c.ident, c.source, c.refresh = nil, nil, ""
	c.epoch++
	c.restoring = false
	c.mu.Unlock()
	c.feed.Publish(domainauth.IdentityEvent{})
	c.opMu.Unlock()

	if refresh == "" || c.p.revocationURL == "" {
		return nil
	}
	if err := c.p.revoke(ctx, refresh); err != nil {
		c.p.logger.WarnContext(ctx, "identity sign-out provider error swallowed", "error", err)
	}
	return nil
}

// CurrentToken returns a valid access token, refreshing it when needed.
func (c *Connection) CurrentToken(_ context.Context) (string, error) {
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()
	if src == nil {
		return "", ports.ErrNoIdentity
	}
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: refresh token: %w", ports.ErrProviderUnavailable, err)
	}
	c.mu.Lock()
	if tok.RefreshToken != "" {
		c.refresh = tok.RefreshToken
	}
	if c.ident != nil && !tok.Expiry.IsZero() {
		c.ident.ExpiresAt = tok.Expiry
	}
	c.mu.Unlock()
	return tok.AccessToken, nil
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
// Refresh token lifetime is not advertised, so ExpiresAt is left to the store's default.
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
	}, true
}

func (c *Connection) setSignedIn(id domainauth.Identity, tok *oauth2.Token) {
	src := c.p.config.TokenSource(c.p.clientContext(context.Background()), tok)
	c.mu.Lock()
	c.ident = &id
	c.source = src
	c.refresh = tok.RefreshToken
	c.epoch++
	c.restoring = false
	c.mu.Unlock()
}

// restore redeems a stored refresh token. A sign-in or sign-out that happens first wins.
func (c *Connection) restore(refresh string) {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Forcing an expired token makes the source go straight to the refresh grant.
	seed := &oauth2.Token{RefreshToken: refresh, Expiry: time.Now().Add(-time.Minute)}
	tok, err := c.p.config.TokenSource(c.p.clientContext(ctx), seed).Token()
	var id domainauth.Identity
	if err == nil {
		if tok.RefreshToken == "" {
			tok.RefreshToken = refresh
		}
		id, err = c.p.identityFromToken(ctx, tok)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	stale := c.epoch != epoch || !c.restoring
	if !stale && err != nil {
		c.restoring = false
	}
	c.mu.Unlock()
	if stale {
		return
	}
	if err != nil {
		c.p.logger.Info("oidc restore failed", "error", err)
		c.feed.Publish(domainauth.IdentityEvent{})
		return
	}
	c.setSignedIn(id, tok)
	c.feed.Publish(domainauth.IdentityEvent{Identity: &id})
}

// classifyTokenError maps token endpoint failures onto the port's sentinel errors.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch re.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return ports.ErrInvalidCredentials
		}
	}
	return fmt.Errorf("%w: %w", ports.ErrProviderUnavailable, err)
}

func (p *Provider) revoke(ctx context.Context, refresh string) error {
	form := url.Values{"token": {refresh}, "token_type_hint": {"refresh_token"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(p.config.ClientID), url.QueryEscape(p.config.ClientSecret))
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: revoke: %w", ports.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: revoke returned %s", ports.ErrProviderUnavailable, resp.Status)
	}
	return nil
}

// idFields is the identity data gathered from the ID token and UserInfo.
type idFields struct {
	subject string
	email   string
	name    string
}

type idTokenClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
}

// UserInfo represents the user information from the OIDC userinfo endpoint.
type UserInfo struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
}

func (p *Provider) identityFromToken(ctx context.Context, tok *oauth2.Token) (domainauth.Identity, error) {
	ctx = p.clientContext(ctx)
	fields, err := p.extractFromIDToken(ctx, tok)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}
	if fields.email == "" || fields.subject == "" {
		if fillErr := p.fillFromUserInfo(ctx, tok, &fields); fillErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}
	if fields.subject == "" {
		return domainauth.Identity{}, errors.New("identity has no subject")
	}

	expiresAt := time.Now().Add(time.Hour)
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry
	}
	return domainauth.Identity{
		UID:       fields.subject,
		Email:     fields.email,
		Name:      fields.name,
		ExpiresAt: expiresAt,
	}, nil
}

// extractFromIDToken verifies the id_token when the provider returned one.
func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token) (idFields, error) {
	var f idFields
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return f, nil
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return f, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return f, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	f.subject = claims.Sub
	f.email = claims.Email
	f.name = displayName(claims.Name, claims.GivenName, claims.FamilyName, claims.PreferredUsername)
	return f, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, f *idFields) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var info UserInfo
	if claimsErr := ui.Claims(&info); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	fillFromUserInfoClaims(f, info)
	return nil
}

// fillFromUserInfoClaims fills missing fields without overriding ID token values.
func fillFromUserInfoClaims(f *idFields, ui UserInfo) {
	if f.subject == "" {
		f.subject = ui.Subject
	}
	if f.email == "" {
		f.email = ui.Email
	}
	if f.name == "" {
		f.name = displayName(ui.Name, ui.GivenName, ui.FamilyName, ui.PreferredUsername)
	}
}

func displayName(full, given, family, username string) string {
	if full != "" {
		return full
	}
	if joined := strings.TrimSpace(given + " " + family); joined != "" {
		return joined
	}
	return username
}
