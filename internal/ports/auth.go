package ports

// Package ports defines interfaces (hexagonal ports) for identity and session behavior.
// Implementations live in internal/adapters; orchestration in internal/service and internal/session.

import (
	"context"
	"time"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	apperrors "github.com/target/ward-console/internal/errors"
)

// Identity provider failures. Adapters wrap these with %w so callers can use errors.Is.
var (
	ErrInvalidCredentials = &apperrors.AppError{
		Code:    apperrors.ErrCodeInvalidCredentials,
		Message: "invalid email or password",
	}
	ErrProviderUnavailable = &apperrors.AppError{
		Code:    apperrors.ErrCodeUnavailable,
		Message: "identity provider unavailable",
	}
	ErrNoIdentity = &apperrors.AppError{
		Code:    apperrors.ErrCodeUnauthorized,
		Message: "no identity present",
	}
	ErrSignUpUnsupported = &apperrors.AppError{
		Code:    apperrors.ErrCodeValidation,
		Message: "sign-up is not enabled for this identity provider",
	}
	ErrIdentityExists = &apperrors.AppError{
		Code:    apperrors.ErrCodeConflict,
		Message: "an account with this email already exists",
	}
)

// IdentityFeed delivers identity-change notifications.
// Subscribers are called synchronously, in emission order, one identity value per event.
type IdentityFeed interface {
	// Subscribe registers fn and returns an idempotent unsubscribe handle.
	Subscribe(fn func(domainauth.IdentityEvent)) (unsubscribe func())
}

// TokenSource yields the bearer token for the currently known identity.
type TokenSource interface {
	// CurrentToken returns ErrNoIdentity when no identity is present.
	CurrentToken(ctx context.Context) (string, error)
}

// IdentityProvider is the sole owner of one visitor's channel to the external identity service.
type IdentityProvider interface {
	IdentityFeed
	TokenSource

	// SignIn exchanges credentials for a provider session.
	// Fails with ErrInvalidCredentials or ErrProviderUnavailable.
	SignIn(ctx context.Context, email, secret string) error

	// SignUp creates a new identity without signing it in.
	SignUp(ctx context.Context, email, secret string) error

	// SignOut terminates the local session and notifies subscribers before
	// contacting the provider. Provider-side failures are logged and swallowed,
	// so callers only see errors that prevented the local sign-out.
	SignOut(ctx context.Context) error

	// Current returns the identity currently known to the connection.
	Current() (domainauth.Identity, bool)

	// Credential returns what must be persisted to restore this connection later.
	Credential() (StoredCredential, bool)
}

// IdentityConnector opens per-visitor identity provider connections.
type IdentityConnector interface {
	// Connect opens a connection. When restore is non-nil the connection resolves
	// the stored identity asynchronously and reports it through its feed.
	Connect(restore *StoredCredential) IdentityProvider
}

// StoredCredential is the persisted form of a visitor's identity provider session.
type StoredCredential struct {
	VisitorID    string    `json:"visitor_id"`
	Subject      string    `json:"subject"`
	Email        string    `json:"email"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CredentialStore persists and retrieves visitor credentials.
type CredentialStore interface {
	Save(ctx context.Context, cred StoredCredential) error
	Get(ctx context.Context, visitorID string) (StoredCredential, error)
	Delete(ctx context.Context, visitorID string) error
}

// ProfileFetcher retrieves the confirmed role profile for an identity.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, id domainauth.Identity) (*domainauth.RoleProfile, error)
}

// Navigator queues a navigation for the visitor's browser.
type Navigator interface {
	Navigate(path string)
}

// Notifier shows a transient notice to the visitor.
type Notifier interface {
	Notify(message string)
}
