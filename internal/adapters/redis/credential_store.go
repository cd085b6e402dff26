// Package redis provides Redis-backed persistence for visitor credentials.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/ward-console/internal/cryptoutil"
	apperrors "github.com/target/ward-console/internal/errors"
	"github.com/target/ward-console/internal/ports"
)

// ErrNotFound is returned when no credential is stored for a visitor.
var ErrNotFound = &apperrors.AppError{Code: apperrors.ErrCodeNotFound, Message: "credential not found"}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// CredentialStore keeps the refresh credential of each visitor so a restarted
// or rebalanced console can restore the identity provider connection.
// Refresh tokens are sealed before they are written.
type CredentialStore struct {
	client     redis.UniversalClient
	sealer     cryptoutil.Sealer
	prefix     string
	defaultTTL time.Duration
}

// CredentialStoreOptions configures a CredentialStore.
type CredentialStoreOptions struct {
	Sealer     cryptoutil.Sealer // defaults to cryptoutil.Plain
	Prefix     string            // defaults to "ward:credential:"
	DefaultTTL time.Duration     // used when a credential has no expiry; defaults to 24h
}

// NewCredentialStore creates a Redis-backed credential store.
func NewCredentialStore(client redis.UniversalClient, opts CredentialStoreOptions) *CredentialStore {
	s := &CredentialStore{
		client:     client,
		sealer:     opts.Sealer,
		prefix:     opts.Prefix,
		defaultTTL: opts.DefaultTTL,
	}
	if s.sealer == nil {
		s.sealer = cryptoutil.Plain{}
	}
	if s.prefix == "" {
		s.prefix = "ward:credential:"
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = 24 * time.Hour
	}
	return s
}

type storedRecord struct {
	Subject     string    `json:"subject"`
	Email       string    `json:"email"`
	SealedToken string    `json:"sealed_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *CredentialStore) Save(ctx context.Context, cred ports.StoredCredential) error {
	if cred.VisitorID == "" {
		return errors.New("visitor ID cannot be empty")
	}
	if cred.RefreshToken == "" {
		return errors.New("refresh token cannot be empty")
	}

	ttl := s.defaultTTL
	if !cred.ExpiresAt.IsZero() {
		ttl = time.Until(cred.ExpiresAt)
		if ttl <= 0 {
			return errors.New("credential is expired")
		}
	}

	sealed, err := s.sealer.Seal([]byte(cred.RefreshToken))
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	data, err := json.Marshal(storedRecord{
		Subject:     cred.Subject,
		Email:       cred.Email,
		SealedToken: sealed,
		ExpiresAt:   cred.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	return s.client.Set(ctx, s.prefix+cred.VisitorID, data, ttl).Err()
}

func (s *CredentialStore) Get(ctx context.Context, visitorID string) (ports.StoredCredential, error) {
	if visitorID == "" {
		return ports.StoredCredential{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+visitorID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.StoredCredential{}, ErrNotFound
		}
		return ports.StoredCredential{}, fmt.Errorf("redis get: %w", err)
	}

	var rec storedRecord
	if unmarshalErr := json.Unmarshal([]byte(data), &rec); unmarshalErr != nil {
		return ports.StoredCredential{}, fmt.Errorf("unmarshal credential: %w", unmarshalErr)
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		if deleteErr := s.Delete(ctx, visitorID); deleteErr != nil {
			return ports.StoredCredential{}, fmt.Errorf("cleanup expired credential: %w", deleteErr)
		}
		return ports.StoredCredential{}, ErrNotFound
	}
	token, err := s.sealer.Open(rec.SealedToken)
	if err != nil {
		return ports.StoredCredential{}, fmt.Errorf("open refresh token: %w", err)
	}

	return ports.StoredCredential{
		VisitorID:    visitorID,
		Subject:      rec.Subject,
		Email:        rec.Email,
		RefreshToken: string(token),
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

func (s *CredentialStore) Delete(ctx context.Context, visitorID string) error {
	if visitorID == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+visitorID).Err()
}
