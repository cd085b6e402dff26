package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/ward-console/internal/cryptoutil"
	"github.com/target/ward-console/internal/ports"
	"github.com/target/ward-console/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func newSealedStore(t *testing.T, client redis.UniversalClient) *CredentialStore {
	t.Helper()
	sealer, err := cryptoutil.NewAESGCMFromSecret("test-secret")
	require.NoError(t, err)
	return NewCredentialStore(client, CredentialStoreOptions{Sealer: sealer})
}

func TestCredentialStore_SaveAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := newSealedStore(t, client)
	ctx := context.Background()

	cred := ports.StoredCredential{
		VisitorID:    "visitor-1",
		Subject:      "u-foreman",
		Email:        "foreman@ward.test",
		RefreshToken: "refresh-abc",
		ExpiresAt:    time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, store.Save(ctx, cred))

	raw, err := client.Get(ctx, "ward:credential:visitor-1").Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "refresh-abc")

	got, err := store.Get(ctx, "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, cred.Subject, got.Subject)
	assert.Equal(t, cred.RefreshToken, got.RefreshToken)
	assert.WithinDuration(t, cred.ExpiresAt, got.ExpiresAt, time.Second)

	ttl, err := client.TTL(ctx, "ward:credential:visitor-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 29*time.Minute)
}

func TestCredentialStore_GetNonExistent(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStore(client, CredentialStoreOptions{})
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStore(client, CredentialStoreOptions{Prefix: "t:"})
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, ports.StoredCredential{VisitorID: "v", RefreshToken: "r"}))
	require.NoError(t, store.Delete(ctx, "v"))
	require.NoError(t, store.Delete(ctx, ""))

	_, err := store.Get(ctx, "v")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialStore_SaveValidation(t *testing.T) {
	// Validation happens before any Redis call, so no server is needed.
	store := NewCredentialStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), CredentialStoreOptions{})
	ctx := context.Background()

	require.Error(t, store.Save(ctx, ports.StoredCredential{RefreshToken: "r"}))
	require.Error(t, store.Save(ctx, ports.StoredCredential{VisitorID: "v"}))
	err := store.Save(ctx, ports.StoredCredential{VisitorID: "v", RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Minute)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}
