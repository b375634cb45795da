package auth

import (
	"context"
	"testing"
	"time"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = store.CreateWithAccount(&models.User{
		Username: "alice",
		Email:    "alice@example.com",
		Password: string(hashed),
	})
	require.NoError(t, err)
	return store
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a validatable token", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(store, nil, "test-secret", time.Hour)

		user, token, err := svc.Login(ctx, "alice@example.com", testPassword)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		require.NotEmpty(t, token)

		claims, err := svc.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "alice@example.com", claims.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(store, nil, "test-secret", time.Hour)

		_, _, err := svc.Login(ctx, "alice@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(store, nil, "test-secret", time.Hour)

		_, _, err := svc.Login(ctx, "nobody@example.com", testPassword)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the token until expiry", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(store, nil, "test-secret", time.Hour)

		_, token, err := svc.Login(ctx, "alice@example.com", testPassword)
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, token))

		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenRevoked)

		revoked, err := store.IsTokenBlacklisted(token)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(store, nil, "test-secret", time.Hour)

		_, token, err := svc.Login(ctx, "alice@example.com", testPassword)
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, token))
		require.NoError(t, svc.Logout(ctx, token))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(store, nil, "test-secret", time.Hour)

		err := svc.Logout(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("expired token", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(store, nil, "test-secret", -time.Minute)

		_, token, err := svc.Login(ctx, "alice@example.com", testPassword)
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		store := newTestStore(t)
		other := NewService(store, nil, "other-secret", time.Hour)
		svc := NewService(store, nil, "test-secret", time.Hour)

		_, token, err := other.Login(ctx, "alice@example.com", testPassword)
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered token", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewService(store, nil, "test-secret", time.Hour)

		_, token, err := svc.Login(ctx, "alice@example.com", testPassword)
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token+"x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

// recordingCache captures revocation traffic so the cache fast path can be
// asserted without Redis.
type recordingCache struct {
	revoked map[string]time.Time
	hits    int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{revoked: make(map[string]time.Time)}
}

func (c *recordingCache) MarkTokenRevoked(_ context.Context, token string, until time.Time) error {
	c.revoked[token] = until
	return nil
}

func (c *recordingCache) IsTokenRevoked(_ context.Context, token string) (bool, error) {
	c.hits++
	_, ok := c.revoked[token]
	return ok, nil
}

func TestRevocationCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cache := newRecordingCache()
	svc := NewService(store, cache, "test-secret", time.Hour)

	_, token, err := svc.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	assert.Contains(t, cache.revoked, token)

	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Positive(t, cache.hits)
}
