package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

func seedUserWithToken(t *testing.T, s *Storage, token string, expiresAt time.Time) *models.User {
	t.Helper()

	ctx := context.Background()
	user, err := s.CreateUser(ctx, models.User{
		Email:    "user@vnpt.vn",
		FullName: "Test User",
		Role:     models.RoleEmployee,
		IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, s.CreateToken(ctx, models.RefreshToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}))

	return user
}

func TestRotateTokenSuccess(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	user := seedUserWithToken(t, s, "old-token", now.Add(time.Hour))

	next := models.RefreshToken{Token: "new-token", ExpiresAt: now.Add(2 * time.Hour), CreatedAt: now}
	owner, err := s.RotateToken(ctx, "old-token", next, now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, owner.ID)

	old, err := s.GetToken(ctx, "old-token")
	require.NoError(t, err)
	assert.True(t, old.IsRevoked)
	assert.False(t, old.Active(now))

	successor, err := s.GetToken(ctx, "new-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, successor.UserID)
	assert.True(t, successor.Active(now))
}

func TestRotateTokenErrorKinds(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	seedUserWithToken(t, s, "active", now.Add(time.Hour))

	next := models.RefreshToken{Token: "successor", ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	_, err := s.RotateToken(ctx, "absent", next, now)
	require.ErrorIs(t, err, storage.ErrTokenNotFound)

	_, err = s.RotateToken(ctx, "active", next, now)
	require.NoError(t, err)

	_, err = s.RotateToken(ctx, "active", models.RefreshToken{Token: "successor-2", ExpiresAt: now.Add(time.Hour)}, now)
	require.ErrorIs(t, err, storage.ErrTokenRevoked)
}

func TestRotateTokenExpiryBoundary(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	seedUserWithToken(t, s, "boundary", now)

	// now == expires_at counts as expired.
	_, err := s.RotateToken(ctx, "boundary", models.RefreshToken{Token: "next"}, now)
	require.ErrorIs(t, err, storage.ErrTokenExpired)
}

func TestRotateTokenExpiredUnrevoked(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	seedUserWithToken(t, s, "stale", now.Add(-time.Second))

	_, err := s.RotateToken(ctx, "stale", models.RefreshToken{Token: "next"}, now)
	require.ErrorIs(t, err, storage.ErrTokenExpired)
}

func TestRotateTokenRevokedAndExpired(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	seedUserWithToken(t, s, "dead", now.Add(-time.Second))
	flipped, err := s.RevokeToken(ctx, "dead")
	require.NoError(t, err)
	require.True(t, flipped)

	// Revocation wins over expiry so a replayed token always triggers
	// reuse handling.
	_, err = s.RotateToken(ctx, "dead", models.RefreshToken{Token: "next"}, now)
	require.ErrorIs(t, err, storage.ErrTokenRevoked)
}

func TestRotateTokenConcurrentSingleWinner(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	seedUserWithToken(t, s, "contended", now.Add(time.Hour))

	const workers = 50
	var successes, revoked int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := models.RefreshToken{
				Token:     fmt.Sprintf("successor-%d", i),
				ExpiresAt: now.Add(time.Hour),
				CreatedAt: now,
			}
			_, err := s.RotateToken(ctx, "contended", next, now)
			switch {
			case err == nil:
				atomic.AddInt64(&successes, 1)
			case errors.Is(err, storage.ErrTokenRevoked):
				atomic.AddInt64(&revoked, 1)
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
	assert.EqualValues(t, workers-1, revoked)
}

func TestRevokeTokenIdempotent(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	seedUserWithToken(t, s, "tok", now.Add(time.Hour))

	flipped, err := s.RevokeToken(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = s.RevokeToken(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, flipped, "second revoke is a no-op")

	flipped, err = s.RevokeToken(ctx, "never-existed")
	require.NoError(t, err)
	assert.False(t, flipped)
}

func TestRevokeAllUserTokensSkipsExpired(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	user := seedUserWithToken(t, s, "t1", now.Add(time.Hour))
	require.NoError(t, s.CreateToken(ctx, models.RefreshToken{UserID: user.ID, Token: "t2", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateToken(ctx, models.RefreshToken{UserID: user.ID, Token: "t3", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateToken(ctx, models.RefreshToken{UserID: user.ID, Token: "gone", ExpiresAt: now.Add(-time.Minute)}))

	revoked, err := s.RevokeAllUserTokens(ctx, user.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, revoked)

	for _, tok := range []string{"t1", "t2", "t3"} {
		stored, err := s.GetToken(ctx, tok)
		require.NoError(t, err)
		assert.True(t, stored.IsRevoked)
	}

	// Already-expired rows are left alone; expiry is its own terminal state.
	stale, err := s.GetToken(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, stale.IsRevoked)
}

func TestConsumeVerificationToken(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	now := time.Now().UTC()

	user := seedUserWithToken(t, s, "tok", now.Add(time.Hour))
	require.NoError(t, s.CreateVerificationToken(ctx, models.VerificationToken{
		UserID:    user.ID,
		Token:     "verify-me",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}))

	verified, err := s.ConsumeVerificationToken(ctx, "verify-me", now)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	_, err = s.ConsumeVerificationToken(ctx, "verify-me", now)
	require.ErrorIs(t, err, storage.ErrVerificationConsumed)

	_, err = s.ConsumeVerificationToken(ctx, "missing", now)
	require.ErrorIs(t, err, storage.ErrVerificationNotFound)
}
