package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage/memory"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/util"
)

func newTestAuthService(t *testing.T, revokeOnReuse bool) (*AuthService, *memory.Storage) {
	t.Helper()

	store := memory.NewStorage()
	return newTestAuthServiceWith(t, store, revokeOnReuse), store
}

func newTestAuthServiceWith(t *testing.T, store storage.Storage, revokeOnReuse bool) *AuthService {
	t.Helper()

	log := zap.NewNop().Sugar()
	cfg := &util.TokenConfig{
		JwtSecretKey:  []byte("test-secret-key"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
		RevokeOnReuse: revokeOnReuse,
	}

	tokens := NewTokenService(cfg)
	audit := NewAuditService(store, log)
	webhook := NewSecurityWebhook(log, "")

	return NewAuthService(tokens, store, audit, webhook, cfg, log)
}

var errStoreDown = errors.New("connection refused")

// faultyStorage injects store failures on the paths the session lifecycle
// writes through.
type faultyStorage struct {
	*memory.Storage
	failCreateToken bool
	failRotateToken bool
}

func (s *faultyStorage) CreateToken(ctx context.Context, token models.RefreshToken) error {
	if s.failCreateToken {
		return errStoreDown
	}
	return s.Storage.CreateToken(ctx, token)
}

func (s *faultyStorage) RotateToken(ctx context.Context, presented string, next models.RefreshToken, now time.Time) (*models.User, error) {
	if s.failRotateToken {
		return nil, errStoreDown
	}
	return s.Storage.RotateToken(ctx, presented, next, now)
}

func registerAndLogin(t *testing.T, auth *AuthService) (*models.TokenPair, *models.User) {
	t.Helper()

	ctx := context.Background()
	user, err := auth.Register(ctx, models.RegisterRequest{
		Email:    "alice@vnpt.vn",
		Password: "correct-horse-battery",
		FullName: "Alice Nguyen",
	})
	require.NoError(t, err)

	pair, loggedIn, err := auth.Login(ctx, "alice@vnpt.vn", "correct-horse-battery", models.ClientMetadata{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, user.ID, loggedIn.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	return pair, user
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	auth, _ := newTestAuthService(t, false)

	_, err := auth.Register(context.Background(), models.RegisterRequest{
		Email:    "bob@vnpt.vn",
		Password: "short",
		FullName: "Bob Tran",
	})
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	auth, _ := newTestAuthService(t, false)

	_, err := auth.Register(context.Background(), models.RegisterRequest{
		Email:    "bob@vnpt.vn",
		Password: "long-enough-password",
		FullName: "Bob Tran",
		Role:     "superuser",
	})
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestLoginWrongPassword(t *testing.T) {
	auth, _ := newTestAuthService(t, false)
	registerAndLogin(t, auth)

	_, _, err := auth.Login(context.Background(), "alice@vnpt.vn", "wrong-password", models.ClientMetadata{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	auth, _ := newTestAuthService(t, false)

	_, _, err := auth.Login(context.Background(), "ghost@vnpt.vn", "whatever-password", models.ClientMetadata{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

// Issue -> rotate -> rotate the successor, with the replaced token rejected
// in between.
func TestRefreshRotationChain(t *testing.T) {
	auth, _ := newTestAuthService(t, false)
	ctx := context.Background()

	pair1, _ := registerAndLogin(t, auth)

	pair2, err := auth.Refresh(ctx, pair1.RefreshToken, models.ClientMetadata{})
	require.NoError(t, err)
	assert.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)

	// The replaced token is single-use: a second rotation must fail.
	_, err = auth.Refresh(ctx, pair1.RefreshToken, models.ClientMetadata{})
	require.ErrorIs(t, err, ErrSessionInvalid)

	pair3, err := auth.Refresh(ctx, pair2.RefreshToken, models.ClientMetadata{})
	require.NoError(t, err)
	assert.NotEqual(t, pair2.RefreshToken, pair3.RefreshToken)
}

func TestRefreshUnknownToken(t *testing.T) {
	auth, _ := newTestAuthService(t, false)

	_, err := auth.Refresh(context.Background(), "never-issued", models.ClientMetadata{})
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestRefreshExpiredToken(t *testing.T) {
	auth, store := newTestAuthService(t, false)
	ctx := context.Background()

	_, user := registerAndLogin(t, auth)

	now := time.Now().UTC()
	require.NoError(t, store.CreateToken(ctx, models.RefreshToken{
		UserID:    user.ID,
		Token:     "expired-token",
		ExpiresAt: now.Add(-time.Second),
		CreatedAt: now.Add(-time.Hour),
	}))

	_, err := auth.Refresh(ctx, "expired-token", models.ClientMetadata{})
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestLogoutIdempotent(t *testing.T) {
	auth, store := newTestAuthService(t, false)
	ctx := context.Background()

	pair, _ := registerAndLogin(t, auth)

	require.NoError(t, auth.Logout(ctx, pair.RefreshToken, models.ClientMetadata{}))
	require.NoError(t, auth.Logout(ctx, pair.RefreshToken, models.ClientMetadata{}))
	require.NoError(t, auth.Logout(ctx, "no-such-token", models.ClientMetadata{}))
	require.NoError(t, auth.Logout(ctx, "", models.ClientMetadata{}))

	token, err := store.GetToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, token.IsRevoked)

	_, err = auth.Refresh(ctx, pair.RefreshToken, models.ClientMetadata{})
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	auth, _ := newTestAuthService(t, false)
	ctx := context.Background()

	pair1, user := registerAndLogin(t, auth)

	pair2, _, err := auth.Login(ctx, "alice@vnpt.vn", "correct-horse-battery", models.ClientMetadata{})
	require.NoError(t, err)
	pair3, _, err := auth.Login(ctx, "alice@vnpt.vn", "correct-horse-battery", models.ClientMetadata{})
	require.NoError(t, err)

	revoked, err := auth.LogoutAll(ctx, user.ID, models.ClientMetadata{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, revoked)

	for _, pair := range []*models.TokenPair{pair1, pair2, pair3} {
		_, err := auth.Refresh(ctx, pair.RefreshToken, models.ClientMetadata{})
		require.ErrorIs(t, err, ErrSessionInvalid)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	auth, _ := newTestAuthService(t, false)
	ctx := context.Background()

	pair, _ := registerAndLogin(t, auth)

	const workers = 32
	var successes int64
	var failures int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := auth.Refresh(ctx, pair.RefreshToken, models.ClientMetadata{}); err == nil {
				atomic.AddInt64(&successes, 1)
			} else {
				atomic.AddInt64(&failures, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes, "exactly one rotation may win")
	assert.EqualValues(t, workers-1, failures)
}

func TestReuseDetectionRevokesAllSessions(t *testing.T) {
	auth, store := newTestAuthService(t, true)
	ctx := context.Background()

	pair1, user := registerAndLogin(t, auth)

	otherPair, _, err := auth.Login(ctx, "alice@vnpt.vn", "correct-horse-battery", models.ClientMetadata{})
	require.NoError(t, err)

	pair2, err := auth.Refresh(ctx, pair1.RefreshToken, models.ClientMetadata{})
	require.NoError(t, err)

	// Replaying the rotated token is the theft signal; with RevokeOnReuse
	// every other session of the user dies with it.
	_, err = auth.Refresh(ctx, pair1.RefreshToken, models.ClientMetadata{IPAddress: "203.0.113.9"})
	require.ErrorIs(t, err, ErrSessionInvalid)

	_, err = auth.Refresh(ctx, pair2.RefreshToken, models.ClientMetadata{})
	require.ErrorIs(t, err, ErrSessionInvalid)
	_, err = auth.Refresh(ctx, otherPair.RefreshToken, models.ClientMetadata{})
	require.ErrorIs(t, err, ErrSessionInvalid)

	events := store.Events()
	var reuseLogged bool
	for _, e := range events {
		if e.Action == models.AuditTokenReuse && e.UserID != nil && *e.UserID == user.ID {
			reuseLogged = true
		}
	}
	assert.True(t, reuseLogged, "reuse must land in the audit trail")
}

func TestReuseWithoutRevokeAllKeepsOtherSessions(t *testing.T) {
	auth, _ := newTestAuthService(t, false)
	ctx := context.Background()

	pair1, _ := registerAndLogin(t, auth)

	otherPair, _, err := auth.Login(ctx, "alice@vnpt.vn", "correct-horse-battery", models.ClientMetadata{})
	require.NoError(t, err)

	_, err = auth.Refresh(ctx, pair1.RefreshToken, models.ClientMetadata{})
	require.NoError(t, err)

	_, err = auth.Refresh(ctx, pair1.RefreshToken, models.ClientMetadata{})
	require.ErrorIs(t, err, ErrSessionInvalid)

	// Default policy rejects only the replayed request.
	_, err = auth.Refresh(ctx, otherPair.RefreshToken, models.ClientMetadata{})
	require.NoError(t, err)
}

func TestLoginStoreFailureEmitsNoTokens(t *testing.T) {
	store := &faultyStorage{Storage: memory.NewStorage()}
	auth := newTestAuthServiceWith(t, store, false)
	ctx := context.Background()

	_, err := auth.Register(ctx, models.RegisterRequest{
		Email:    "alice@vnpt.vn",
		Password: "correct-horse-battery",
		FullName: "Alice Nguyen",
	})
	require.NoError(t, err)

	// If the refresh row cannot be written no token of any kind may leave
	// the service.
	store.failCreateToken = true
	pair, user, err := auth.Login(ctx, "alice@vnpt.vn", "correct-horse-battery", models.ClientMetadata{})
	require.ErrorIs(t, err, errStoreDown)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, pair)
	assert.Nil(t, user)

	store.failCreateToken = false
	pair, _, err = auth.Login(ctx, "alice@vnpt.vn", "correct-horse-battery", models.ClientMetadata{})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
}

func TestRefreshStoreFailureIsNotAuthFailure(t *testing.T) {
	store := &faultyStorage{Storage: memory.NewStorage()}
	auth := newTestAuthServiceWith(t, store, false)
	ctx := context.Background()

	pair, _ := registerAndLogin(t, auth)

	store.failRotateToken = true
	_, err := auth.Refresh(ctx, pair.RefreshToken, models.ClientMetadata{})
	require.ErrorIs(t, err, errStoreDown)
	require.NotErrorIs(t, err, ErrSessionInvalid)

	// The failed attempt left no partial state: the presented token was
	// never revoked and rotates once the store recovers.
	store.failRotateToken = false
	rotated, err := auth.Refresh(ctx, pair.RefreshToken, models.ClientMetadata{})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
}

func TestRefreshInactiveUser(t *testing.T) {
	auth, store := newTestAuthService(t, false)
	ctx := context.Background()

	pair, user := registerAndLogin(t, auth)

	// Deactivate behind the session's back; rotation must not resurrect
	// the account.
	require.NoError(t, store.SetUserActive(ctx, user.ID, false))

	_, err := auth.Refresh(ctx, pair.RefreshToken, models.ClientMetadata{})
	require.ErrorIs(t, err, ErrSessionInvalid)

	_, _, err = auth.Login(ctx, "alice@vnpt.vn", "correct-horse-battery", models.ClientMetadata{})
	require.ErrorIs(t, err, ErrInactiveUser)
}
