package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
)

var (
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")

	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")

	ErrVerificationNotFound = errors.New("verification token not found")
	ErrVerificationConsumed = errors.New("verification token already used")
	ErrVerificationExpired  = errors.New("verification token expired")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Storage interface {
	UserRepository
	TokenRepository
	AuditRepository
	VerificationRepository
}

type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

type TokenRepository interface {
	// CreateToken durably persists a new refresh-token row.
	CreateToken(ctx context.Context, token models.RefreshToken) error

	GetToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// RotateToken atomically revokes the presented token and inserts its
	// successor. next carries the new token string and expiry; its UserID
	// is taken from the presented row. The owning user is returned so the
	// caller can mint an access token without a second round trip.
	// Fails with ErrTokenNotFound, ErrTokenRevoked or ErrTokenExpired;
	// concurrent rotations of the same token resolve to exactly one winner,
	// losers observe ErrTokenRevoked.
	RotateToken(ctx context.Context, presented string, next models.RefreshToken, now time.Time) (*models.User, error)

	// RevokeToken marks a token revoked. The bool reports whether a row was
	// actually flipped; revoking a missing or already-revoked token is a
	// no-op, not an error.
	RevokeToken(ctx context.Context, token string) (bool, error)

	// RevokeAllUserTokens revokes every active, unexpired token of a user
	// and returns how many rows were affected.
	RevokeAllUserTokens(ctx context.Context, userID int64, now time.Time) (int64, error)
}

type AuditRepository interface {
	RecordEvent(ctx context.Context, event models.AuditEvent) error
}

type VerificationRepository interface {
	CreateVerificationToken(ctx context.Context, token models.VerificationToken) error
	DeleteUnconsumedTokens(ctx context.Context, userID int64) error

	// ConsumeVerificationToken marks the token consumed and the owning user
	// verified in one transaction, returning the updated user.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*models.User, error)
}

// RateLimitStore is the counter backend for the login rate limiter.
type RateLimitStore interface {
	// Increment bumps the counter for key, starting a new window of the
	// given length when the key is fresh, and returns the updated count.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	Block(ctx context.Context, key string, duration time.Duration) error
	IsBlocked(ctx context.Context, key string) (bool, time.Duration, error)
}
