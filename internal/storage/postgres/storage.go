package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

type Storage struct {
	db *sql.DB
	*UserRepository
	*TokenRepository
	*AuditRepository
	*VerificationRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                     db,
		UserRepository:         NewUserRepository(db),
		TokenRepository:        NewTokenRepository(db),
		AuditRepository:        NewAuditRepository(db),
		VerificationRepository: NewVerificationRepository(db),
	}
}

// RotateToken revokes the presented token and inserts its successor in one
// transaction. The presented row is locked FOR UPDATE so that of two
// concurrent rotations exactly one commits; the loser blocks on the lock and
// then sees is_revoked already set.
func (s *Storage) RotateToken(ctx context.Context, presented string, next models.RefreshToken, now time.Time) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	tokenRepoTx := NewTokenRepository(tx)
	userRepoTx := NewUserRepository(tx)

	old, err := tokenRepoTx.getTokenForUpdate(ctx, presented)
	if err != nil {
		return nil, err
	}
	if old.IsRevoked {
		return nil, storage.ErrTokenRevoked
	}
	if !now.Before(old.ExpiresAt) {
		return nil, storage.ErrTokenExpired
	}

	if err := tokenRepoTx.markRevoked(ctx, presented); err != nil {
		return nil, fmt.Errorf("failed to revoke token in tx: %w", err)
	}

	next.UserID = old.UserID
	if err := tokenRepoTx.CreateToken(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to create successor token in tx: %w", err)
	}

	user, err := userRepoTx.GetUserByID(ctx, old.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return user, nil
}

// ConsumeVerificationToken marks the token consumed and its owner verified
// in one transaction.
func (s *Storage) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	verificationRepoTx := NewVerificationRepository(tx)
	userRepoTx := NewUserRepository(tx)

	record, err := verificationRepoTx.getVerificationTokenForUpdate(ctx, token)
	if err != nil {
		return nil, err
	}
	if record.Consumed {
		return nil, storage.ErrVerificationConsumed
	}
	if !now.Before(record.ExpiresAt) {
		return nil, storage.ErrVerificationExpired
	}

	if err := verificationRepoTx.markConsumed(ctx, record.ID); err != nil {
		return nil, fmt.Errorf("failed to consume verification token in tx: %w", err)
	}
	if err := userRepoTx.markVerified(ctx, record.UserID); err != nil {
		return nil, fmt.Errorf("failed to mark user verified in tx: %w", err)
	}

	user, err := userRepoTx.GetUserByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id in tx: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return user, nil
}

var _ storage.Storage = (*Storage)(nil)

func wrapNoRows(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
