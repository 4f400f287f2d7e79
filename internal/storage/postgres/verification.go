package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

type VerificationRepository struct {
	db storage.DBTX
}

func NewVerificationRepository(db storage.DBTX) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) CreateVerificationToken(ctx context.Context, token models.VerificationToken) error {
	query := `INSERT INTO email_verification_tokens (user_id, token, expires_at, created_at, consumed)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query,
		token.UserID, token.Token, token.ExpiresAt, token.CreatedAt, token.Consumed)
	if err != nil {
		return fmt.Errorf("failed to insert verification token: %w", err)
	}
	return nil
}

func (r *VerificationRepository) DeleteUnconsumedTokens(ctx context.Context, userID int64) error {
	query := `DELETE FROM email_verification_tokens WHERE user_id = $1 AND consumed = FALSE`
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete unconsumed verification tokens: %w", err)
	}
	return nil
}

func (r *VerificationRepository) getVerificationTokenForUpdate(ctx context.Context, token string) (*models.VerificationToken, error) {
	query := `SELECT id, user_id, token, expires_at, created_at, consumed
		FROM email_verification_tokens WHERE token = $1 FOR UPDATE`
	var t models.VerificationToken
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt, &t.Consumed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}
	return &t, nil
}

func (r *VerificationRepository) markConsumed(ctx context.Context, id int64) error {
	query := `UPDATE email_verification_tokens SET consumed = TRUE WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark verification token consumed: %w", err)
	}
	return nil
}
