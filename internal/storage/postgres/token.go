package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

type TokenRepository struct {
	db storage.DBTX
}

func NewTokenRepository(db storage.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `id, user_id, token, expires_at, created_at, is_revoked`

func (r *TokenRepository) CreateToken(ctx context.Context, token models.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (user_id, token, expires_at, created_at, is_revoked) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt, token.IsRevoked)
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token = $1`
	return r.scanToken(r.db.QueryRowContext(ctx, query, token))
}

// getTokenForUpdate locks the row for the remainder of the transaction.
func (r *TokenRepository) getTokenForUpdate(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token = $1 FOR UPDATE`
	return r.scanToken(r.db.QueryRowContext(ctx, query, token))
}

func (r *TokenRepository) scanToken(row *sql.Row) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt, &t.IsRevoked)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &t, nil
}

func (r *TokenRepository) markRevoked(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to mark token revoked: %w", err)
	}
	return nil
}

func (r *TokenRepository) RevokeToken(ctx context.Context, token string) (bool, error) {
	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1 AND is_revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TokenRepository) RevokeAllUserTokens(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2`
	res, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
