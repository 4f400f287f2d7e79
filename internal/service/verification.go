package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/util"
)

var ErrAlreadyVerified = errors.New("email already verified")

// VerificationService issues and consumes single-use email verification
// tokens. Delivery is out of scope: the token is returned to the caller and
// logged for the operator.
type VerificationService struct {
	storage storage.Storage
	audit   *AuditService
	ttl     time.Duration
	log     *zap.SugaredLogger
}

func NewVerificationService(store storage.Storage, audit *AuditService, cfg *util.VerificationConfig, log *zap.SugaredLogger) *VerificationService {
	return &VerificationService{
		storage: store,
		audit:   audit,
		ttl:     cfg.TokenTTL,
		log:     log,
	}
}

func (s *VerificationService) Request(ctx context.Context, user *models.User, meta models.ClientMetadata) (*models.VerificationToken, error) {
	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}

	// Earlier unused tokens are dropped so only the newest link works.
	if err := s.storage.DeleteUnconsumedTokens(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("delete unconsumed tokens: %w", err)
	}

	raw := make([]byte, util.RawTokenLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}

	now := time.Now().UTC()
	token := models.VerificationToken{
		UserID:    user.ID,
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}

	if err := s.storage.CreateVerificationToken(ctx, token); err != nil {
		return nil, fmt.Errorf("persist verification token: %w", err)
	}

	s.audit.Record(ctx, models.AuditVerifyRequest, &user.ID, meta, nil)
	s.log.Infow("verification token issued", "userID", user.ID, "expiresAt", token.ExpiresAt)

	return &token, nil
}

func (s *VerificationService) Confirm(ctx context.Context, token string, meta models.ClientMetadata) (*models.User, error) {
	user, err := s.storage.ConsumeVerificationToken(ctx, token, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.AuditEmailVerified, &user.ID, meta, nil)

	return user, nil
}
