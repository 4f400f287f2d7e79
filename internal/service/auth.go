package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/util"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInactiveUser       = errors.New("inactive user")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidRole        = errors.New("invalid role")

	// ErrSessionInvalid is the single client-facing failure for every
	// refresh problem. The store-level distinction (not found, revoked,
	// expired) stays in logs and the audit trail only, so the endpoint
	// cannot be used as a token-state oracle.
	ErrSessionInvalid = errors.New("session invalid, please log in again")
)

// AuthService owns the session lifecycle: issuing token pairs at login,
// single-use refresh-token rotation, and revocation on logout.
type AuthService struct {
	tokens        *TokenService
	storage       storage.Storage
	audit         *AuditService
	webhook       *SecurityWebhook
	revokeOnReuse bool
	log           *zap.SugaredLogger
}

func NewAuthService(
	tokens *TokenService,
	store storage.Storage,
	audit *AuditService,
	webhook *SecurityWebhook,
	cfg *util.TokenConfig,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		tokens:        tokens,
		storage:       store,
		audit:         audit,
		webhook:       webhook,
		revokeOnReuse: cfg.RevokeOnReuse,
		log:           log,
	}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	role := models.RoleEmployee
	if req.Role != "" {
		role = models.UserRole(req.Role)
		if !role.Valid() {
			return nil, ErrInvalidRole
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.storage.CreateUser(ctx, models.User{
		Email:          req.Email,
		HashedPassword: string(hash),
		FullName:       req.FullName,
		Role:           role,
		IsActive:       true,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.AuditUserRegister, &user.ID, models.ClientMetadata{}, map[string]any{
		"email": user.Email,
		"role":  user.Role,
	})

	return user, nil
}

// Login authenticates the user and issues a fresh token pair. The refresh
// row is durably written before the pair is returned; if the write fails no
// tokens are emitted.
func (s *AuthService) Login(ctx context.Context, email, password string, meta models.ClientMetadata) (*models.TokenPair, *models.User, error) {
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.audit.Record(ctx, models.AuditLoginFailure, nil, meta, map[string]any{"email": email})
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		s.audit.Record(ctx, models.AuditLoginFailure, &user.ID, meta, map[string]any{"email": email})
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}

	now := time.Now().UTC()
	if err := s.storage.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, nil, fmt.Errorf("update last login: %w", err)
	}

	pair, err := s.issueTokens(ctx, user, now)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, models.AuditLoginSuccess, &user.ID, meta, map[string]any{"email": user.Email})

	return pair, user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User, now time.Time) (*models.TokenPair, error) {
	refresh, err := s.tokens.NewRefreshToken(user.ID, now)
	if err != nil {
		return nil, err
	}

	// Persist the refresh session first: no access token may exist without
	// a corresponding refresh row.
	if err := s.storage.CreateToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	access, err := s.tokens.CreateAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Refresh rotates the presented refresh token: the old row is revoked and a
// successor inserted in one store transaction. Of N concurrent calls with the
// same token exactly one succeeds. The new pair is fully minted before the
// rotation commits, so a signing failure cannot revoke a session without
// delivering its successor.
func (s *AuthService) Refresh(ctx context.Context, presented string, meta models.ClientMetadata) (*models.TokenPair, error) {
	now := time.Now().UTC()

	old, err := s.storage.GetToken(ctx, presented)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			s.log.Warnw("refresh rejected", "reason", err, "ip", meta.IPAddress)
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("get token: %w", err)
	}

	user, err := s.storage.GetUserByID(ctx, old.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if !user.IsActive {
		s.log.Warnw("refresh rejected for inactive user", "userID", user.ID)
		return nil, ErrSessionInvalid
	}

	access, err := s.tokens.CreateAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	next, err := s.tokens.NewRefreshToken(user.ID, now)
	if err != nil {
		return nil, err
	}

	// The rotation transaction stays authoritative: whatever the pre-read
	// saw, only the one caller whose commit flips is_revoked gets the pair.
	if _, err := s.storage.RotateToken(ctx, presented, next, now); err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenRevoked):
			s.handleReuse(ctx, old, meta)
			return nil, ErrSessionInvalid
		case errors.Is(err, storage.ErrTokenNotFound), errors.Is(err, storage.ErrTokenExpired):
			s.log.Warnw("refresh rejected", "reason", err, "ip", meta.IPAddress)
			return nil, ErrSessionInvalid
		default:
			return nil, fmt.Errorf("rotate token: %w", err)
		}
	}

	s.audit.Record(ctx, models.AuditTokenRefresh, &user.ID, meta, nil)

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     next.Token,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// handleReuse reacts to an already-revoked token being presented again,
// which indicates the token leaked or is being replayed.
func (s *AuthService) handleReuse(ctx context.Context, token *models.RefreshToken, meta models.ClientMetadata) {
	s.log.Warnw("revoked refresh token reuse detected",
		"userID", token.UserID, "ip", meta.IPAddress, "userAgent", meta.UserAgent)

	s.audit.Record(ctx, models.AuditTokenReuse, &token.UserID, meta, map[string]any{
		"revoke_all": s.revokeOnReuse,
	})

	s.webhook.NotifyTokenReuse(ctx, map[string]interface{}{
		"user_id":    token.UserID,
		"ip_address": meta.IPAddress,
		"user_agent": meta.UserAgent,
		"detected":   time.Now().UTC(),
	})

	if s.revokeOnReuse {
		revoked, err := s.storage.RevokeAllUserTokens(ctx, token.UserID, time.Now().UTC())
		if err != nil {
			s.log.Errorw("failed to revoke user sessions after reuse", "userID", token.UserID, "error", err)
			return
		}
		s.log.Infow("revoked all user sessions after token reuse", "userID", token.UserID, "count", revoked)
	}
}

// Logout revokes the presented refresh token. It is idempotent: a missing or
// already-revoked token is not an error, so logout stays safe to repeat.
func (s *AuthService) Logout(ctx context.Context, presented string, meta models.ClientMetadata) error {
	if presented == "" {
		return nil
	}

	revoked, err := s.storage.RevokeToken(ctx, presented)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	if revoked {
		if token, err := s.storage.GetToken(ctx, presented); err == nil {
			s.audit.Record(ctx, models.AuditLogout, &token.UserID, meta, nil)
		}
	}

	return nil
}

// LogoutAll revokes every active session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64, meta models.ClientMetadata) (int64, error) {
	revoked, err := s.storage.RevokeAllUserTokens(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}

	s.audit.Record(ctx, models.AuditLogoutAll, &userID, meta, map[string]any{"sessions": revoked})

	return revoked, nil
}

// GetUser loads a user for the authenticated /me endpoint.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.storage.GetUserByID(ctx, userID)
}

// ValidateAccess verifies a bearer token and returns the subject user ID and
// role. Access tokens are self-contained, no store lookup happens here.
func (s *AuthService) ValidateAccess(token string) (int64, models.UserRole, error) {
	return s.tokens.ValidateAccessToken(token)
}
