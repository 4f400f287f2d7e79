package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/util"
)

var (
	ErrTokenInvalid         = errors.New("token invalid")
	ErrInvalidUserID        = errors.New("invalid userID")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

// TokenService mints and verifies access tokens and generates the opaque
// refresh-token strings. Access tokens are stateless: signature and expiry
// are the only validity checks.
type TokenService struct {
	jwtSecretKey []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewTokenService(cfg *util.TokenConfig) *TokenService {
	return &TokenService{
		jwtSecretKey: cfg.JwtSecretKey,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
	}
}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// CreateAccessToken mints an HS512-signed access token with a fresh JTI.
func (ts *TokenService) CreateAccessToken(user *models.User, now time.Time) (string, error) {
	claims := &jwtClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}

	return signedToken, nil
}

// ValidateAccessToken verifies signature and expiry and returns the subject
// user ID and role.
func (ts *TokenService) ValidateAccessToken(token string) (int64, models.UserRole, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&jwtClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.jwtSecretKey, nil
		},
		opts...,
	)
	if err != nil {
		return 0, "", fmt.Errorf("parse token claims: %w", err)
	}

	if parsedToken == nil || !parsedToken.Valid {
		return 0, "", ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(*jwtClaims)
	if !ok || claims.Subject == "" {
		return 0, "", ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidUserID
	}

	return userID, models.UserRole(claims.Role), nil
}

// NewRefreshToken generates a fresh refresh-token row for the given user.
// The token string carries 256 bits of entropy and never repeats.
func (ts *TokenService) NewRefreshToken(userID int64, now time.Time) (models.RefreshToken, error) {
	raw := make([]byte, util.RawTokenLength)
	if _, err := rand.Read(raw); err != nil {
		return models.RefreshToken{}, fmt.Errorf("failed to read random bytes: %w", err)
	}

	return models.RefreshToken{
		UserID:    userID,
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		ExpiresAt: now.Add(ts.refreshTTL),
		CreatedAt: now,
		IsRevoked: false,
	}, nil
}
