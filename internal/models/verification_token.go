package models

import "time"

// VerificationToken is a single-use email verification token.
type VerificationToken struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Consumed  bool      `json:"consumed"`
}
