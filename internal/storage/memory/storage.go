package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

// Storage is a mutex-guarded in-memory implementation of storage.Storage.
// It mirrors the transactional semantics of the postgres backend: every
// read-check-mutate path runs under one lock, so concurrent rotations of the
// same token resolve to exactly one winner.
type Storage struct {
	mu            sync.Mutex
	users         map[int64]models.User
	usersByEmail  map[string]int64
	tokens        map[string]models.RefreshToken
	verifications map[string]models.VerificationToken
	events        []models.AuditEvent
	nextUserID    int64
	nextTokenID   int64
	nextVerifID   int64
}

func NewStorage() *Storage {
	return &Storage{
		users:         make(map[int64]models.User),
		usersByEmail:  make(map[string]int64),
		tokens:        make(map[string]models.RefreshToken),
		verifications: make(map[string]models.VerificationToken),
	}
}

var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByEmail[user.Email]; taken {
		return nil, storage.ErrEmailTaken
	}

	s.nextUserID++
	user.ID = s.nextUserID
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	s.users[user.ID] = user
	s.usersByEmail[user.Email] = user.ID

	created := user
	return &created, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *Storage) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getUserLocked(id)
}

func (s *Storage) getUserLocked(id int64) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

// SetUserActive toggles the active flag, mirroring an admin deactivation.
func (s *Storage) SetUserActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.IsActive = active
	s.users[id] = user
	return nil
}

func (s *Storage) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.LastLoginAt = &at
	user.UpdatedAt = at
	s.users[id] = user
	return nil
}

func (s *Storage) CreateToken(_ context.Context, token models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createTokenLocked(token)
	return nil
}

func (s *Storage) createTokenLocked(token models.RefreshToken) {
	s.nextTokenID++
	token.ID = s.nextTokenID
	s.tokens[token.Token] = token
}

func (s *Storage) GetToken(_ context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return &t, nil
}

func (s *Storage) RotateToken(_ context.Context, presented string, next models.RefreshToken, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tokens[presented]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	if old.IsRevoked {
		return nil, storage.ErrTokenRevoked
	}
	if !now.Before(old.ExpiresAt) {
		return nil, storage.ErrTokenExpired
	}

	old.IsRevoked = true
	s.tokens[presented] = old

	next.UserID = old.UserID
	s.createTokenLocked(next)

	return s.getUserLocked(old.UserID)
}

func (s *Storage) RevokeToken(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || t.IsRevoked {
		return false, nil
	}
	t.IsRevoked = true
	s.tokens[token] = t
	return true, nil
}

func (s *Storage) RevokeAllUserTokens(_ context.Context, userID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var revoked int64
	for key, t := range s.tokens {
		if t.UserID == userID && !t.IsRevoked && now.Before(t.ExpiresAt) {
			t.IsRevoked = true
			s.tokens[key] = t
			revoked++
		}
	}
	return revoked, nil
}

func (s *Storage) RecordEvent(_ context.Context, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = int64(len(s.events) + 1)
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded audit trail.
func (s *Storage) Events() []models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Storage) CreateVerificationToken(_ context.Context, token models.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextVerifID++
	token.ID = s.nextVerifID
	s.verifications[token.Token] = token
	return nil
}

func (s *Storage) DeleteUnconsumedTokens(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.verifications {
		if t.UserID == userID && !t.Consumed {
			delete(s.verifications, key)
		}
	}
	return nil
}

func (s *Storage) ConsumeVerificationToken(_ context.Context, token string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.verifications[token]
	if !ok {
		return nil, storage.ErrVerificationNotFound
	}
	if record.Consumed {
		return nil, storage.ErrVerificationConsumed
	}
	if !now.Before(record.ExpiresAt) {
		return nil, storage.ErrVerificationExpired
	}

	record.Consumed = true
	s.verifications[token] = record

	user, ok := s.users[record.UserID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	user.IsVerified = true
	s.users[user.ID] = user

	out := user
	return &out, nil
}
