package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/repository"
)

// SessionTTL is how long a login session lives.
const SessionTTL = 30 * 24 * time.Hour

// Clock returns the current time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// SessionService issues and resolves login sessions.
type SessionService struct {
	sessions SessionStore
	ttl      time.Duration
	now      Clock
}

// NewSessionService creates a new SessionService. A non-positive ttl falls
// back to SessionTTL.
func NewSessionService(sessions SessionStore, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionService{
		sessions: sessions,
		ttl:      ttl,
		now:      systemClock,
	}
}

// Create starts a session for userID.
func (s *SessionService) Create(ctx context.Context, userID string) (*model.Session, error) {
	now := s.now()
	sess := &model.Session{
		UserID:         userID,
		ExpirationDate: now.Add(s.ttl),
		CreatedAt:      now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// CurrentUserID resolves a session id to its user. An empty id is anonymous
// and returns "" with no error. A missing, expired or orphaned session
// returns ErrSessionInvalid.
func (s *SessionService) CurrentUserID(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}

	userID, err := s.sessions.FindUserID(ctx, sessionID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return "", ErrSessionInvalid
		}
		return "", fmt.Errorf("looking up session: %w", err)
	}
	return userID, nil
}

// Destroy deletes a session. Deleting a missing session is not an error.
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// SignOutOthers deletes every session of userID except currentSessionID and
// returns how many were removed.
func (s *SessionService) SignOutOthers(ctx context.Context, userID, currentSessionID string) (int64, error) {
	n, err := s.sessions.DeleteOthers(ctx, userID, currentSessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting other sessions: %w", err)
	}
	return n, nil
}

// CountActive returns the number of unexpired sessions of userID.
func (s *SessionService) CountActive(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.CountActive(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}
