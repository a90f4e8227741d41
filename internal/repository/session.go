package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roblesdotdev/epic-notes/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository handles login session persistence operations.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session and sets its generated ID.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO sessions (id, user_id, expiration_date, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.ExpirationDate, s.CreatedAt); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// FindUserID returns the owner of a session that is unexpired at now and whose
// user still exists.
func (r *SessionRepository) FindUserID(ctx context.Context, sessionID string, now time.Time) (string, error) {
	query := `
		SELECT u.id
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ? AND s.expiration_date > ?`

	var userID string
	if err := r.db.QueryRowContext(ctx, query, sessionID, now).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("querying session: %w", err)
	}
	return userID, nil
}

// Delete removes a session by id. Deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteOthers removes every session of userID except keepID and returns the count.
func (r *SessionRepository) DeleteOthers(ctx context.Context, userID, keepID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND id <> ?`, userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("deleting sessions: %w", err)
	}
	return result.RowsAffected()
}

// CountActive returns how many unexpired sessions userID has at now.
func (r *SessionRepository) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM sessions WHERE user_id = ? AND expiration_date > ?`
	if err := r.db.QueryRowContext(ctx, query, userID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}
