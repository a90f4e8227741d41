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

var ErrVerificationNotFound = errors.New("verification not found")

// VerificationRepository handles one-time password state, unique per (target, type).
type VerificationRepository struct {
	db *sql.DB
}

// NewVerificationRepository creates a new VerificationRepository.
func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// upsertVerificationQuery replaces any pending row for the same (target, type);
// concurrent writers resolve last-write-wins.
const upsertVerificationQuery = `
	INSERT INTO verifications (id, type, target, secret, algorithm, digits, period, char_set, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		id         = VALUES(id),
		secret     = VALUES(secret),
		algorithm  = VALUES(algorithm),
		digits     = VALUES(digits),
		period     = VALUES(period),
		char_set   = VALUES(char_set),
		expires_at = VALUES(expires_at),
		created_at = VALUES(created_at)`

// Upsert creates or replaces the verification for (v.Target, v.Type). A
// replaced row takes v.ID, so ids are never reused across codes.
func (r *VerificationRepository) Upsert(ctx context.Context, v *model.Verification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	var expiresAt sql.NullTime
	if v.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *v.ExpiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, upsertVerificationQuery,
		v.ID, string(v.Type), v.Target, v.Secret, v.Algorithm, v.Digits, v.Period, v.CharSet, expiresAt, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting verification: %w", err)
	}
	return nil
}

// FindActive returns the verification for (target, type) unless it expired before now.
func (r *VerificationRepository) FindActive(ctx context.Context, target string, typ model.VerificationType, now time.Time) (*model.Verification, error) {
	query := `
		SELECT id, type, target, secret, algorithm, digits, period, char_set, expires_at, created_at
		FROM verifications
		WHERE target = ? AND type = ? AND (expires_at IS NULL OR expires_at > ?)`

	v := &model.Verification{}
	var typeName string
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, target, string(typ), now).Scan(
		&v.ID, &typeName, &v.Target, &v.Secret, &v.Algorithm, &v.Digits, &v.Period, &v.CharSet, &expiresAt, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("querying verification: %w", err)
	}

	v.Type = model.VerificationType(typeName)
	if expiresAt.Valid {
		t := expiresAt.Time
		v.ExpiresAt = &t
	}
	return v, nil
}

// Delete removes the verification for (target, type), if any.
func (r *VerificationRepository) Delete(ctx context.Context, target string, typ model.VerificationType) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM verifications WHERE target = ? AND type = ?`, target, string(typ)); err != nil {
		return fmt.Errorf("deleting verification: %w", err)
	}
	return nil
}
