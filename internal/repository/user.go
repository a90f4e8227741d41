package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roblesdotdev/epic-notes/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPasswordNotFound  = errors.New("password not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

const userColumns = `id, username, email, name, image_id, created_at, updated_at`

// UserRepository handles user and password persistence operations.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateWithPassword inserts a user and their password hash in one transaction.
// The generated ID and timestamps are set on user.
func (r *UserRepository) CreateWithPassword(ctx context.Context, user *model.User, hash string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO passwords (user_id, hash) VALUES (?, ?)`, user.ID, hash); err != nil {
			return fmt.Errorf("inserting password: %w", err)
		}
		return nil
	})
}

// CreateWithConnection inserts a user together with their first OAuth connection.
func (r *UserRepository) CreateWithConnection(ctx context.Context, user *model.User, conn *model.Connection) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		conn.UserID = user.ID
		return insertConnection(ctx, tx, conn)
	})
}

func insertUser(ctx context.Context, tx *sql.Tx, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	query := `INSERT INTO users (id, username, email, name, image_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, nullString(user.Name), nullString(user.ImageID), now, now,
	)
	if err != nil {
		switch {
		case isDuplicateEntryError(err, "users_username_key"):
			return ErrDuplicateUsername
		case isDuplicateEntryError(err, "users_email_key"):
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByUsername retrieves a user by their (lowercased) username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, strings.ToLower(username))
}

// GetByEmail retrieves a user by email address, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
}

// GetByUsernameOrEmail retrieves the user whose username or email matches value.
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, value string) (*model.User, error) {
	v := strings.ToLower(value)
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? OR username = ? LIMIT 1`, v, v)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var name, imageID sql.NullString
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &name, &imageID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.Name = stringPtr(name)
	user.ImageID = stringPtr(imageID)
	return user, nil
}

// GetPasswordHash returns the stored hash for a user. It is never sent to clients.
func (r *UserRepository) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT hash FROM passwords WHERE user_id = ?`, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPasswordNotFound
		}
		return "", fmt.Errorf("querying password: %w", err)
	}
	return hash, nil
}

// SetPassword creates or replaces a user's password hash.
func (r *UserRepository) SetPassword(ctx context.Context, userID, hash string) error {
	query := `INSERT INTO passwords (user_id, hash) VALUES (?, ?) ON DUPLICATE KEY UPDATE hash = VALUES(hash)`
	if _, err := r.db.ExecContext(ctx, query, userID, hash); err != nil {
		return fmt.Errorf("upserting password: %w", err)
	}
	return nil
}

// UpdateEmail changes a user's email address.
func (r *UserRepository) UpdateEmail(ctx context.Context, userID, email string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET email = ? WHERE id = ?`, strings.ToLower(email), userID)
	if err != nil {
		if isDuplicateEntryError(err, "users_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("updating email: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user. Password, sessions and connections cascade; verification
// rows targeting the user id are removed in the same transaction.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM verifications WHERE target = ?`, userID); err != nil {
			return fmt.Errorf("deleting verifications: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
		if err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}
