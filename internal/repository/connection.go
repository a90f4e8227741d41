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

var (
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrDuplicateConnection = errors.New("connection already exists")
)

const connectionColumns = `id, provider_name, provider_id, user_id, created_at, updated_at`

// ConnectionRepository handles OAuth connection persistence operations.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create links a provider identity to a user.
func (r *ConnectionRepository) Create(ctx context.Context, c *model.Connection) error {
	return insertConnection(ctx, r.db, c)
}

func insertConnection(ctx context.Context, db execer, c *model.Connection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	query := `INSERT INTO connections (` + connectionColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, c.ID, c.ProviderName, c.ProviderID, c.UserID, now, now)
	if err != nil {
		if isDuplicateEntryError(err, "connections_provider_key") {
			return ErrDuplicateConnection
		}
		return fmt.Errorf("inserting connection: %w", err)
	}
	return nil
}

// FindByProvider returns the connection for a provider identity.
func (r *ConnectionRepository) FindByProvider(ctx context.Context, providerName, providerID string) (*model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE provider_name = ? AND provider_id = ?`

	c, err := scanConnection(r.db.QueryRowContext(ctx, query, providerName, providerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("querying connection: %w", err)
	}
	return c, nil
}

// ListByUser returns a user's connections, oldest first.
func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = ? ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	var conns []*model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connections: %w", err)
	}
	return conns, nil
}

// CountByUser returns how many connections a user has.
func (r *ConnectionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting connections: %w", err)
	}
	return n, nil
}

// Delete removes a connection owned by userID.
func (r *ConnectionRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func scanConnection(row rowScanner) (*model.Connection, error) {
	c := &model.Connection{}
	if err := row.Scan(&c.ID, &c.ProviderName, &c.ProviderID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}
