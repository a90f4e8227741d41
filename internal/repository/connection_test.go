package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblesdotdev/epic-notes/internal/model"
)

func TestConnectionCreate_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConnectionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO connections`)).
		WithArgs(sqlmock.AnyArg(), "github", "42", "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'github-42' for key 'connections.connections_provider_key'"})

	err := repo.Create(context.Background(), &model.Connection{ProviderName: "github", ProviderID: "42", UserID: "u1"})
	assert.ErrorIs(t, err, ErrDuplicateConnection)
}

func TestConnectionFindByProvider(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConnectionRepository(db)
	now := time.Now()

	q := `(?s)SELECT .* FROM connections WHERE provider_name = \? AND provider_id = \?`
	mock.ExpectQuery(q).
		WithArgs("github", "42").
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_name", "provider_id", "user_id", "created_at", "updated_at"}).
			AddRow("c1", "github", "42", "u1", now, now))
	mock.ExpectQuery(q).
		WithArgs("github", "43").
		WillReturnError(sql.ErrNoRows)

	c, err := repo.FindByProvider(context.Background(), "github", "42")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)

	_, err = repo.FindByProvider(context.Background(), "github", "43")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestConnectionListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConnectionRepository(db)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT .* FROM connections WHERE user_id = \? ORDER BY created_at ASC`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_name", "provider_id", "user_id", "created_at", "updated_at"}).
			AddRow("c1", "github", "42", "u1", now, now).
			AddRow("c2", "github", "43", "u1", now, now))

	conns, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, conns, 2)
}

func TestConnectionDelete_NotOwned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConnectionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM connections WHERE id = ? AND user_id = ?`)).
		WithArgs("c1", "someone-else").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "c1", "someone-else")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}
