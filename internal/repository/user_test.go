package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblesdotdev/epic-notes/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestNewUserRepository(t *testing.T) {
	repo := NewUserRepository(nil)
	if repo == nil {
		t.Fatal("expected non-nil UserRepository")
	}
	if repo.db != nil {
		t.Fatal("expected nil db when constructed with nil")
	}
}

func TestSentinelErrors(t *testing.T) {
	if ErrUserNotFound.Error() != "user not found" {
		t.Fatalf("unexpected error message: %s", ErrUserNotFound.Error())
	}
	if ErrDuplicateEmail.Error() != "email already exists" {
		t.Fatalf("unexpected error message: %s", ErrDuplicateEmail.Error())
	}
}

func TestIsDuplicateEntryError(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'kody' for key 'users.users_username_key'"}

	assert.False(t, isDuplicateEntryError(nil, ""))
	assert.False(t, isDuplicateEntryError(ErrUserNotFound, ""))
	assert.True(t, isDuplicateEntryError(dup, ""))
	assert.True(t, isDuplicateEntryError(dup, "users_username_key"))
	assert.False(t, isDuplicateEntryError(dup, "users_email_key"))
	assert.False(t, isDuplicateEntryError(&mysql.MySQLError{Number: 1452}, ""))
}

func TestCreateWithPassword_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs(sqlmock.AnyArg(), "kody", "kody@example.com", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO passwords (user_id, hash) VALUES (?, ?)`)).
		WithArgs(sqlmock.AnyArg(), "$2a$10$hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &model.User{Username: "Kody", Email: "Kody@Example.com"}
	require.NoError(t, repo.CreateWithPassword(context.Background(), user, "$2a$10$hash"))

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "kody", user.Username)
	assert.Equal(t, "kody@example.com", user.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithPassword_DuplicateUsername(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'kody' for key 'users.users_username_key'"})
	mock.ExpectRollback()

	err := repo.CreateWithPassword(context.Background(), &model.User{Username: "kody", Email: "k@x.com"}, "h")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail_LowercasesAndScans(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "name", "image_id", "created_at", "updated_at"}).
		AddRow("u1", "kody", "kody@example.com", "Kody", nil, now, now)
	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE email = \?`).
		WithArgs("kody@example.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "KODY@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	require.NotNil(t, user.Name)
	assert.Equal(t, "Kody", *user.Name)
	assert.Nil(t, user.ImageID)
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE id = \?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetPasswordHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT hash FROM passwords WHERE user_id = ?`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"hash"}).AddRow("$2a$10$abc"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT hash FROM passwords WHERE user_id = ?`)).
		WithArgs("u2").
		WillReturnError(sql.ErrNoRows)

	hash, err := repo.GetPasswordHash(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$abc", hash)

	_, err = repo.GetPasswordHash(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrPasswordNotFound)
}

func TestDeleteUser_RemovesVerificationsInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM verifications WHERE target = ?`)).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = ?`)).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_DBErrorRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM verifications WHERE target = ?`)).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}
