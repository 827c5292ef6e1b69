package repository

import (
	"context"
	"database/sql"
	"errors"
	"go-websecurity-api/model"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestUserRepository_CreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	created := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at`)).
		WithArgs("alice", "a@example.com", "hash", "ROLE_USER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(10, created))

	user := &model.User{Username: "alice", Email: "a@example.com", Password: "hash", Role: "ROLE_USER"}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	assert.Equal(t, 10, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateUserUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateUser(context.Background(), &model.User{Username: "alice"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestTokenRepository_WithinTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO refresh_tokens (user_id, token_hash, issued_at, expires_at) VALUES ($1, $2, $3, $4) RETURNING id`)).
		WithArgs(1, "hash", now, now.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.WithinTx(context.Background(), func(tx TokenTx) error {
		tok := &model.RefreshToken{UserID: 1, TokenHash: "hash", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
		require.NoError(t, tx.Create(tok))
		assert.Equal(t, 5, tok.ID)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByTokenHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM refresh_tokens WHERE token_hash = \$1$`).
		WithArgs("hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "issued_at", "expires_at", "revoked_at", "replaced_by"}).
			AddRow(3, 1, "hash", now, now.Add(time.Hour), now, 4))

	tok, err := repo.GetByTokenHash(context.Background(), "hash")
	require.NoError(t, err)
	require.NotNil(t, tok.ReplacedBy)
	assert.Equal(t, 4, *tok.ReplacedBy)
	assert.Equal(t, model.TokenReplaced, tok.State(now))

	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByTokenHash(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestNoteRepository_CountByTitleBindsParameter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNoteRepository(db)
	hostile := "x' OR '1'='1"

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notes WHERE user_id = $1 AND title = $2`)).
		WithArgs(1, hostile).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountByTitleForUser(context.Background(), 1, hostile)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteRepository_DeleteNoteForUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNoteRepository(db)

	mock.ExpectExec(`DELETE FROM notes WHERE id = \$1 AND user_id = \$2`).
		WithArgs(7, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteNoteForUser(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.False(t, deleted)
}
