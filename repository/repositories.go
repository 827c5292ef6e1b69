package repository

import (
	"database/sql"
	"errors"
)

var (
	ErrDuplicateTokenHash = errors.New("refresh token hash already exists")
	ErrDuplicateUser      = errors.New("username or email already exists")
)

// Repositories bundles the stores one storage driver provides.
type Repositories struct {
	Users  IUserRepository
	Tokens ITokenRepository
	Notes  INoteRepository
}

// NewPostgresRepositories wires every repository to the same *sql.DB.
func NewPostgresRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Users:  NewUserRepository(db),
		Tokens: NewTokenRepository(db),
		Notes:  NewNoteRepository(db),
	}
}

// NewMemoryRepositories returns empty process-local stores.
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Users:  NewMemoryUserRepository(),
		Tokens: NewMemoryTokenRepository(),
		Notes:  NewMemoryNoteRepository(),
	}
}
