// file: repository/token_repository.go

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"
	"time"

	"github.com/sirupsen/logrus"
)

// ITokenRepository defines the contract for refresh token persistence.
// Every state-changing sequence runs through WithinTx so the lookup, the
// state check and the writes form a single atomic unit.
type ITokenRepository interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	ListByUserID(ctx context.Context, userID int) ([]*model.RefreshToken, error)
	WithinTx(ctx context.Context, fn func(tx TokenTx) error) error
}

// TokenTx is the set of refresh token operations available inside a
// transaction. GetByTokenHashForUpdate locks the returned record until the
// transaction ends, serialising concurrent rotations of the same token.
type TokenTx interface {
	Create(token *model.RefreshToken) error
	GetByTokenHashForUpdate(tokenHash string) (*model.RefreshToken, error)
	Update(token *model.RefreshToken) error
	RevokeAllActiveForUser(userID int, at time.Time) (int64, error)
}

// TokenRepository implements ITokenRepository on PostgreSQL.
type TokenRepository struct {
	DB *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

const refreshTokenColumns = `id, user_id, token_hash, issued_at, expires_at, revoked_at, replaced_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row rowScanner) (*model.RefreshToken, error) {
	var (
		token      model.RefreshToken
		revokedAt  sql.NullTime
		replacedBy sql.NullInt64
	)
	if err := row.Scan(&token.ID, &token.UserID, &token.TokenHash, &token.IssuedAt, &token.ExpiresAt, &revokedAt, &replacedBy); err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}
	if replacedBy.Valid {
		id := int(replacedBy.Int64)
		token.ReplacedBy = &id
	}
	return &token, nil
}

// shortHash keeps token hashes out of logs beyond a correlatable prefix.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// GetByTokenHash retrieves a refresh token by its hashed value without
// locking it. Returns sql.ErrNoRows if not found.
func (r *TokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	log := logger.Log.WithField("token_hash", shortHash(tokenHash))
	log.Debug("Executing query to get refresh token by hash")

	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	token, err := scanRefreshToken(r.DB.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if err != sql.ErrNoRows {
			log.WithError(err).Error("Failed to execute get refresh token by hash query")
		}
		return nil, err
	}
	return token, nil
}

// ListByUserID returns every refresh token record of a user, newest first.
func (r *TokenRepository) ListByUserID(ctx context.Context, userID int) ([]*model.RefreshToken, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Debug("Executing query to list refresh tokens by user ID")

	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE user_id = $1 ORDER BY id DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute list refresh tokens query")
		return nil, err
	}
	defer rows.Close()

	var tokens []*model.RefreshToken
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan refresh token row")
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// WithinTx runs fn inside a database transaction. The transaction is
// committed only when fn returns nil.
func (r *TokenRepository) WithinTx(ctx context.Context, fn func(tx TokenTx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTokenTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

type pgTokenTx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Create inserts a new refresh token record and fills in its ID.
func (t *pgTokenTx) Create(token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    token.UserID,
		"expires_at": token.ExpiresAt,
	})
	log.Debug("Executing query to create a new refresh token")

	query := `INSERT INTO refresh_tokens (user_id, token_hash, issued_at, expires_at) VALUES ($1, $2, $3, $4) RETURNING id`
	err := t.tx.QueryRowContext(t.ctx, query, token.UserID, token.TokenHash, token.IssuedAt, token.ExpiresAt).Scan(&token.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute create refresh token query")
		return err
	}
	return nil
}

func (t *pgTokenTx) GetByTokenHashForUpdate(tokenHash string) (*model.RefreshToken, error) {
	log := logger.Log.WithField("token_hash", shortHash(tokenHash))
	log.Debug("Executing query to get refresh token for update")

	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`
	token, err := scanRefreshToken(t.tx.QueryRowContext(t.ctx, query, tokenHash))
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug("Refresh token not found for update")
		} else {
			log.WithError(err).Error("Failed to execute get refresh token for update query")
		}
		return nil, err
	}
	return token, nil
}

// Update persists the revocation fields of an existing record.
func (t *pgTokenTx) Update(token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"token_id": token.ID,
		"user_id":  token.UserID,
	})
	log.Debug("Executing query to update refresh token")

	var replacedBy sql.NullInt64
	if token.ReplacedBy != nil {
		replacedBy = sql.NullInt64{Int64: int64(*token.ReplacedBy), Valid: true}
	}

	query := `UPDATE refresh_tokens SET revoked_at = $1, replaced_by = $2 WHERE id = $3`
	_, err := t.tx.ExecContext(t.ctx, query, token.RevokedAt, replacedBy, token.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update refresh token query")
		return err
	}
	return nil
}

// RevokeAllActiveForUser marks every unrevoked record of the user revoked
// at the given instant and returns how many rows changed.
func (t *pgTokenTx) RevokeAllActiveForUser(userID int, at time.Time) (int64, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Debug("Executing query to revoke all active refresh tokens for a user")

	query := `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	res, err := t.tx.ExecContext(t.ctx, query, userID, at)
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke all refresh tokens query")
		return 0, err
	}
	return res.RowsAffected()
}
