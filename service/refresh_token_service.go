// file: service/refresh_token_service.go

package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"
	"go-websecurity-api/repository"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RotationStatus is the outcome of a refresh token rotation.
type RotationStatus int

const (
	RotationOK RotationStatus = iota
	RotationInvalid
	RotationReused
)

func (s RotationStatus) String() string {
	switch s {
	case RotationOK:
		return "ok"
	case RotationInvalid:
		return "invalid"
	case RotationReused:
		return "reused"
	default:
		return fmt.Sprintf("RotationStatus(%d)", int(s))
	}
}

// RotationResult carries the rotated user when Status is RotationOK.
type RotationResult struct {
	Status RotationStatus
	User   *model.User
}

// RefreshTokenConfig tunes the rotation engine. A zero TTL uses the token
// service's refresh lifetime.
type RefreshTokenConfig struct {
	Pepper string
	TTL    time.Duration
}

// RefreshTokenService issues, rotates and revokes refresh tokens. Stored
// records only ever contain SHA-256(raw || pepper).
type RefreshTokenService struct {
	repo    repository.ITokenRepository
	users   repository.IUserRepository
	tokens  *TokenService
	cookies *CookieService
	pepper  string
	ttl     time.Duration
	now     func() time.Time
}

func NewRefreshTokenService(
	repo repository.ITokenRepository,
	users repository.IUserRepository,
	tokens *TokenService,
	cookies *CookieService,
	cfg RefreshTokenConfig,
) *RefreshTokenService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = tokens.TTL(model.TokenTypeRefresh)
	}
	return &RefreshTokenService{
		repo:    repo,
		users:   users,
		tokens:  tokens,
		cookies: cookies,
		pepper:  cfg.Pepper,
		ttl:     ttl,
		now:     time.Now,
	}
}

// HashToken returns the hex SHA-256 of the raw token followed by the pepper.
func (s *RefreshTokenService) HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw + s.pepper))
	return hex.EncodeToString(sum[:])
}

func (s *RefreshTokenService) newRecord(userID int, raw string, now time.Time) *model.RefreshToken {
	return &model.RefreshToken{
		UserID:    userID,
		TokenHash: s.HashToken(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
}

// IssueAndStore mints a refresh token for user, persists its record and
// sets the refresh cookie. The raw token is returned to the caller.
func (s *RefreshTokenService) IssueAndStore(ctx context.Context, w http.ResponseWriter, user *model.User) (string, error) {
	raw, err := s.tokens.Issue(user, model.TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	record := s.newRecord(user.ID, raw, s.now())
	err = s.repo.WithinTx(ctx, func(tx repository.TokenTx) error {
		return tx.Create(record)
	})
	if err != nil {
		return "", fmt.Errorf("could not store refresh token: %w", err)
	}

	http.SetCookie(w, s.cookies.BuildRefreshCookie(raw))
	return raw, nil
}

// Rotate exchanges a presented refresh token for a new one. A token that
// was already revoked or replaced triggers reuse containment: every
// unrevoked token of the same user is revoked. The lookup, the state check
// and the writes run in one store transaction. A non-nil error means the
// store failed and nothing was committed.
func (s *RefreshTokenService) Rotate(ctx context.Context, w http.ResponseWriter, presented string) (RotationResult, error) {
	invalid := RotationResult{Status: RotationInvalid}

	claims, err := s.tokens.Verify(presented)
	if err != nil || claims.Type != model.TokenTypeRefresh {
		return s.reject(w, invalid), nil
	}

	user, err := s.users.FindUserByUsername(ctx, claims.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return s.reject(w, invalid), nil
	}
	if err != nil {
		return RotationResult{}, fmt.Errorf("could not load refresh token owner: %w", err)
	}

	var (
		result  RotationResult
		newRaw  string
		revoked int64
	)
	hash := s.HashToken(presented)
	now := s.now()

	err = s.repo.WithinTx(ctx, func(tx repository.TokenTx) error {
		existing, err := tx.GetByTokenHashForUpdate(hash)
		if errors.Is(err, sql.ErrNoRows) {
			result = invalid
			return nil
		}
		if err != nil {
			return err
		}
		if existing.UserID != user.ID {
			result = invalid
			return nil
		}

		switch existing.State(now) {
		case model.TokenRevoked, model.TokenReplaced:
			n, err := tx.RevokeAllActiveForUser(existing.UserID, now)
			if err != nil {
				return err
			}
			revoked = n
			result = RotationResult{Status: RotationReused}
			return nil
		case model.TokenExpired:
			if err := existing.Revoke(now); err != nil {
				return err
			}
			if err := tx.Update(existing); err != nil {
				return err
			}
			result = invalid
			return nil
		}

		raw, err := s.tokens.Issue(user, model.TokenTypeRefresh)
		if err != nil {
			return err
		}
		replacement := s.newRecord(user.ID, raw, now)
		if err := tx.Create(replacement); err != nil {
			return err
		}
		if err := existing.ReplaceWith(replacement.ID, now); err != nil {
			return err
		}
		if err := tx.Update(existing); err != nil {
			return err
		}

		newRaw = raw
		result = RotationResult{Status: RotationOK, User: user}
		return nil
	})
	if err != nil {
		rotationsTotal.WithLabelValues("error").Inc()
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Refresh token rotation failed")
		return RotationResult{}, fmt.Errorf("could not rotate refresh token: %w", err)
	}

	switch result.Status {
	case RotationOK:
		http.SetCookie(w, s.cookies.BuildRefreshCookie(newRaw))
		rotationsTotal.WithLabelValues(result.Status.String()).Inc()
	case RotationReused:
		logger.Log.WithFields(logrus.Fields{
			"user_id": user.ID,
			"revoked": revoked,
		}).Warn("Refresh token reuse detected")
		s.reject(w, result)
	default:
		s.reject(w, result)
	}
	return result, nil
}

func (s *RefreshTokenService) reject(w http.ResponseWriter, result RotationResult) RotationResult {
	http.SetCookie(w, s.cookies.ClearRefreshCookie())
	rotationsTotal.WithLabelValues(result.Status.String()).Inc()
	return result
}

// RevokeIfPresent revokes the record behind the request's refresh cookie,
// if any, and always clears the cookie. Calling it again is harmless.
func (s *RefreshTokenService) RevokeIfPresent(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer http.SetCookie(w, s.cookies.ClearRefreshCookie())

	raw, ok := s.cookies.ReadRefreshToken(r)
	if !ok {
		return nil
	}

	hash := s.HashToken(raw)
	now := s.now()
	err := s.repo.WithinTx(ctx, func(tx repository.TokenTx) error {
		existing, err := tx.GetByTokenHashForUpdate(hash)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if existing.RevokedAt != nil {
			return nil
		}
		if err := existing.Revoke(now); err != nil {
			return err
		}
		return tx.Update(existing)
	})
	if err != nil {
		return fmt.Errorf("could not revoke refresh token: %w", err)
	}
	return nil
}
