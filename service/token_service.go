// file: service/token_service.go

package service

import (
	"errors"
	"fmt"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MinSecretLength is the minimum HMAC secret size in bytes.
const MinSecretLength = 32

var (
	ErrWeakSecret   = errors.New("jwt secret must be at least 32 bytes")
	ErrTokenInvalid = errors.New("token is malformed, expired or has a bad signature")
)

// TokenService issues and verifies HS256-signed access and refresh tokens.
// It only holds immutable configuration and is safe for concurrent use.
type TokenService struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService fails when the secret is shorter than MinSecretLength;
// callers treat that as a startup error.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len([]byte(secret)) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive: access=%s refresh=%s", accessTTL, refreshTTL)
	}
	return &TokenService{
		key:        []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// TTL returns the configured lifetime of the given token type.
func (s *TokenService) TTL(typ model.TokenType) time.Duration {
	if typ == model.TokenTypeRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

// Issue mints a signed token of the given type for user.
func (s *TokenService) Issue(user *model.User, typ model.TokenType) (string, error) {
	if typ != model.TokenTypeAccess && typ != model.TokenTypeRefresh {
		return "", fmt.Errorf("unknown token type %q", typ)
	}

	now := s.now()
	claims := &model.AppClaims{
		UserID: user.ID,
		Role:   model.NormalizeRole(user.Role),
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL(typ))),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.key)
	if err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"username": user.Username,
			"type":     typ,
		}).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}

	tokensIssued.WithLabelValues(string(typ)).Inc()
	return tokenString, nil
}

// Verify checks structure, signature and expiry and returns the claims with
// the role normalised. Every failure is reported as ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string) (*model.AppClaims, error) {
	claims := &model.AppClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	claims.Role = model.NormalizeRole(string(claims.Role))
	return claims, nil
}

// IsValid reports whether Verify would succeed right now.
func (s *TokenService) IsValid(tokenString string) bool {
	_, err := s.Verify(tokenString)
	return err == nil
}
