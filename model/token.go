// file: model/token.go

package model

import (
	"errors"
	"fmt"
	"time"
)

// TokenState is the lifecycle state of a stored refresh token.
type TokenState int

const (
	TokenActive TokenState = iota
	TokenExpired
	TokenRevoked
	TokenReplaced
)

func (s TokenState) String() string {
	switch s {
	case TokenActive:
		return "active"
	case TokenExpired:
		return "expired"
	case TokenRevoked:
		return "revoked"
	case TokenReplaced:
		return "replaced"
	default:
		return fmt.Sprintf("TokenState(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a refresh token record is asked to
// leave a terminal state.
var ErrInvalidTransition = errors.New("invalid refresh token state transition")

// RefreshToken holds the data for a refresh token in the database. The raw
// token is never stored, only its peppered hash. ReplacedBy refers to the
// id of the record that superseded this one.
type RefreshToken struct {
	ID         int        `json:"id"`
	UserID     int        `json:"user_id"`
	TokenHash  string     `json:"-"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *int       `json:"replaced_by,omitempty"`
}

// State derives the lifecycle state at instant now.
func (t *RefreshToken) State(now time.Time) TokenState {
	switch {
	case t.RevokedAt != nil && t.ReplacedBy != nil:
		return TokenReplaced
	case t.RevokedAt != nil:
		return TokenRevoked
	case !now.Before(t.ExpiresAt):
		return TokenExpired
	default:
		return TokenActive
	}
}

// Revoke moves an active or expired record to REVOKED.
func (t *RefreshToken) Revoke(at time.Time) error {
	if t.RevokedAt != nil {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State(at), TokenRevoked)
	}
	t.RevokedAt = &at
	return nil
}

// ReplaceWith moves an active, unexpired record to REPLACED, linking it to
// the record with id nextID.
func (t *RefreshToken) ReplaceWith(nextID int, at time.Time) error {
	if st := t.State(at); st != TokenActive {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, st, TokenReplaced)
	}
	t.RevokedAt = &at
	t.ReplacedBy = &nextID
	return nil
}
