package model

import "github.com/golang-jwt/jwt/v5"

// TokenType distinguishes access tokens from refresh tokens inside the
// signed claim set.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// AppClaims is the signed payload: {jti, sub, uid, role, typ, iat, exp}.
type AppClaims struct {
	UserID int       `json:"uid"`
	Role   Role      `json:"role"`
	Type   TokenType `json:"typ"`
	jwt.RegisteredClaims
}
