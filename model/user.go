// file: model/user.go

package model

import (
	"strings"
	"time"
)

// Role is a canonical, "ROLE_"-prefixed authority name.
type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"

	rolePrefix = "ROLE_"
)

// NormalizeRole maps any caller-supplied role string onto its canonical
// prefixed form. Blank input becomes RoleUser.
func NormalizeRole(role string) Role {
	role = strings.TrimSpace(role)
	if role == "" {
		return RoleUser
	}
	if strings.HasPrefix(role, rolePrefix) {
		return Role(role)
	}
	return Role(rolePrefix + role)
}

// User is the persisted account record. Password holds the hash only.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
