package session

import "time"

// Role is the class of principal a token is scoped to.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles lists every valid role, one per registry partition.
var Roles = []Role{RoleUser, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Key identifies a registry entry. At most one live session exists per Key.
type Key struct {
	Subject string
	Role    Role
}

func (k Key) String() string {
	return string(k.Role) + ":" + k.Subject
}

// Session is one live registry entry.
type Session struct {
	// ID is a random UUID, also carried by the token as jti.
	ID      string
	Subject string
	Role    Role

	IssuedAt  int64
	ExpiresAt int64
}

// Key returns the registry key of s.
func (s *Session) Key() Key {
	return Key{Subject: s.Subject, Role: s.Role}
}

// IssuedTime returns IssuedAt as a time.Time.
func (s *Session) IssuedTime() time.Time {
	return time.Unix(s.IssuedAt, 0)
}

func cloneSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
