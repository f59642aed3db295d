package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Token categories issued by the auth service. The set is open; any category
// configured under tokens gets its own timeout and secret.
const (
	CategorySession  = "session"
	CategoryPassword = "password"
	CategoryEmail    = "email"
)

// Session is an authenticated session. ID is the opaque public identifier.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	LastModified time.Time `json:"lastModified"`
	Expires      time.Time `json:"expires"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !s.Expires.After(now)
}

// Token is a single use credential of a given category.
type Token struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Category     string    `json:"category"`
	LastModified time.Time `json:"lastModified"`
	Expires      time.Time `json:"expires"`
}

// Expired reports whether the token is no longer valid at now.
func (t *Token) Expired(now time.Time) bool {
	return t == nil || !t.Expires.After(now)
}

// User is the user model. Password material never leaves the storage layer.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	PasswordDigest string     `bun:"password_digest,notnull" json:"-"`
	PasswordSalt   string     `bun:"password_salt" json:"-"`
	Validated      bool       `bun:"validated,notnull,default:false" json:"validated"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero" json:"updatedAt,omitempty"`
}

// Public returns a copy of u without password material.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		Validated: u.Validated,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ParseUserID parses a public user id. Invalid ids report false.
func ParseUserID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, false
	}
	return parsed, true
}
