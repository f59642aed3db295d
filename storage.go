package auth

import (
	"context"
	"time"
)

// SessionDao persists sessions. Lookups return (nil, nil) when the session is
// unknown, expired or the id is malformed.
type SessionDao interface {
	Create(ctx context.Context, userID string) (*Session, error)
	// ByID returns the live session and slides its expiry to now+timeout.
	ByID(ctx context.Context, id string) (*Session, error)
	Remove(ctx context.Context, id string) error
}

// TokenDao persists single use tokens. At most one live token exists per user
// and category.
type TokenDao interface {
	Create(ctx context.Context, userID, category string) (*Token, error)
	// ByID returns the live token of the given category and slides its expiry.
	ByID(ctx context.Context, id, category string) (*Token, error)
	Remove(ctx context.Context, id, category string) error
	// Consume removes the live token of the given category and returns it.
	// When callers race on the same id only one of them gets the token.
	Consume(ctx context.Context, id, category string) (*Token, error)
}

// UserDao persists users. Lookups return (nil, nil) when nothing matches.
type UserDao interface {
	Add(ctx context.Context, user *User, password string) (*User, error)
	ByID(ctx context.Context, id string) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Validate(ctx context.Context, id string) error
	Password(ctx context.Context, id, password string) error
	Match(ctx context.Context, email, password string) (*User, error)
}

// CredentialBackend builds session and token DAOs bound to a clock snapshot.
type CredentialBackend interface {
	Sessions(now time.Time) SessionDao
	Tokens(now time.Time) TokenDao
}

// UserBackend exposes the user DAO.
type UserBackend interface {
	Users() UserDao
}

// Storage is the value of the storage resource.
type Storage interface {
	CredentialBackend
	UserBackend
}

type combinedStorage struct {
	CredentialBackend
	UserBackend
}

// CombineStorage serves credentials and users from different backends.
func CombineStorage(credentials CredentialBackend, users UserBackend) Storage {
	return combinedStorage{CredentialBackend: credentials, UserBackend: users}
}
