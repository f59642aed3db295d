package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-service"
)

// Timestamps are stored as unix milliseconds so expiry comparisons are plain
// integer comparisons on every dialect.
type sessionRecord struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`

	LookupKey    string `bun:"lookup_key,pk"`
	UserID       string `bun:"user_id,notnull"`
	LastModified int64  `bun:"last_modified,notnull"`
	Expires      int64  `bun:"expires,notnull"`
}

type tokenRecord struct {
	bun.BaseModel `bun:"table:tokens,alias:tok"`

	LookupKey    string `bun:"lookup_key,pk"`
	UserID       string `bun:"user_id,notnull"`
	Category     string `bun:"category,notnull"`
	LastModified int64  `bun:"last_modified,notnull"`
	Expires      int64  `bun:"expires,notnull"`
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r *sessionRecord) toSession(id string) *auth.Session {
	return &auth.Session{
		ID:           id,
		UserID:       r.UserID,
		LastModified: fromMillis(r.LastModified),
		Expires:      fromMillis(r.Expires),
	}
}

func (r *tokenRecord) toToken(id string) *auth.Token {
	return &auth.Token{
		ID:           id,
		UserID:       r.UserID,
		Category:     r.Category,
		LastModified: fromMillis(r.LastModified),
		Expires:      fromMillis(r.Expires),
	}
}
