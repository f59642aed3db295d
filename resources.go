package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-auth-service/pipeline"
)

// Resource names used by the services.
const (
	ResourceClock   = "clock"
	ResourceStorage = "storage"
	ResourceMailer  = "mailer"
)

// Context keys set by the session guard.
const (
	ContextUser    = "user"
	ContextSession = "session"
)

// Event fields.
const (
	FieldEmail     = "email"
	FieldPassword  = "password"
	FieldToken     = "token"
	FieldSessionID = "sessionId"
	FieldUserID    = "userId"
)

// Message is an outbound notification.
type Message struct {
	To    string
	Topic string
	Body  string
	Data  map[string]string
}

// Mailer is the value of the mailer resource.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, msg Message) error

func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// StorageFrom returns the acquired storage resource.
func StorageFrom(rc *pipeline.Context) (Storage, error) {
	s, ok := pipeline.Get[Storage](rc, ResourceStorage)
	if !ok || s == nil {
		return nil, errResourceMissing(ResourceStorage)
	}
	return s, nil
}

// NowFrom returns the clock snapshot taken when the request acquired its
// resources.
func NowFrom(rc *pipeline.Context) (time.Time, error) {
	now, ok := pipeline.Get[time.Time](rc, ResourceClock)
	if !ok {
		return time.Time{}, errResourceMissing(ResourceClock)
	}
	return now, nil
}

// MailerFrom returns the acquired mailer resource.
func MailerFrom(rc *pipeline.Context) (Mailer, error) {
	m, ok := pipeline.Get[Mailer](rc, ResourceMailer)
	if !ok || m == nil {
		return nil, errResourceMissing(ResourceMailer)
	}
	return m, nil
}

// UserFrom returns the user resolved by the session guard.
func UserFrom(rc *pipeline.Context) (*User, bool) {
	u, ok := pipeline.Get[*User](rc, ContextUser)
	return u, ok && u != nil
}

// SessionFrom returns the session resolved by the session guard.
func SessionFrom(rc *pipeline.Context) (*Session, bool) {
	s, ok := pipeline.Get[*Session](rc, ContextSession)
	return s, ok && s != nil
}
