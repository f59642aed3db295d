// Package resource holds the per request resource providers: the clock
// snapshot, the storage backend and the mailer.
package resource

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/pipeline"
)

// Clock creates a UTC time snapshot per request.
type Clock struct {
	Now func() time.Time
}

func (c Clock) Create(context.Context) (any, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().UTC(), nil
}

func (Clock) Destroy(context.Context, any) error {
	return nil
}

// Pinger is implemented by backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Storage hands out a shared storage backend. When Check is set it is called
// on every acquisition.
type Storage struct {
	Backend auth.Storage
	Check   Pinger
}

func (s Storage) Create(ctx context.Context) (any, error) {
	if s.Backend == nil {
		return nil, goerrors.New("storage backend not configured", goerrors.CategoryInternal).
			WithTextCode("STORAGE_NOT_CONFIGURED")
	}
	if s.Check != nil {
		if err := s.Check.Ping(ctx); err != nil {
			return nil, err
		}
	}
	return s.Backend, nil
}

func (Storage) Destroy(context.Context, any) error {
	return nil
}

// Mailer hands out a shared mailer.
type Mailer struct {
	Sender auth.Mailer
}

func (m Mailer) Create(context.Context) (any, error) {
	if m.Sender == nil {
		return nil, goerrors.New("mailer not configured", goerrors.CategoryInternal).
			WithTextCode("MAILER_NOT_CONFIGURED")
	}
	return m.Sender, nil
}

func (Mailer) Destroy(context.Context, any) error {
	return nil
}

// LogMailer writes every message to the logger instead of delivering it.
type LogMailer struct {
	logger glog.Logger
}

func NewLogMailer(logger glog.Logger) *LogMailer {
	if logger == nil {
		logger = glog.Nop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg auth.Message) error {
	m.logger.WithContext(ctx).Warn("mail",
		"to", msg.To,
		"topic", msg.Topic,
		"body", msg.Body,
	)
	return nil
}

// Set is the resource wiring of one process.
type Set struct {
	Clock   Clock
	Storage Storage
	Mailer  auth.Mailer
}

// Providers registers the clock, storage and mailer providers. The mailer is
// only registered when set.
func (s Set) Providers() *pipeline.Providers {
	providers := pipeline.NewProviders().
		Register(auth.ResourceClock, s.Clock).
		Register(auth.ResourceStorage, s.Storage)
	if s.Mailer != nil {
		providers.Register(auth.ResourceMailer, Mailer{Sender: s.Mailer})
	}
	return providers
}

var (
	_ pipeline.ResourceProvider = Clock{}
	_ pipeline.ResourceProvider = Storage{}
	_ pipeline.ResourceProvider = Mailer{}
	_ auth.Mailer               = (*LogMailer)(nil)
)
