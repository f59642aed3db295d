package auth

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-auth-service/pipeline"
)

// UserService exposes user lookups. Every method requires a valid session.
type UserService struct {
	logger glog.Logger
	guard  *SessionGuard
}

type UserServiceOption func(*UserService)

func WithUserLogger(logger glog.Logger) UserServiceOption {
	return func(s *UserService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithUserSessionGuard(guard *SessionGuard) UserServiceOption {
	return func(s *UserService) {
		if guard != nil {
			s.guard = guard
		}
	}
}

func NewUserService(opts ...UserServiceOption) *UserService {
	s := &UserService{logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.guard == nil {
		s.guard = NewSessionGuard(WithGuardLogger(s.logger))
	}
	return s
}

// Register composes the user methods with composer.
func (s *UserService) Register(composer *pipeline.Composer) (*pipeline.Dispatcher, error) {
	return pipeline.NewService(OwnerUser, composer, s.guard.Option()).
		Method("me", s.me).
		Method("fetch", s.fetch, pipeline.Require(FieldUserID)).
		Build()
}

func (s *UserService) me(_ context.Context, _ pipeline.Event, rc *pipeline.Context) (any, error) {
	user, ok := UserFrom(rc)
	if !ok {
		return nil, errSessionNotFound("")
	}
	return user.Public(), nil
}

func (s *UserService) fetch(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
	storage, err := StorageFrom(rc)
	if err != nil {
		return nil, err
	}
	id := ev.Get(FieldUserID)

	user, err := storage.Users().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errUserNotFound(id)
	}
	return user.Public(), nil
}
