package auth

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-auth-service/pipeline"
)

// GuardAuthenticate is the name of the session guard stage.
const GuardAuthenticate = "authenticate"

// SessionGuard resolves the session named by the sessionId field and the user
// that owns it. Both are stored in the pipeline Context and in ctx.
type SessionGuard struct {
	logger glog.Logger
}

type GuardOption func(*SessionGuard)

func WithGuardLogger(logger glog.Logger) GuardOption {
	return func(g *SessionGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewSessionGuard(opts ...GuardOption) *SessionGuard {
	g := &SessionGuard{logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Authenticate declares what an authenticated method needs: the sessionId
// field, the clock and storage resources and the session guard. Use it per
// method or owner wide.
func Authenticate(opts ...GuardOption) pipeline.Option {
	return NewSessionGuard(opts...).Option()
}

// Option returns the declarations that install g.
func (g *SessionGuard) Option() pipeline.Option {
	return pipeline.Combine(
		pipeline.Require(FieldSessionID),
		pipeline.Resources(ResourceClock, ResourceStorage),
		pipeline.Use(pipeline.Guard{
			Name:     GuardAuthenticate,
			Priority: 100,
			Wrap:     g.Wrap,
		}),
	)
}

func (g *SessionGuard) Wrap(next pipeline.Handler) pipeline.Handler {
	return func(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
		session, user, err := g.resolve(ctx, ev.Get(FieldSessionID), rc)
		if err != nil {
			return nil, err
		}
		rc.Set(ContextSession, session)
		rc.Set(ContextUser, user)
		ctx = WithSessionContext(WithContext(ctx, user), session)
		return next(ctx, ev, rc)
	}
}

func (g *SessionGuard) resolve(ctx context.Context, sessionID string, rc *pipeline.Context) (*Session, *User, error) {
	storage, err := StorageFrom(rc)
	if err != nil {
		return nil, nil, err
	}
	now, err := NowFrom(rc)
	if err != nil {
		return nil, nil, err
	}

	if !IsHex(sessionID) {
		return nil, nil, errSessionNotFound(sessionID)
	}

	session, err := storage.Sessions(now).ByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		g.logger.Debug("session not found", "session_prefix", prefix(sessionID))
		return nil, nil, errSessionNotFound(sessionID)
	}

	user, err := storage.Users().ByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		g.logger.Warn("session owner no longer exists", "user_id", session.UserID)
		return nil, nil, errSessionNotFound(sessionID)
	}
	return session, user, nil
}

func prefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
