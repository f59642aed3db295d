package auth

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"

	"github.com/goliatone/go-auth-service/pipeline"
)

// Service owners.
const (
	OwnerAuth = "auth"
	OwnerUser = "user"
)

// AuthService implements registration, login and the token flows.
type AuthService struct {
	logger    glog.Logger
	activity  ActivitySink
	guard     *SessionGuard
	useHashid bool
}

type AuthServiceOption func(*AuthService)

func WithAuthLogger(logger glog.Logger) AuthServiceOption {
	return func(s *AuthService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithActivitySink(sink ActivitySink) AuthServiceOption {
	return func(s *AuthService) {
		s.activity = normalizeActivitySink(sink)
	}
}

func WithSessionGuard(guard *SessionGuard) AuthServiceOption {
	return func(s *AuthService) {
		if guard != nil {
			s.guard = guard
		}
	}
}

// WithHashidUserIDs derives user ids from the email address instead of
// generating random ones.
func WithHashidUserIDs(enabled bool) AuthServiceOption {
	return func(s *AuthService) {
		s.useHashid = enabled
	}
}

func NewAuthService(opts ...AuthServiceOption) *AuthService {
	s := &AuthService{
		logger:   glog.Nop(),
		activity: noopActivitySink{},
	}
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

// Register composes the auth methods with composer.
func (s *AuthService) Register(composer *pipeline.Composer) (*pipeline.Dispatcher, error) {
	return pipeline.NewService(OwnerAuth, composer, pipeline.Resources(ResourceClock, ResourceStorage)).
		Method("register", s.register, pipeline.Require(FieldEmail, FieldPassword)).
		Method("login", s.login, pipeline.Require(FieldEmail, FieldPassword)).
		Method("password", s.password, pipeline.Require(FieldEmail), pipeline.Resources(ResourceMailer)).
		Method("reset", s.reset, pipeline.Require(FieldToken, FieldPassword)).
		Method("email", s.email, pipeline.Require(FieldEmail), pipeline.Resources(ResourceMailer)).
		Method("validate", s.validate, pipeline.Require(FieldToken)).
		Method("logout", s.logout, s.guard.Option()).
		Build()
}

func (s *AuthService) register(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
	storage, now, err := requestStorage(rc)
	if err != nil {
		return nil, err
	}
	email, password := ev.Get(FieldEmail), ev.Get(FieldPassword)

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	exists, err := storage.Users().ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return nil, errEmailExists(email)
	}

	user := &User{Email: email}
	if s.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	user, err = storage.Users().Add(ctx, user, password)
	if err != nil {
		return nil, err
	}

	session, err := storage.Sessions(now).Create(ctx, user.ID.String())
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID.String())
	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventRegistered,
		UserID:     user.ID.String(),
		Email:      email,
		OccurredAt: now,
	})
	return session, nil
}

func (s *AuthService) login(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
	storage, now, err := requestStorage(rc)
	if err != nil {
		return nil, err
	}
	email := ev.Get(FieldEmail)

	user, err := storage.Users().Match(ctx, email, ev.Get(FieldPassword))
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.record(ctx, ActivityEvent{
			EventType:  ActivityEventLoginFailure,
			Email:      email,
			OccurredAt: now,
		})
		return nil, errAuthentication()
	}

	session, err := storage.Sessions(now).Create(ctx, user.ID.String())
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		UserID:     user.ID.String(),
		Email:      email,
		OccurredAt: now,
	})
	return session, nil
}

func (s *AuthService) password(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
	token, user, err := s.issueToken(ctx, ev.Get(FieldEmail), CategoryPassword, rc)
	if err != nil {
		return nil, err
	}
	mailer, err := MailerFrom(rc)
	if err != nil {
		return nil, err
	}

	err = mailer.Send(ctx, Message{
		To:    user.Email,
		Topic: "Password reset",
		Body:  "Please reset your password with this token: " + token.ID,
		Data:  map[string]string{FieldToken: token.ID, "category": CategoryPassword},
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordResetRequest,
		UserID:     user.ID.String(),
		Email:      user.Email,
		OccurredAt: token.LastModified,
	})
	return nil, nil
}

func (s *AuthService) reset(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
	storage, now, err := requestStorage(rc)
	if err != nil {
		return nil, err
	}
	id, password := ev.Get(FieldToken), ev.Get(FieldPassword)

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	token, err := s.consumeToken(ctx, storage, now, id, CategoryPassword, func(ctx context.Context, userID string) error {
		return storage.Users().Password(ctx, userID, password)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("password reset", "user_id", token.UserID)
	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		UserID:     token.UserID,
		OccurredAt: now,
	})
	return nil, nil
}

func (s *AuthService) email(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
	token, user, err := s.issueToken(ctx, ev.Get(FieldEmail), CategoryEmail, rc)
	if err != nil {
		return nil, err
	}
	mailer, err := MailerFrom(rc)
	if err != nil {
		return nil, err
	}

	err = mailer.Send(ctx, Message{
		To:    user.Email,
		Topic: "Email confirmation",
		Body:  "Please confirm your email with this token: " + token.ID,
		Data:  map[string]string{FieldToken: token.ID, "category": CategoryEmail},
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventEmailValidationSent,
		UserID:     user.ID.String(),
		Email:      user.Email,
		OccurredAt: token.LastModified,
	})
	return nil, nil
}

func (s *AuthService) validate(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
	storage, now, err := requestStorage(rc)
	if err != nil {
		return nil, err
	}

	token, err := s.consumeToken(ctx, storage, now, ev.Get(FieldToken), CategoryEmail, storage.Users().Validate)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventEmailValidated,
		UserID:     token.UserID,
		OccurredAt: now,
	})
	return nil, nil
}

func (s *AuthService) logout(ctx context.Context, ev pipeline.Event, rc *pipeline.Context) (any, error) {
	storage, now, err := requestStorage(rc)
	if err != nil {
		return nil, err
	}
	if err := storage.Sessions(now).Remove(ctx, ev.Get(FieldSessionID)); err != nil {
		return nil, err
	}

	userID := ""
	if user, ok := UserFrom(rc); ok {
		userID = user.ID.String()
	}
	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLogout,
		UserID:     userID,
		OccurredAt: now,
	})
	return nil, nil
}

func (s *AuthService) issueToken(ctx context.Context, email, category string, rc *pipeline.Context) (*Token, *User, error) {
	storage, now, err := requestStorage(rc)
	if err != nil {
		return nil, nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, nil, err
	}

	user, err := storage.Users().ByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, errEmailNotFound(email)
	}

	token, err := storage.Tokens(now).Create(ctx, user.ID.String(), category)
	if err != nil {
		return nil, nil, err
	}
	return token, user, nil
}

// consumeToken spends a live token of category and runs apply against its
// owner. Only the caller that removed the token runs apply, and the token
// stays spent when apply fails.
func (s *AuthService) consumeToken(
	ctx context.Context,
	storage Storage,
	now time.Time,
	id, category string,
	apply func(ctx context.Context, userID string) error,
) (*Token, error) {
	token, err := storage.Tokens(now).Consume(ctx, id, category)
	if err != nil {
		return nil, err
	}
	if token == nil || token.Category != category {
		s.record(ctx, ActivityEvent{
			EventType:  ActivityEventInvalidTokenPresented,
			Metadata:   map[string]any{"category": category},
			OccurredAt: now,
		})
		return nil, errInvalidToken(id)
	}

	if err := apply(ctx, token.UserID); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *AuthService) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink failed",
			"event", string(event.EventType),
			"error", err,
		)
	}
}

func requestStorage(rc *pipeline.Context) (Storage, time.Time, error) {
	storage, err := StorageFrom(rc)
	if err != nil {
		return nil, time.Time{}, err
	}
	now, err := NowFrom(rc)
	if err != nil {
		return nil, time.Time{}, err
	}
	return storage, now, nil
}
