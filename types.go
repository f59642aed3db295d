package auth

import (
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-auth-service/pipeline"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

var (
	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)

// Services bundles the auth and user services.
type Services struct {
	Auth *AuthService
	User *UserService
}

// ServicesOption configures NewServices.
type ServicesOption func(*servicesConfig)

type servicesConfig struct {
	provider  LoggerProvider
	logger    Logger
	activity  ActivitySink
	useHashid bool
}

func WithLoggerProvider(provider LoggerProvider) ServicesOption {
	return func(c *servicesConfig) {
		c.provider = provider
	}
}

func WithLogger(logger Logger) ServicesOption {
	return func(c *servicesConfig) {
		c.logger = logger
	}
}

func WithServicesActivitySink(sink ActivitySink) ServicesOption {
	return func(c *servicesConfig) {
		c.activity = sink
	}
}

func WithServicesHashid(enabled bool) ServicesOption {
	return func(c *servicesConfig) {
		c.useHashid = enabled
	}
}

// NewServices builds both services sharing one session guard. Named loggers
// come from the provider when one is set.
func NewServices(opts ...ServicesOption) Services {
	cfg := &servicesConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	provider, logger := glog.Resolve("auth", cfg.provider, cfg.logger)
	logger = glog.Ensure(logger)
	named := func(name string) Logger {
		if provider != nil {
			if l := provider.GetLogger(name); l != nil {
				return glog.Ensure(l)
			}
		}
		return logger
	}

	guard := NewSessionGuard(WithGuardLogger(named("auth.guard")))
	return Services{
		Auth: NewAuthService(
			WithAuthLogger(named("auth.service")),
			WithActivitySink(cfg.activity),
			WithSessionGuard(guard),
			WithHashidUserIDs(cfg.useHashid),
		),
		User: NewUserService(
			WithUserLogger(named("user.service")),
			WithUserSessionGuard(guard),
		),
	}
}

// Dispatchers holds the composed services.
type Dispatchers struct {
	Auth *pipeline.Dispatcher
	User *pipeline.Dispatcher
}

// All returns both dispatchers.
func (d Dispatchers) All() []*pipeline.Dispatcher {
	return []*pipeline.Dispatcher{d.Auth, d.User}
}

// Register composes both services with composer.
func (s Services) Register(composer *pipeline.Composer) (Dispatchers, error) {
	authDispatcher, err := s.Auth.Register(composer)
	if err != nil {
		return Dispatchers{}, err
	}
	userDispatcher, err := s.User.Register(composer)
	if err != nil {
		return Dispatchers{}, err
	}
	return Dispatchers{Auth: authDispatcher, User: userDispatcher}, nil
}
