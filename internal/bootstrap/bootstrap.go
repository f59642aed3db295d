// Package bootstrap assembles a running service from an auth.Config.
package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/activitymap"
	"github.com/goliatone/go-auth-service/pipeline"
	"github.com/goliatone/go-auth-service/resource"
	"github.com/goliatone/go-auth-service/store/memory"
	redisstore "github.com/goliatone/go-auth-service/store/redis"
	sqlstore "github.com/goliatone/go-auth-service/store/sql"
	"github.com/goliatone/go-auth-service/telemetry"
)

// SweepInterval is how often the memory driver drops expired credentials.
const SweepInterval = time.Minute

// App is a wired service instance.
type App struct {
	Config      auth.Config
	Logger      *glog.BaseLogger
	Storage     auth.Storage
	Metrics     *telemetry.PrometheusRecorder
	Composer    *pipeline.Composer
	Dispatchers auth.Dispatchers

	closeOnce sync.Once
	closers   []func() error
}

type Option func(*options)

type options struct {
	logger *glog.BaseLogger
	mailer auth.Mailer
	clock  func() time.Time
}

// WithLogger replaces the logger built from the logging config.
func WithLogger(logger *glog.BaseLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMailer replaces the logging mailer.
func WithMailer(mailer auth.Mailer) Option {
	return func(o *options) {
		o.mailer = mailer
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg auth.LoggingConfig, name string) *glog.BaseLogger {
	level := glog.Info
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "trace":
		level = glog.Trace
	case "debug":
		level = glog.Debug
	case "warn", "warning":
		level = glog.Warn
	case "error":
		level = glog.Error
	}

	if cfg.Format != "" && !strings.EqualFold(cfg.Format, "pretty") {
		return glog.NewLogger(
			glog.WithLevel(level),
			glog.WithName(name),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName(name),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

// New validates cfg and wires storage, resources, the composer and both
// services. Close releases what New opened.
func New(ctx context.Context, cfg auth.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policies, err := auth.NewPolicies(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: o.logger}
	if app.Logger == nil {
		app.Logger = NewLogger(cfg.Logging, "authsvc")
	}
	log := app.Logger.GetLogger("bootstrap")

	storage, check, err := app.openStorage(ctx, cfg, policies)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Storage = storage

	mailer := o.mailer
	if mailer == nil {
		mailer = resource.NewLogMailer(app.Logger.GetLogger("mailer"))
	}
	providers := resource.Set{
		Clock:   resource.Clock{Now: o.clock},
		Storage: resource.Storage{Backend: storage, Check: check},
		Mailer:  mailer,
	}.Providers()

	app.Metrics = telemetry.NewPrometheusRecorder()
	app.Composer = pipeline.NewComposer(providers,
		pipeline.WithLogger(app.Logger.GetLogger("pipeline")),
		pipeline.WithMetricsRecorder(app.Metrics),
		pipeline.WithAcquireTimeout(cfg.Pipeline.AcquireTimeout()),
	)

	services := auth.NewServices(
		auth.WithLoggerProvider(app.Logger),
		auth.WithServicesActivitySink(activitymap.LogSink(app.Logger.GetLogger("activity"))),
		auth.WithServicesHashid(cfg.Users.UseHashid),
	)
	app.Dispatchers, err = services.Register(app.Composer)
	if err != nil {
		app.Close()
		return nil, err
	}

	log.Info("service wired",
		"storage", cfg.Storage.Driver,
		"hasher", cfg.Users.PasswordHasher,
		"categories", policies.Categories(),
	)
	return app, nil
}

func (a *App) openStorage(ctx context.Context, cfg auth.Config, policies *auth.Policies) (auth.Storage, resource.Pinger, error) {
	hasher := auth.NewPasswordHasher(cfg.Users)

	switch cfg.Storage.Driver {
	case auth.DriverSQLite:
		users, err := a.openSQL(ctx, cfg.Storage.DSN, policies, hasher)
		if err != nil {
			return nil, nil, err
		}
		return users, users, nil

	case auth.DriverRedis:
		client := redisstore.NewClient(cfg.Storage)
		a.closers = append(a.closers, client.Close)
		credentials := redisstore.New(client, policies, redisstore.WithPrefix(cfg.Storage.RedisPrefix))
		if err := credentials.Ping(ctx); err != nil {
			return nil, nil, err
		}
		users, err := a.openSQL(ctx, cfg.Storage.DSN, policies, hasher)
		if err != nil {
			return nil, nil, err
		}
		return auth.CombineStorage(credentials, users), pingers{credentials, users}, nil

	default:
		store := memory.New(policies, memory.WithHasher(hasher))
		a.startSweeper(store)
		return store, nil, nil
	}
}

func (a *App) openSQL(ctx context.Context, dsn string, policies *auth.Policies, hasher auth.PasswordHasher) (*sqlstore.Store, error) {
	client, err := sqlstore.Open(ctx, sqlstore.PersistenceConfig{DSN: dsn})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return sqlstore.New(client.DB(), policies, sqlstore.WithHasher(hasher)), nil
}

func (a *App) startSweeper(store *memory.Store) {
	log := a.Logger.GetLogger("sweeper")
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				if n := store.Sweep(now.UTC()); n > 0 {
					log.Debug("expired credentials dropped", "count", n)
				}
			}
		}
	}()
	a.closers = append(a.closers, func() error {
		close(stop)
		<-done
		return nil
	})
}

// Close releases storage connections in reverse order. It is safe to call
// more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

type pingers []resource.Pinger

func (p pingers) Ping(ctx context.Context) error {
	for _, pinger := range p {
		if err := pinger.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
