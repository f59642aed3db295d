// Package config loads auth.Config from defaults, a YAML file and the
// environment, in that order of precedence.
package config

import (
	"context"
	"strconv"
	"strings"

	cfgx "github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	auth "github.com/goliatone/go-auth-service"
)

// DefaultEnvPrefix is the environment variable prefix. Nested keys are
// separated by a double underscore: AUTHSVC_SESSION__SECRET sets
// session.secret and AUTHSVC_TOKENS__EMAIL__TIMEOUT sets tokens.email.timeout.
const DefaultEnvPrefix = "AUTHSVC_"

const envDelimiter = "__"

// Loader collects raw configuration values.
type Loader struct {
	envPrefix string
	filePath  string
	values    map[string]any
	defaults  auth.Config
}

type Option func(*Loader)

func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile reads a YAML file. An empty path is ignored.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = strings.TrimSpace(path)
	}
}

// WithValues sets dotted keys after every other source, e.g. from flags.
// String values of numeric and boolean keys are converted.
func WithValues(values map[string]any) Option {
	return func(l *Loader) {
		if l.values == nil {
			l.values = make(map[string]any, len(values))
		}
		for k, v := range values {
			l.values[k] = v
		}
	}
}

func WithDefaults(defaults auth.Config) Option {
	return func(l *Loader) {
		l.defaults = defaults
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		envPrefix: DefaultEnvPrefix,
		defaults:  auth.DefaultConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// LoadRaw returns the merged configuration tree.
func (l *Loader) LoadRaw(_ context.Context) (map[string]any, error) {
	k := koanf.New(".")

	for key, value := range flatten(l.defaults) {
		if err := k.Set(key, value); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set config default").
				WithMetadata(map[string]any{"key": key})
		}
	}

	if l.filePath != "" {
		if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to load config file").
				WithTextCode("CONFIG_FILE").
				WithMetadata(map[string]any{"path": l.filePath})
		}
	}

	if l.envPrefix != "" {
		provider := env.ProviderWithValue(l.envPrefix, ".", l.envValue)
		if err := k.Load(provider, nil); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load environment")
		}
	}

	for key, value := range l.values {
		if str, ok := value.(string); ok {
			value = coerce(key, str)
		}
		if err := k.Set(key, value); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set config value").
				WithMetadata(map[string]any{"key": key})
		}
	}

	return k.Raw(), nil
}

func (l *Loader) envValue(key, value string) (string, any) {
	key = strings.TrimPrefix(key, l.envPrefix)
	key = strings.ToLower(strings.ReplaceAll(key, envDelimiter, "."))
	return key, coerce(key, value)
}

// Load builds a validated auth.Config.
func Load(ctx context.Context, opts ...Option) (auth.Config, error) {
	loader := NewLoader(opts...)
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return auth.Config{}, err
	}
	cfg, err := cfgx.Build[auth.Config](raw,
		cfgx.WithDefaults(loader.defaults),
		cfgx.WithValidator[auth.Config]((*auth.Config).Validate),
	)
	if err != nil {
		return auth.Config{}, err
	}
	return cfg, nil
}

var (
	intKeys  = []string{"timeout", "redis_db", "bcrypt_cost", "acquire_timeout_ms"}
	boolKeys = []string{"use_hashid"}
)

// coerce types environment strings for the numeric and boolean options.
func coerce(key, value string) any {
	leaf := key
	if i := strings.LastIndex(key, "."); i >= 0 {
		leaf = key[i+1:]
	}
	for _, k := range intKeys {
		if leaf == k {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				return n
			}
		}
	}
	for _, k := range boolKeys {
		if leaf == k {
			if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
				return b
			}
		}
	}
	return value
}

func flatten(cfg auth.Config) map[string]any {
	out := map[string]any{
		"session.timeout":             cfg.Session.Timeout,
		"session.secret":              cfg.Session.Secret,
		"cipher":                      cfg.Cipher,
		"storage.driver":              cfg.Storage.Driver,
		"storage.dsn":                 cfg.Storage.DSN,
		"storage.redis_addr":          cfg.Storage.RedisAddr,
		"storage.redis_password":      cfg.Storage.RedisPassword,
		"storage.redis_db":            cfg.Storage.RedisDB,
		"storage.redis_prefix":        cfg.Storage.RedisPrefix,
		"users.password_hasher":       cfg.Users.PasswordHasher,
		"users.bcrypt_cost":           cfg.Users.BcryptCost,
		"users.use_hashid":            cfg.Users.UseHashid,
		"pipeline.acquire_timeout_ms": cfg.Pipeline.AcquireTimeoutMS,
		"http.address":                cfg.HTTP.Address,
		"http.metrics_address":        cfg.HTTP.MetricsAddress,
		"logging.level":               cfg.Logging.Level,
		"logging.format":              cfg.Logging.Format,
	}
	for category, tc := range cfg.Tokens {
		out["tokens."+category+".timeout"] = tc.Timeout
		out["tokens."+category+".secret"] = tc.Secret
	}
	return out
}
