package auth

import (
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Password hashers.
const (
	HasherHMAC   = "hmac-sha512"
	HasherBcrypt = "bcrypt"
)

// Config holds every runtime option of the service.
type Config struct {
	Session  CredentialConfig            `koanf:"session" mapstructure:"session"`
	Tokens   map[string]CredentialConfig `koanf:"tokens" mapstructure:"tokens"`
	Cipher   string                      `koanf:"cipher" mapstructure:"cipher"`
	Storage  StorageConfig               `koanf:"storage" mapstructure:"storage"`
	Users    UsersConfig                 `koanf:"users" mapstructure:"users"`
	Pipeline PipelineConfig              `koanf:"pipeline" mapstructure:"pipeline"`
	HTTP     HTTPConfig                  `koanf:"http" mapstructure:"http"`
	Logging  LoggingConfig               `koanf:"logging" mapstructure:"logging"`
}

// CredentialConfig configures one credential category. Timeout is in seconds.
type CredentialConfig struct {
	Timeout int    `koanf:"timeout" mapstructure:"timeout"`
	Secret  string `koanf:"secret" mapstructure:"secret"`
}

func (c CredentialConfig) Duration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

type StorageConfig struct {
	Driver        string `koanf:"driver" mapstructure:"driver"`
	DSN           string `koanf:"dsn" mapstructure:"dsn"`
	RedisAddr     string `koanf:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `koanf:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `koanf:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix" mapstructure:"redis_prefix"`
}

type UsersConfig struct {
	PasswordHasher string `koanf:"password_hasher" mapstructure:"password_hasher"`
	BcryptCost     int    `koanf:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	UseHashid      bool   `koanf:"use_hashid" mapstructure:"use_hashid"`
}

type PipelineConfig struct {
	AcquireTimeoutMS int `koanf:"acquire_timeout_ms" mapstructure:"acquire_timeout_ms"`
}

func (c PipelineConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMS) * time.Millisecond
}

type HTTPConfig struct {
	Address        string `koanf:"address" mapstructure:"address"`
	MetricsAddress string `koanf:"metrics_address" mapstructure:"metrics_address"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

func DefaultConfig() Config {
	return Config{
		Session: CredentialConfig{Timeout: 3600},
		Tokens: map[string]CredentialConfig{
			CategoryPassword: {Timeout: 3600},
			CategoryEmail:    {Timeout: 86400},
		},
		Cipher: CipherAESGCM,
		Storage: StorageConfig{
			Driver:      DriverMemory,
			DSN:         "file:authsvc.db?cache=shared",
			RedisPrefix: "authsvc",
		},
		Users: UsersConfig{
			PasswordHasher: HasherHMAC,
			BcryptCost:     12,
		},
		HTTP: HTTPConfig{
			Address: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "pretty",
		},
	}
}

func (c Config) Validate() error {
	var problems []string

	if c.Session.Timeout <= 0 {
		problems = append(problems, "session.timeout must be positive")
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		problems = append(problems, "session.secret is required")
	}
	for _, category := range sortedCategories(c.Tokens) {
		if category == CategorySession {
			problems = append(problems, "tokens.session is reserved")
			continue
		}
		tc := c.Tokens[category]
		if tc.Timeout <= 0 {
			problems = append(problems, "tokens."+category+".timeout must be positive")
		}
		if strings.TrimSpace(tc.Secret) == "" {
			problems = append(problems, "tokens."+category+".secret is required")
		}
	}

	switch c.Cipher {
	case "", CipherAESGCM, CipherChaCha20Poly1305:
	default:
		problems = append(problems, "cipher must be aes-gcm or chacha20-poly1305")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			problems = append(problems, "storage.dsn is required for sqlite")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			problems = append(problems, "storage.redis_addr is required for redis")
		}
	default:
		problems = append(problems, "storage.driver must be memory, sqlite or redis")
	}

	switch c.Users.PasswordHasher {
	case "", HasherHMAC, HasherBcrypt:
	default:
		problems = append(problems, "users.password_hasher must be hmac-sha512 or bcrypt")
	}

	if c.Pipeline.AcquireTimeoutMS < 0 {
		problems = append(problems, "pipeline.acquire_timeout_ms must not be negative")
	}

	if len(problems) > 0 {
		return goerrors.New("invalid configuration", goerrors.CategoryValidation).
			WithTextCode("INVALID_CONFIG").
			WithMetadata(map[string]any{"problems": problems})
	}
	return nil
}

// CredentialPolicy is the timeout and cipher of one credential category.
type CredentialPolicy struct {
	Category string
	Timeout  time.Duration
	Cipher   *IDCipher
}

// Policies holds the session policy and one policy per token category.
type Policies struct {
	Session CredentialPolicy
	tokens  map[string]CredentialPolicy
}

// NewPolicies builds the credential policies described by cfg.
func NewPolicies(cfg Config) (*Policies, error) {
	session, err := newPolicy(CategorySession, cfg.Session, cfg.Cipher)
	if err != nil {
		return nil, err
	}
	p := &Policies{
		Session: session,
		tokens:  make(map[string]CredentialPolicy, len(cfg.Tokens)),
	}
	for category, tc := range cfg.Tokens {
		policy, err := newPolicy(category, tc, cfg.Cipher)
		if err != nil {
			return nil, err
		}
		p.tokens[category] = policy
	}
	return p, nil
}

func newPolicy(category string, cc CredentialConfig, algorithm string) (CredentialPolicy, error) {
	c, err := NewIDCipher(cc.Secret, category, algorithm)
	if err != nil {
		return CredentialPolicy{}, err
	}
	return CredentialPolicy{
		Category: category,
		Timeout:  cc.Duration(),
		Cipher:   c,
	}, nil
}

// Token returns the policy for a token category.
func (p *Policies) Token(category string) (CredentialPolicy, bool) {
	policy, ok := p.tokens[category]
	return policy, ok
}

// Categories returns the configured token categories, sorted.
func (p *Policies) Categories() []string {
	return sortedCategories(p.tokens)
}

func sortedCategories[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
