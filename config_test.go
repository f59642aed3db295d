package auth_test

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/store/storetest"
)

func TestDefaultConfig_RequiresSecrets(t *testing.T) {
	err := auth.DefaultConfig().Validate()
	require.Error(t, err)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, "INVALID_CONFIG", rich.TextCode)

	problems, ok := rich.Metadata["problems"].([]string)
	require.True(t, ok)
	assert.Contains(t, problems, "session.secret is required")
	assert.Contains(t, problems, "tokens.email.secret is required")
	assert.Contains(t, problems, "tokens.password.secret is required")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*auth.Config)
		problem string
	}{
		{"valid", func(*auth.Config) {}, ""},
		{"session timeout", func(c *auth.Config) { c.Session.Timeout = 0 }, "session.timeout must be positive"},
		{"reserved category", func(c *auth.Config) {
			c.Tokens[auth.CategorySession] = auth.CredentialConfig{Timeout: 1, Secret: "x"}
		}, "tokens.session is reserved"},
		{"cipher", func(c *auth.Config) { c.Cipher = "des" }, "cipher must be aes-gcm or chacha20-poly1305"},
		{"driver", func(c *auth.Config) { c.Storage.Driver = "mongo" }, "storage.driver must be memory, sqlite or redis"},
		{"sqlite dsn", func(c *auth.Config) {
			c.Storage.Driver = auth.DriverSQLite
			c.Storage.DSN = ""
		}, "storage.dsn is required for sqlite"},
		{"redis addr", func(c *auth.Config) { c.Storage.Driver = auth.DriverRedis }, "storage.redis_addr is required for redis"},
		{"hasher", func(c *auth.Config) { c.Users.PasswordHasher = "md5" }, "users.password_hasher must be hmac-sha512 or bcrypt"},
		{"acquire timeout", func(c *auth.Config) { c.Pipeline.AcquireTimeoutMS = -1 }, "pipeline.acquire_timeout_ms must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := storetest.Config()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.problem == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var rich *goerrors.Error
			require.True(t, goerrors.As(err, &rich))
			assert.Contains(t, rich.Metadata["problems"], tt.problem)
		})
	}
}

func TestNewPolicies(t *testing.T) {
	cfg := storetest.Config()
	cfg.Pipeline.AcquireTimeoutMS = 250

	policies, err := auth.NewPolicies(cfg)
	require.NoError(t, err)

	assert.Equal(t, auth.CategorySession, policies.Session.Category)
	assert.Equal(t, storetest.Timeout, policies.Session.Timeout)
	assert.Equal(t, []string{auth.CategoryEmail, auth.CategoryPassword}, policies.Categories())

	password, ok := policies.Token(auth.CategoryPassword)
	require.True(t, ok)
	assert.Equal(t, storetest.Timeout, password.Timeout)

	_, ok = policies.Token("unknown")
	assert.False(t, ok)

	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.AcquireTimeout())
	assert.Equal(t, time.Hour, auth.CredentialConfig{Timeout: 3600}.Duration())
}

func TestNewPolicies_MissingSecret(t *testing.T) {
	cfg := storetest.Config()
	cfg.Tokens[auth.CategoryEmail] = auth.CredentialConfig{Timeout: 10}

	_, err := auth.NewPolicies(cfg)
	assert.Error(t, err)
}
