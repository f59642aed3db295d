package bootstrap_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/internal/bootstrap"
	"github.com/goliatone/go-auth-service/pipeline"
	"github.com/goliatone/go-auth-service/store/storetest"
)

type outbox struct {
	mu   sync.Mutex
	sent []auth.Message
}

func (o *outbox) Send(_ context.Context, msg auth.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func quietLogger() bootstrap.Option {
	return bootstrap.WithLogger(bootstrap.NewLogger(auth.LoggingConfig{Level: "error", Format: "pretty"}, "test"))
}

func newApp(t *testing.T, mutate func(*auth.Config), opts ...bootstrap.Option) *bootstrap.App {
	t.Helper()
	cfg := storetest.Config()
	if mutate != nil {
		mutate(&cfg)
	}
	app, err := bootstrap.New(context.Background(), cfg, append([]bootstrap.Option{quietLogger()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close()) })
	return app
}

func exerciseFlows(t *testing.T, app *bootstrap.App, mail *outbox) {
	t.Helper()
	ctx := context.Background()

	out, err := app.Dispatchers.Auth.Call(ctx, "register", pipeline.RawEvent{
		auth.FieldEmail:    "a@b.com",
		auth.FieldPassword: "abcdef",
	}, nil)
	require.NoError(t, err)
	session := out.(*auth.Session)

	me, err := app.Dispatchers.User.Call(ctx, "me", pipeline.RawEvent{auth.FieldSessionID: session.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", me.(*auth.User).Email)

	_, err = app.Dispatchers.Auth.Call(ctx, "password", pipeline.RawEvent{auth.FieldEmail: "a@b.com"}, nil)
	require.NoError(t, err)
	require.Len(t, mail.sent, 1)

	_, err = app.Dispatchers.Auth.Call(ctx, "reset", pipeline.RawEvent{
		auth.FieldToken:    mail.sent[0].Data[auth.FieldToken],
		auth.FieldPassword: "ghijkl",
	}, nil)
	require.NoError(t, err)

	_, err = app.Dispatchers.Auth.Call(ctx, "login", pipeline.RawEvent{
		auth.FieldEmail:    "a@b.com",
		auth.FieldPassword: "ghijkl",
	}, nil)
	require.NoError(t, err)
}

func TestNew_MemoryDriver(t *testing.T) {
	mail := &outbox{}
	app := newApp(t, nil, bootstrap.WithMailer(mail))

	assert.NotNil(t, app.Metrics)
	assert.NotNil(t, app.Composer)
	exerciseFlows(t, app, mail)

	families, err := app.Metrics.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_SQLiteDriver(t *testing.T) {
	mail := &outbox{}
	app := newApp(t, func(cfg *auth.Config) {
		cfg.Storage.Driver = auth.DriverSQLite
		cfg.Storage.DSN = fmt.Sprintf("file:bootstrap-%d?mode=memory&cache=shared", time.Now().UnixNano())
		cfg.Users.PasswordHasher = auth.HasherBcrypt
		cfg.Users.BcryptCost = 4
	}, bootstrap.WithMailer(mail))

	exerciseFlows(t, app, mail)
}

func TestNew_FixedClock(t *testing.T) {
	mail := &outbox{}
	app := newApp(t, nil, bootstrap.WithMailer(mail), bootstrap.WithClock(func() time.Time { return storetest.T0 }))

	out, err := app.Dispatchers.Auth.Call(context.Background(), "register", pipeline.RawEvent{
		auth.FieldEmail:    "a@b.com",
		auth.FieldPassword: "abcdef",
	}, nil)
	require.NoError(t, err)
	assert.True(t, out.(*auth.Session).Expires.Equal(storetest.T0.Add(storetest.Timeout)))
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := bootstrap.New(context.Background(), auth.DefaultConfig(), quietLogger())
	require.Error(t, err)
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := storetest.Config()
	cfg.Storage.Driver = auth.DriverRedis
	cfg.Storage.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := bootstrap.New(ctx, cfg, quietLogger())
	require.Error(t, err)
}

func TestApp_CloseTwice(t *testing.T) {
	cfg := storetest.Config()
	app, err := bootstrap.New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
}
