package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/pipeline"
	"github.com/goliatone/go-auth-service/resource"
	"github.com/goliatone/go-auth-service/store/memory"
	"github.com/goliatone/go-auth-service/store/storetest"
)

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg auth.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []auth.Message
}

func (m *recordingMailer) Send(_ context.Context, msg auth.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) auth.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.messages, "no message sent")
	return m.messages[len(m.messages)-1]
}

type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store     *memory.Store
	mailer    *recordingMailer
	clock     *testClock
	activity  *capturingSink
	providers *pipeline.Providers
	auth      *pipeline.Dispatcher
	user      *pipeline.Dispatcher
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	storage func(*memory.Store) auth.Storage
	mailer  auth.Mailer
}

func withStorage(wrap func(*memory.Store) auth.Storage) harnessOption {
	return func(c *harnessConfig) { c.storage = wrap }
}

func withMailer(mailer auth.Mailer) harnessOption {
	return func(c *harnessConfig) { c.mailer = mailer }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		store:    memory.New(storetest.Policies(t)),
		mailer:   &recordingMailer{},
		clock:    &testClock{now: storetest.T0},
		activity: &capturingSink{},
	}

	cfg := harnessConfig{mailer: h.mailer}
	for _, opt := range opts {
		opt(&cfg)
	}
	var backend auth.Storage = h.store
	if cfg.storage != nil {
		backend = cfg.storage(h.store)
	}

	h.providers = resource.Set{
		Clock:   resource.Clock{Now: h.clock.Now},
		Storage: resource.Storage{Backend: backend},
		Mailer:  cfg.mailer,
	}.Providers()

	services := auth.NewServices(auth.WithServicesActivitySink(h.activity))
	dispatchers, err := services.Register(pipeline.NewComposer(h.providers))
	require.NoError(t, err)

	h.auth = dispatchers.Auth
	h.user = dispatchers.User
	return h
}

func (h *harness) register(t *testing.T, email, password string) *auth.Session {
	t.Helper()
	out, err := h.auth.Call(context.Background(), "register", pipeline.RawEvent{
		auth.FieldEmail:    email,
		auth.FieldPassword: password,
	}, nil)
	require.NoError(t, err)
	session, ok := out.(*auth.Session)
	require.True(t, ok, "register returns a session")
	return session
}
