package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-service/exception"
	"github.com/goliatone/go-auth-service/pipeline"
)

func TestService_BuildsDispatcher(t *testing.T) {
	clock := &recordingProvider{name: "clock"}
	composer := pipeline.NewComposer(pipeline.NewProviders().Register("clock", clock))

	d, err := pipeline.NewService("auth", composer, pipeline.Resources("clock")).
		Method("login", echoHandler, pipeline.Require("email", "password")).
		Method("ping", func(_ context.Context, _ pipeline.Event, rc *pipeline.Context) (any, error) {
			v, _ := pipeline.Get[string](rc, "clock")
			return v, nil
		}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "auth", d.Owner())
	assert.Equal(t, []string{"login", "ping"}, d.Methods())
	assert.Equal(t, []string{"email", "password"}, d.Metadata("login").RequiredFields)
	assert.Equal(t, []string{"clock"}, d.Metadata("ping").ResourceNames)
	assert.True(t, d.Metadata("ping").Composed)

	out, err := d.Call(context.Background(), "ping", pipeline.RawEvent{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "value-of-clock", out)

	_, err = d.Call(context.Background(), "login", pipeline.RawEvent{"email": "a@b.com"}, nil)
	assert.True(t, exception.Is(err, exception.InvalidArgument, exception.KeyParameterRequired))
}

func TestService_OwnerOptionsAddedLaterStillApply(t *testing.T) {
	composer := pipeline.NewComposer(nil)

	d, err := pipeline.NewService("user", composer).
		Method("me", echoHandler).
		With(pipeline.Require("sessionId")).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"sessionId"}, d.Metadata("me").RequiredFields)
}

func TestService_UnknownMethod(t *testing.T) {
	d, err := pipeline.NewService("user", pipeline.NewComposer(nil)).Method("me", echoHandler).Build()
	require.NoError(t, err)

	_, err = d.Call(context.Background(), "nope", pipeline.RawEvent{}, nil)
	assert.True(t, exception.Is(err, exception.NotFound, exception.KeyMethodNotFound))
}

func TestService_BuilderErrors(t *testing.T) {
	_, err := pipeline.NewService("", pipeline.NewComposer(nil)).Build()
	assert.Error(t, err)

	_, err = pipeline.NewService("auth", nil).Build()
	assert.Error(t, err)

	_, err = pipeline.NewService("auth", pipeline.NewComposer(nil)).
		Method("login", echoHandler).
		Method("login", echoHandler).
		Build()
	assert.Error(t, err)
}

func TestContext_TypedGet(t *testing.T) {
	rc := pipeline.NewContext(map[string]any{"n": 3})
	rc.Set("s", "x")

	n, ok := pipeline.Get[int](rc, "n")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = pipeline.Get[string](rc, "n")
	assert.False(t, ok)

	_, ok = pipeline.Get[string](nil, "s")
	assert.False(t, ok)

	rc.Delete("n")
	assert.Equal(t, []string{"s"}, rc.Keys())
}
